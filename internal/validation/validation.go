package validation

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ValidationError names the input field that was rejected
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidateVMName checks that a VM name can be used as a single path element
func ValidateVMName(name string) error {
	if name == "" {
		return NewValidationError("name", "VM name is required")
	}
	if strings.ContainsAny(name, `/\`) {
		return NewValidationError("name", "VM name must not contain path separators")
	}
	if name == "." || name == ".." {
		return NewValidationError("name", "invalid VM name")
	}
	if len(name) > 255 {
		return NewValidationError("name", "VM name too long (max 255 characters)")
	}
	return nil
}

// ValidateDirectory checks that dir exists on fs and is a directory
func ValidateDirectory(fs afero.Fs, dir string) error {
	if dir == "" {
		return NewValidationError("directory", "directory is required")
	}
	ok, err := afero.DirExists(fs, dir)
	if err != nil {
		return NewValidationError("directory", err.Error())
	}
	if !ok {
		return NewValidationError("directory", "directory does not exist")
	}
	return nil
}

// ValidateFilePath joins userPath onto basePath. userPath must be relative
// and stay inside basePath once cleaned.
func ValidateFilePath(basePath, userPath string) (string, error) {
	switch {
	case userPath == "":
		return "", NewValidationError("path", "file path is required")
	case filepath.IsAbs(userPath):
		return "", NewValidationError("path", "absolute paths not allowed")
	case !filepath.IsLocal(userPath):
		return "", NewValidationError("path", "path outside allowed directory")
	}
	return filepath.Join(basePath, userPath), nil
}

// ValidateSourceURL checks that raw is an absolute URL with a supported scheme
func ValidateSourceURL(raw string, schemes ...string) error {
	if raw == "" {
		return NewValidationError("url", "URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewValidationError("url", "invalid URL")
	}
	if u.Host == "" {
		return NewValidationError("url", "URL has no host")
	}
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			return nil
		}
	}
	return NewValidationError("url", "unsupported URL scheme "+u.Scheme)
}

// ValidateRequired rejects a value that is empty or only whitespace
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, field+" is required")
	}
	return nil
}
