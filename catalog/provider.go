package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Provider supplies the OS catalog
type Provider interface {
	Fetch(ctx context.Context) ([]OS, error)
}

// HTTPProvider downloads a JSON catalog
type HTTPProvider struct {
	url       string
	userAgent string
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPProvider creates a provider for the JSON document at url.
// A nil client uses http.DefaultClient.
func NewHTTPProvider(url, userAgent string, client *http.Client, logger *slog.Logger) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		url:       url,
		userAgent: userAgent,
		client:    client,
		logger:    logger.With(slog.String("component", "catalog")),
	}
}

// Fetch retrieves and validates the catalog
func (p *HTTPProvider) Fetch(ctx context.Context) ([]OS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("Catalog request failed", slog.String("url", p.url), slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s : %s", p.url, resp.Status)
	}

	list, err := decodeJSON(resp.Body)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Catalog loaded", slog.String("url", p.url), slog.Int("entries", len(list)))
	return list, nil
}

// FileProvider reads a catalog from a JSON or YAML file
type FileProvider struct {
	fs   afero.Fs
	path string
}

// NewFileProvider creates a provider reading path from fs. YAML is used for
// .yaml and .yml files, JSON otherwise.
func NewFileProvider(fs afero.Fs, path string) *FileProvider {
	return &FileProvider{fs: fs, path: path}
}

// Fetch reads and validates the catalog file
func (p *FileProvider) Fetch(ctx context.Context) ([]OS, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := p.fs.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(p.path)) {
	case ".yaml", ".yml":
		var list []OS
		if err := yaml.NewDecoder(f).Decode(&list); err != nil {
			return nil, fmt.Errorf("parsing catalog: %w", err)
		}
		return list, Validate(list)
	default:
		return decodeJSON(f)
	}
}

// Static serves a fixed list, mostly useful in tests
type Static []OS

// Fetch returns the list unchanged
func (s Static) Fetch(ctx context.Context) ([]OS, error) {
	return s, ctx.Err()
}

func decodeJSON(r io.Reader) ([]OS, error) {
	var list []OS
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return list, Validate(list)
}

// Validate checks that every entry and configuration is addressable
func Validate(list []OS) error {
	seen := make(map[string]bool, len(list))
	for i, os := range list {
		if os.Name == "" {
			return fmt.Errorf("catalog entry %d has no name", i)
		}
		if seen[os.Name] {
			return fmt.Errorf("duplicate catalog entry %q", os.Name)
		}
		seen[os.Name] = true

		for j, rc := range os.Releases {
			if rc.Release == "" {
				return fmt.Errorf("%s: configuration %d has no release", os.Name, j)
			}
			if rc.Arch.IsZero() {
				return fmt.Errorf("%s %s: configuration %d has no architecture", os.Name, rc.Release, j)
			}
		}
	}
	return nil
}
