package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"
)

// Format is an output format of the listing commands
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	YAML  Format = "yaml"
)

// ParseFormat accepts table, json and yaml
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Table, JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("invalid output format %q: must be one of table, json, yaml", s)
}

// Writer is something printable in every output format
type Writer interface {
	WriteTable(out io.Writer) error
	WriteJSON(out io.Writer) error
	WriteYAML(out io.Writer) error
}

// Write prints w in format f
func (f Format) Write(out io.Writer, w Writer) error {
	switch f {
	case JSON:
		return w.WriteJSON(out)
	case YAML:
		return w.WriteYAML(out)
	default:
		return w.WriteTable(out)
	}
}

func encodeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func encodeYAML(out io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func encodeTable(out io.Writer, tbl *uitable.Table) error {
	_, err := fmt.Fprintln(out, tbl.String())
	return err
}
