// Package formatting renders backend response bodies for the terminal.
package formatting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatJSON OutputFormat = "json" // Indented JSON
	FormatYAML OutputFormat = "yaml" // YAML converted from the JSON body
	FormatRaw  OutputFormat = "raw"  // Body bytes as received
)

// ParseFormat validates a format name. Empty means FormatJSON.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	case FormatRaw:
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml or raw)", s)
	}
}

// WriteBody writes a response body to w in the requested format. Bodies
// that are not JSON are written as received whatever the format.
func WriteBody(w io.Writer, body []byte, format OutputFormat) error {
	trimmed := bytes.TrimSpace(body)
	if format == FormatRaw || len(trimmed) == 0 || !json.Valid(trimmed) {
		_, err := w.Write(body)
		return err
	}

	if format == FormatYAML {
		var v interface{}
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode response as yaml: %w", err)
		}
		return enc.Close()
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, trimmed, "", "  "); err != nil {
		return fmt.Errorf("failed to indent response: %w", err)
	}
	pretty.WriteByte('\n')
	_, err := pretty.WriteTo(w)
	return err
}
