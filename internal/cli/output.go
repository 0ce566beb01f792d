package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats for inspection commands.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Write prints v in the requested format. YAML output keeps the JSON field
// names so both formats read the same.
func Write(w io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	switch format {
	case FormatJSON, "":
		_, err = fmt.Fprintln(w, string(raw))
		return err
	case FormatYAML:
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q (use json or yaml)", format)
}
