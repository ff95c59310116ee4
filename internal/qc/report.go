package qc

import (
	"encoding/json"
	"fmt"
	"os"
)

// Report is the per-acquisition QC summary written next to the outputs.
type Report struct {
	Source      string       `json:"source"`
	Kind        string       `json:"kind"`
	Ratio       int          `json:"ratio"`
	Interleaved bool         `json:"interleaved"`
	Outputs     []ImageStats `json:"outputs"`
}

// WriteJSON stores the report at path.
func (r Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode qc report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write qc report %s: %w", path, err)
	}
	return nil
}
