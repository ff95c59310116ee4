// Package bids writes the JSON sidecars that accompany converted images
// and derives output base names from source files.
package bids

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sidecar carries the acquisition metadata written next to each image.
// Times are in seconds, per the BIDS convention; zero-valued fields are
// omitted from the JSON.
type Sidecar struct {
	RepetitionTime     float64 `json:"RepetitionTime,omitempty"`
	EchoTime           float64 `json:"EchoTime,omitempty"`
	Manufacturer       string  `json:"Manufacturer,omitempty"`
	ProtocolName       string  `json:"ProtocolName,omitempty"`
	ConversionSoftware string  `json:"ConversionSoftware"`
	ConversionVersion  string  `json:"ConversionSoftwareVersion,omitempty"`
}

// Write stores the sidecar as <imagePath minus .nii/.nii.gz>.json.
func (s Sidecar) Write(imagePath string) error {
	path := SidecarPath(imagePath)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar %s: %w", path, err)
	}
	return nil
}

// SidecarPath maps an image path to its sidecar path.
func SidecarPath(imagePath string) string {
	return StripImageExt(imagePath) + ".json"
}

// StripImageExt removes a trailing .nii or .nii.gz.
func StripImageExt(path string) string {
	path = strings.TrimSuffix(path, ".gz")
	return strings.TrimSuffix(path, ".nii")
}

// BaseName derives the output base name for a source acquisition: the
// source's own stem, cleaned of characters that BIDS names cannot carry.
// A DICOM series directory contributes its directory name.
func BaseName(sourcePath string) string {
	stem := filepath.Base(sourcePath)
	if ext := filepath.Ext(stem); strings.EqualFold(ext, ".par") {
		stem = strings.TrimSuffix(stem, ext)
	}
	stem = strings.TrimSuffix(strings.TrimSuffix(stem, "/"), string(filepath.Separator))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "acq"
	}
	return b.String()
}
