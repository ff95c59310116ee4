// Package parrec reads Philips PAR/REC exports: a text header (.PAR)
// describing the acquisition plus a raw pixel file (.REC) holding the
// reconstructed slices.
//
// Only the fields the conversion needs are parsed; unknown general-info
// lines and trailing image-row columns are skipped, which keeps the parser
// tolerant of the minor differences between PAR versions 4.x.
package parrec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// GeneralInfo holds the acquisition-level fields from the PAR general
// information block.
type GeneralInfo struct {
	PatientName      string
	ProtocolName     string
	Technique        string
	MaxSlices        int
	MaxDynamics      int
	RepetitionTimeMS float64
}

// ImageRow is one line of the PAR image information table: one
// reconstructed slice.
type ImageRow struct {
	Slice        int
	Echo         int
	Dynamic      int
	CardiacPhase int
	TypeMR       int // 0 = magnitude, 3 = phase
	Sequence     int
	RecIndex     int // position of this slice in the REC file
	PixelBits    int
	ReconX       int
	ReconY       int

	RescaleIntercept float64
	RescaleSlope     float64
	ScaleSlope       float64
	SliceThickness   float64
	SliceGap         float64
	PixelSpacingX    float64
	PixelSpacingY    float64
	EchoTimeMS       float64
}

// Header is a parsed PAR file.
type Header struct {
	General GeneralInfo
	Rows    []ImageRow
}

// Image-row column positions (PAR v4.x).
const (
	colSlice     = 0
	colEcho      = 1
	colDynamic   = 2
	colCardiac   = 3
	colTypeMR    = 4
	colSequence  = 5
	colRecIndex  = 6
	colPixelBits = 7
	colReconX    = 9
	colReconY    = 10
	colRescaleIn = 11
	colRescaleSl = 12
	colScaleSl   = 13
	colThickness = 22
	colGap       = 23
	colSpacingX  = 28
	colSpacingY  = 29
	colEchoTime  = 30

	minRowColumns = 31
)

// LoadHeader parses the PAR file at path.
func LoadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PAR header: %w", err)
	}
	defer func() { _ = f.Close() }()

	hdr, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("parse PAR header %s: %w", path, err)
	}
	return hdr, nil
}

// ParseHeader parses PAR header text.
func ParseHeader(r io.Reader) (*Header, error) {
	hdr := &Header{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			// Comment or section banner.
		case strings.HasPrefix(line, "."):
			if err := hdr.parseGeneralLine(line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		default:
			row, err := parseImageRow(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			hdr.Rows = append(hdr.Rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(hdr.Rows) == 0 {
		return nil, fmt.Errorf("no image information rows")
	}
	if hdr.General.MaxDynamics == 0 {
		return nil, fmt.Errorf("missing %q in general information", "Max. number of dynamics")
	}
	if hdr.General.MaxSlices == 0 {
		return nil, fmt.Errorf("missing %q in general information", "Max. number of slices/locations")
	}
	return hdr, nil
}

// parseGeneralLine handles one ".    Key   :   value" line. Unrecognized
// keys are ignored.
func (h *Header) parseGeneralLine(line string) error {
	body := strings.TrimSpace(strings.TrimPrefix(line, "."))
	key, value, ok := strings.Cut(body, ":")
	if !ok {
		return nil
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	var err error
	switch {
	case strings.HasPrefix(key, "Patient name"):
		h.General.PatientName = value
	case strings.HasPrefix(key, "Protocol name"):
		h.General.ProtocolName = value
	case strings.HasPrefix(key, "Technique"):
		h.General.Technique = value
	case strings.HasPrefix(key, "Max. number of slices"):
		h.General.MaxSlices, err = strconv.Atoi(value)
	case strings.HasPrefix(key, "Max. number of dynamics"):
		h.General.MaxDynamics, err = strconv.Atoi(value)
	case strings.HasPrefix(key, "Repetition time"):
		// May list one value per echo; the first is the scan TR.
		fields := strings.Fields(value)
		if len(fields) > 0 {
			h.General.RepetitionTimeMS, err = strconv.ParseFloat(fields[0], 64)
		}
	}
	if err != nil {
		return fmt.Errorf("general information %q: %w", key, err)
	}
	return nil
}

func parseImageRow(line string) (ImageRow, error) {
	fields := strings.Fields(line)
	if len(fields) < minRowColumns {
		return ImageRow{}, fmt.Errorf("image row has %d columns, need at least %d", len(fields), minRowColumns)
	}

	var row ImageRow
	var err error
	ints := []struct {
		dst *int
		col int
	}{
		{&row.Slice, colSlice},
		{&row.Echo, colEcho},
		{&row.Dynamic, colDynamic},
		{&row.CardiacPhase, colCardiac},
		{&row.TypeMR, colTypeMR},
		{&row.Sequence, colSequence},
		{&row.RecIndex, colRecIndex},
		{&row.PixelBits, colPixelBits},
		{&row.ReconX, colReconX},
		{&row.ReconY, colReconY},
	}
	for _, f := range ints {
		*f.dst, err = strconv.Atoi(fields[f.col])
		if err != nil {
			return ImageRow{}, fmt.Errorf("image row column %d: %w", f.col, err)
		}
	}

	floats := []struct {
		dst *float64
		col int
	}{
		{&row.RescaleIntercept, colRescaleIn},
		{&row.RescaleSlope, colRescaleSl},
		{&row.ScaleSlope, colScaleSl},
		{&row.SliceThickness, colThickness},
		{&row.SliceGap, colGap},
		{&row.PixelSpacingX, colSpacingX},
		{&row.PixelSpacingY, colSpacingY},
		{&row.EchoTimeMS, colEchoTime},
	}
	for _, f := range floats {
		*f.dst, err = strconv.ParseFloat(fields[f.col], 64)
		if err != nil {
			return ImageRow{}, fmt.Errorf("image row column %d: %w", f.col, err)
		}
	}
	return row, nil
}

// volumeKey identifies one reconstructed volume: Philips emits one row per
// slice, and everything but the slice number distinguishes volumes.
type volumeKey struct {
	dynamic  int
	typeMR   int
	echo     int
	sequence int
	cardiac  int
}

func (h *Header) volumeKeys() []volumeKey {
	seen := make(map[volumeKey]bool)
	var keys []volumeKey
	for _, row := range h.Rows {
		k := volumeKey{row.Dynamic, row.TypeMR, row.Echo, row.Sequence, row.CardiacPhase}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// NumVolumes returns the number of reconstructed volumes in acquisition
// order, derived from the image rows rather than the declared counts.
func (h *Header) NumVolumes() int {
	return len(h.volumeKeys())
}

// ImageTypes returns one image_type_mr code per volume in acquisition
// order. This is the column interleave detection keys on.
func (h *Header) ImageTypes() []int {
	keys := h.volumeKeys()
	types := make([]int, len(keys))
	for i, k := range keys {
		types[i] = k.typeMR
	}
	return types
}
