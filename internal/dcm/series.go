// Package dcm assembles a DICOM series directory into a 4-D NIfTI image.
//
// It covers the common single-frame MR export: one file per slice, stacked
// by InstanceNumber, with temporal positions (if any) identified by the
// TemporalPositionIdentifier tag.
package dcm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"parforge/internal/nii"
)

// Series is a loaded DICOM series with the acquisition metadata the
// conversion pipeline carries into sidecars.
type Series struct {
	Image            *nii.Image
	RepetitionTimeMS float64
	EchoTimeMS       float64
	Protocol         string
	Manufacturer     string

	// Voxel geometry from PixelSpacing (row, column) and SliceThickness,
	// in millimeters. Zero when the tags are absent.
	SpacingRowMM     float64
	SpacingColMM     float64
	SliceThicknessMM float64
}

// sliceFile is one parsed DICOM file positioned within the series.
type sliceFile struct {
	path     string
	instance int
	temporal int
	rows     int
	cols     int
	pixels   []uint16
}

// LoadSeries reads every DICOM file under dir (non-recursively) and stacks
// the slices into a single image. DICOMDIR indexes and non-DICOM files are
// skipped by extension; a directory yielding no readable slices is an
// error.
func LoadSeries(dir string) (*Series, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read series directory: %w", err)
	}

	var slices []sliceFile
	series := &Series{}
	for _, entry := range entries {
		if entry.IsDir() || !isDICOMName(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		sf, err := parseSlice(path, series)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		slices = append(slices, sf)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no DICOM slices in %s", dir)
	}

	img, err := stack(slices)
	if err != nil {
		return nil, fmt.Errorf("stack series %s: %w", dir, err)
	}
	img.Hdr.SetDescrip(series.Protocol)
	// PixelSpacing is (row, column): row spacing is the y step.
	if series.SpacingColMM > 0 {
		img.Hdr.Pixdim[1] = float32(series.SpacingColMM)
	}
	if series.SpacingRowMM > 0 {
		img.Hdr.Pixdim[2] = float32(series.SpacingRowMM)
	}
	if series.SliceThicknessMM > 0 {
		img.Hdr.Pixdim[3] = float32(series.SliceThicknessMM)
	}
	img.Hdr.Pixdim[4] = float32(series.RepetitionTimeMS / 1000.0)
	series.Image = img
	return series, nil
}

func isDICOMName(name string) bool {
	if strings.EqualFold(name, "DICOMDIR") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".dcm" || ext == ".ima" || ext == ""
}

// parseSlice reads one file, recording series-level metadata on the first
// occurrence of each tag.
func parseSlice(path string, series *Series) (sliceFile, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return sliceFile{}, err
	}

	sf := sliceFile{path: path, temporal: 1}
	if v, ok := intTag(&ds, tag.InstanceNumber); ok {
		sf.instance = v
	}
	if v, ok := intTag(&ds, tag.TemporalPositionIdentifier); ok {
		sf.temporal = v
	}
	if v, ok := intTag(&ds, tag.Rows); ok {
		sf.rows = v
	}
	if v, ok := intTag(&ds, tag.Columns); ok {
		sf.cols = v
	}
	if sf.rows <= 0 || sf.cols <= 0 {
		return sliceFile{}, fmt.Errorf("missing Rows/Columns")
	}

	if series.Protocol == "" {
		series.Protocol, _ = stringTag(&ds, tag.ProtocolName)
	}
	if series.Manufacturer == "" {
		series.Manufacturer, _ = stringTag(&ds, tag.Manufacturer)
	}
	if series.RepetitionTimeMS == 0 {
		series.RepetitionTimeMS, _ = floatTag(&ds, tag.RepetitionTime)
	}
	if series.EchoTimeMS == 0 {
		series.EchoTimeMS, _ = floatTag(&ds, tag.EchoTime)
	}
	if series.SpacingRowMM == 0 {
		series.SpacingRowMM, series.SpacingColMM = pixelSpacing(&ds)
	}
	if series.SliceThicknessMM == 0 {
		series.SliceThicknessMM, _ = floatTag(&ds, tag.SliceThickness)
	}

	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return sliceFile{}, fmt.Errorf("missing PixelData")
	}
	info := dicom.MustGetPixelDataInfo(pixelElem.Value)
	if len(info.Frames) != 1 {
		return sliceFile{}, fmt.Errorf("expected 1 frame, got %d", len(info.Frames))
	}
	img, err := info.Frames[0].GetImage()
	if err != nil {
		return sliceFile{}, fmt.Errorf("decode frame: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != sf.cols || bounds.Dy() != sf.rows {
		return sliceFile{}, fmt.Errorf("frame is %dx%d but header says %dx%d",
			bounds.Dx(), bounds.Dy(), sf.cols, sf.rows)
	}
	sf.pixels = make([]uint16, sf.rows*sf.cols)
	for y := 0; y < sf.rows; y++ {
		for x := 0; x < sf.cols; x++ {
			// For MONOCHROME frames the red channel carries the full
			// 16-bit sample.
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			sf.pixels[y*sf.cols+x] = uint16(r)
		}
	}
	return sf, nil
}

// stack orders the slices by (temporal position, instance number) and
// copies them into a 4-D image.
func stack(slices []sliceFile) (*nii.Image, error) {
	first := slices[0]
	temporalSet := make(map[int]bool)
	for _, sf := range slices {
		if sf.rows != first.rows || sf.cols != first.cols {
			return nil, fmt.Errorf("mixed slice dimensions within one series")
		}
		temporalSet[sf.temporal] = true
	}
	nt := len(temporalSet)
	if len(slices)%nt != 0 {
		return nil, fmt.Errorf("%d slices do not divide into %d temporal positions", len(slices), nt)
	}
	nz := len(slices) / nt

	sort.Slice(slices, func(i, j int) bool {
		if slices[i].temporal != slices[j].temporal {
			return slices[i].temporal < slices[j].temporal
		}
		return slices[i].instance < slices[j].instance
	})

	nx, ny := first.cols, first.rows
	dims := []int{nx, ny, nz}
	if nt > 1 {
		dims = append(dims, nt)
	}
	img, err := nii.New(nii.DTInt16, dims, nil)
	if err != nil {
		return nil, err
	}

	for i, sf := range slices {
		base := i * nx * ny // slices arrive in (t, z) order
		for p, v := range sf.pixels {
			if v > 0x7fff {
				v = 0x7fff
			}
			img.SetInt16(base+p, int16(v))
		}
	}
	return img, nil
}

func intTag(ds *dicom.Dataset, t tag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func stringTag(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	if v, ok := elem.Value.GetValue().([]string); ok && len(v) > 0 {
		return strings.TrimSpace(v[0]), true
	}
	return "", false
}

// pixelSpacing returns (row, column) spacing in mm, zeros when absent.
func pixelSpacing(ds *dicom.Dataset) (float64, float64) {
	elem, err := ds.FindElementByTag(tag.PixelSpacing)
	if err != nil {
		return 0, 0
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok || len(v) < 2 {
		return 0, 0
	}
	row, err1 := strconv.ParseFloat(strings.TrimSpace(v[0]), 64)
	col, err2 := strconv.ParseFloat(strings.TrimSpace(v[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return row, col
}

func floatTag(ds *dicom.Dataset, t tag.Tag) (float64, bool) {
	s, ok := stringTag(ds, t)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
