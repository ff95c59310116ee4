package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// DICOMSeriesOptions parameterizes WriteDICOMSeries.
type DICOMSeriesOptions struct {
	Rows, Cols int
	Slices     int
	Temporal   int // temporal positions; 0 or 1 writes no temporal tag
	Protocol   string
	TRms       float64
	// Value returns the fill value for a slice (z and t are 0-based).
	Value func(z, t int) uint16
}

// WriteDICOMSeries writes one single-frame MR file per (slice, temporal
// position) under dir, the way a scanner export does.
func WriteDICOMSeries(t *testing.T, dir string, opts DICOMSeriesOptions) {
	t.Helper()

	if opts.Rows == 0 {
		opts.Rows = 4
	}
	if opts.Cols == 0 {
		opts.Cols = 4
	}
	if opts.Slices == 0 {
		opts.Slices = 2
	}
	if opts.Temporal == 0 {
		opts.Temporal = 1
	}
	if opts.TRms == 0 {
		opts.TRms = 2000
	}
	if opts.Protocol == "" {
		opts.Protocol = "test protocol"
	}
	if opts.Value == nil {
		opts.Value = func(z, t int) uint16 { return uint16(100 + z + 10*t) }
	}

	instance := 1
	for tp := 1; tp <= opts.Temporal; tp++ {
		for z := 0; z < opts.Slices; z++ {
			path := filepath.Join(dir, fmt.Sprintf("IMG%04d.dcm", instance))
			writeSlice(t, path, opts, z, tp, instance)
			instance++
		}
	}
}

func writeSlice(t *testing.T, path string, opts DICOMSeriesOptions, z, tp, instance int) {
	t.Helper()

	pixelsPerFrame := opts.Rows * opts.Cols
	nativeFrame := frame.NewNativeFrame[uint16](16, opts.Rows, opts.Cols, pixelsPerFrame, 1)
	fill := opts.Value(z, tp-1)
	for i := 0; i < pixelsPerFrame; i++ {
		nativeFrame.RawData[i] = fill
	}

	elements := []*dicom.Element{
		mustNewElement(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.4"}),
		mustNewElement(t, tag.SOPInstanceUID, []string{fmt.Sprintf("1.2.826.0.1.3680043.9999.1.%d", instance)}),
		mustNewElement(t, tag.Modality, []string{"MR"}),
		mustNewElement(t, tag.ProtocolName, []string{opts.Protocol}),
		mustNewElement(t, tag.Manufacturer, []string{"Philips"}),
		mustNewElement(t, tag.InstanceNumber, []string{fmt.Sprintf("%d", instance)}),
		mustNewElement(t, tag.RepetitionTime, []string{fmt.Sprintf("%.6g", opts.TRms)}),
		mustNewElement(t, tag.EchoTime, []string{"30"}),
		mustNewElement(t, tag.PixelSpacing, []string{"3.5", "3.5"}),
		mustNewElement(t, tag.SliceThickness, []string{"3"}),
		mustNewElement(t, tag.Rows, []int{opts.Rows}),
		mustNewElement(t, tag.Columns, []int{opts.Cols}),
		mustNewElement(t, tag.BitsAllocated, []int{16}),
		mustNewElement(t, tag.BitsStored, []int{16}),
		mustNewElement(t, tag.HighBit, []int{15}),
		mustNewElement(t, tag.PixelRepresentation, []int{0}),
		mustNewElement(t, tag.SamplesPerPixel, []int{1}),
		mustNewElement(t, tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
	}
	if opts.Temporal > 1 {
		elements = append(elements, mustNewElement(t, tag.TemporalPositionIdentifier, []string{fmt.Sprintf("%d", tp)}))
	}
	elements = append(elements, mustNewElement(t, tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
	}))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create DICOM fixture: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		t.Fatalf("write DICOM fixture %s: %v", path, err)
	}
}

func mustNewElement(t *testing.T, tg tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, value)
	if err != nil {
		t.Fatalf("create element %v: %v", tg, err)
	}
	return elem
}
