package qc

import (
	"encoding/json"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"parforge/internal/nii"
)

func constantImage(t *testing.T, volumes int, value int16) *nii.Image {
	t.Helper()
	dims := []int{4, 4, 2}
	if volumes > 1 {
		dims = append(dims, volumes)
	}
	img, err := nii.New(nii.DTInt16, dims, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < len(img.Data)/2; i++ {
		img.SetInt16(i, value)
	}
	return img
}

func TestCompute_Constant3D(t *testing.T) {
	img := constantImage(t, 1, 42)
	s, err := Compute(img, "anat.nii")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if s.Mean != 42 || s.Min != 42 || s.Max != 42 {
		t.Errorf("stats = %+v, want all 42", s)
	}
	if s.StdDev != 0 {
		t.Errorf("StdDev = %v, want 0", s.StdDev)
	}
	if s.TSNR != 0 {
		t.Errorf("TSNR = %v, want 0 for 3-D image", s.TSNR)
	}
	if s.Volumes != 1 {
		t.Errorf("Volumes = %d, want 1", s.Volumes)
	}
}

func TestCompute_TSNR(t *testing.T) {
	// Two volumes of 10 and 20: voxel mean 15, stddev ~7.07, tSNR ~2.12.
	img := constantImage(t, 2, 0)
	nvox := img.Hdr.SpatialVoxels()
	for i := 0; i < nvox; i++ {
		img.SetInt16(i, 10)
		img.SetInt16(nvox+i, 20)
	}

	s, err := Compute(img, "bold.nii")
	if err != nil {
		t.Fatal(err)
	}
	if s.Mean != 15 {
		t.Errorf("Mean = %v, want 15", s.Mean)
	}
	want := 15 / (10 / math.Sqrt2) // sample stddev of {10,20}
	if math.Abs(s.TSNR-want) > 1e-9 {
		t.Errorf("TSNR = %v, want %v", s.TSNR, want)
	}
}

func TestWriteMontage(t *testing.T) {
	dir := t.TempDir()
	imgs := []*nii.Image{constantImage(t, 1, 100), constantImage(t, 1, 200)}

	path := filepath.Join(dir, "montage.png")
	if err := WriteMontage(imgs, path); err != nil {
		t.Fatalf("WriteMontage: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("montage is not a valid PNG: %v", err)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 256 || bounds.Dy() != 128 {
		t.Errorf("montage bounds = %v, want 256x128", bounds)
	}
}

func TestWriteMontage_Empty(t *testing.T) {
	if err := WriteMontage(nil, filepath.Join(t.TempDir(), "m.png")); err == nil {
		t.Error("empty montage should fail")
	}
}

func TestReportWriteJSON(t *testing.T) {
	dir := t.TempDir()
	r := Report{
		Source:      "sub-01_bold.PAR",
		Kind:        "dual",
		Ratio:       2,
		Interleaved: true,
		Outputs:     []ImageStats{{Path: "a.nii", Volumes: 5, Mean: 1}},
	}
	path := filepath.Join(dir, "qc.json")
	if err := r.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Report
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.Kind != "dual" || !got.Interleaved || len(got.Outputs) != 1 {
		t.Errorf("round-tripped report = %+v", got)
	}
}
