package tests

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"parforge/internal/bids"
	"parforge/internal/config"
	"parforge/internal/nii"
	"parforge/internal/runner"
	"parforge/internal/split"
	"parforge/internal/testsupport"
)

func newRunner(cfg *config.Config) *runner.Runner {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return runner.New(cfg, log, "integration")
}

// TestPipeline_PARRECWithPhase converts a phase-interleaved PAR/REC
// acquisition through the whole library pipeline and checks voxel
// values and sidecar content on disk.
func TestPipeline_PARRECWithPhase(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.Gzip = false

	src := testsupport.WritePARREC(t, t.TempDir(), "bold", testsupport.PARRECOptions{
		Protocol: "BOLD fMRI",
		Dynamics: 4,
		TRms:     1500,
		Volumes:  testsupport.BoldWithPhase(4),
	})

	res := newRunner(cfg).Run([]string{src})[0]
	if res.Err != nil {
		t.Fatalf("pipeline failed: %v", res.Err)
	}
	if res.Kind != split.KindDual || !res.Interleaved {
		t.Fatalf("got kind=%v interleaved=%v, want dual interleaved", res.Kind, res.Interleaved)
	}

	// Magnitude volumes carry 2d, phase volumes 2d+1 (d = dynamic index).
	magImg, err := nii.Read(filepath.Join(cfg.Output.Dir, "bold.nii"))
	if err != nil {
		t.Fatalf("read magnitude output: %v", err)
	}
	if got := magImg.Hdr.NVolumes(); got != 4 {
		t.Fatalf("magnitude output has %d volumes, want 4", got)
	}
	for d := 0; d < 4; d++ {
		vals, err := magImg.VolumeFloat64(d)
		if err != nil {
			t.Fatal(err)
		}
		if want := float64(2 * (d + 1)); vals[0] != want {
			t.Errorf("magnitude volume %d = %v, want %v", d, vals[0], want)
		}
	}
	phImg, err := nii.Read(filepath.Join(cfg.Output.Dir, "bold_ph.nii"))
	if err != nil {
		t.Fatalf("read phase output: %v", err)
	}
	for d := 0; d < 4; d++ {
		vals, err := phImg.VolumeFloat64(d)
		if err != nil {
			t.Fatal(err)
		}
		if want := float64(2*(d+1) + 1); vals[0] != want {
			t.Errorf("phase volume %d = %v, want %v", d, vals[0], want)
		}
	}

	// Sidecars carry the header facts in seconds.
	raw, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "bold.json"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var sidecar bids.Sidecar
	if err := json.Unmarshal(raw, &sidecar); err != nil {
		t.Fatalf("parse sidecar: %v", err)
	}
	if sidecar.RepetitionTime != 1.5 {
		t.Errorf("RepetitionTime = %v, want 1.5", sidecar.RepetitionTime)
	}
	if sidecar.ProtocolName != "BOLD fMRI" {
		t.Errorf("ProtocolName = %q", sidecar.ProtocolName)
	}
	if sidecar.Manufacturer != "Philips" {
		t.Errorf("Manufacturer = %q", sidecar.Manufacturer)
	}

	// QC report references both outputs.
	raw, err = os.ReadFile(filepath.Join(cfg.Output.Dir, "bold_qc.json"))
	if err != nil {
		t.Fatalf("read qc report: %v", err)
	}
	var report struct {
		Outputs []struct {
			Mean float64 `json:"mean"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("parse qc report: %v", err)
	}
	if len(report.Outputs) != 2 {
		t.Errorf("qc report has %d outputs, want 2", len(report.Outputs))
	}
}

// TestPipeline_DICOMSeries converts a directory of single-frame DICOM
// slices end to end.
func TestPipeline_DICOMSeries(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.Gzip = false
	cfg.QC.Enabled = false

	srcDir := filepath.Join(t.TempDir(), "SE000000")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteDICOMSeries(t, srcDir, testsupport.DICOMSeriesOptions{
		Rows:     6,
		Cols:     4,
		Slices:   3,
		Temporal: 2,
		Protocol: "T1 survey",
		TRms:     2200,
		Value:    func(z, tp int) uint16 { return uint16(100*tp + z) },
	})

	res := newRunner(cfg).Run([]string{srcDir})[0]
	if res.Err != nil {
		t.Fatalf("pipeline failed: %v", res.Err)
	}
	// One reconstruction per series: no split.
	if res.Kind != split.KindSingle {
		t.Fatalf("got kind=%v, want single", res.Kind)
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("got %d outputs, want 1", len(res.Outputs))
	}

	img, err := nii.Read(res.Outputs[0])
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := img.Hdr.NVolumes(); got != 2 {
		t.Errorf("output has %d volumes, want 2", got)
	}
	vals, err := img.VolumeFloat64(1)
	if err != nil {
		t.Fatal(err)
	}
	if vals[0] != 100 {
		t.Errorf("volume 1 first voxel = %v, want 100", vals[0])
	}
}

// TestPipeline_GzipOutputs checks that the default gzip extension
// produces files nii.Read can open.
func TestPipeline_GzipOutputs(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.QC.Enabled = false

	src := testsupport.WritePARREC(t, t.TempDir(), "rest", testsupport.PARRECOptions{
		Dynamics: 2,
		Volumes: []testsupport.Volume{
			{Dynamic: 1, TypeMR: 0, Value: 7},
			{Dynamic: 2, TypeMR: 0, Value: 9},
		},
	})

	res := newRunner(cfg).Run([]string{src})[0]
	if res.Err != nil {
		t.Fatalf("pipeline failed: %v", res.Err)
	}
	want := filepath.Join(cfg.Output.Dir, "rest.nii.gz")
	if res.Outputs[0] != want {
		t.Fatalf("output = %s, want %s", res.Outputs[0], want)
	}
	img, err := nii.Read(want)
	if err != nil {
		t.Fatalf("read gzip output: %v", err)
	}
	vals, err := img.VolumeFloat64(1)
	if err != nil {
		t.Fatal(err)
	}
	if vals[0] != 9 {
		t.Errorf("volume 1 = %v, want 9", vals[0])
	}
}
