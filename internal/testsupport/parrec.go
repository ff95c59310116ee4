// Package testsupport builds small scanner-export fixtures for tests.
package testsupport

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Volume describes one reconstructed volume of a synthetic PAR/REC
// acquisition, in acquisition order.
type Volume struct {
	Dynamic int
	TypeMR  int   // 0 = magnitude, 3 = phase
	Value   int16 // fill value for every voxel of this volume
}

// PARRECOptions parameterizes WritePARREC.
type PARRECOptions struct {
	Protocol string
	X, Y     int
	Slices   int
	Dynamics int // declared "Max. number of dynamics"
	TRms     float64
	Volumes  []Volume
}

// WritePARREC writes <stem>.PAR and <stem>.REC under dir and returns the
// PAR path. Each volume's voxels all hold its Value so tests can identify
// volumes after splitting.
func WritePARREC(t *testing.T, dir, stem string, opts PARRECOptions) string {
	t.Helper()

	if opts.X == 0 {
		opts.X = 4
	}
	if opts.Y == 0 {
		opts.Y = 4
	}
	if opts.Slices == 0 {
		opts.Slices = 2
	}
	if opts.TRms == 0 {
		opts.TRms = 2000
	}
	if opts.Protocol == "" {
		opts.Protocol = "test protocol"
	}

	var par strings.Builder
	par.WriteString("# === GENERAL INFORMATION ========================================================\n")
	fmt.Fprintf(&par, ".    Patient name                       :   sub-test\n")
	fmt.Fprintf(&par, ".    Protocol name                      :   %s\n", opts.Protocol)
	fmt.Fprintf(&par, ".    Technique                          :   FEEPI\n")
	fmt.Fprintf(&par, ".    Max. number of slices/locations    :   %d\n", opts.Slices)
	fmt.Fprintf(&par, ".    Max. number of dynamics            :   %d\n", opts.Dynamics)
	fmt.Fprintf(&par, ".    Repetition time [ms]               :   %.3f\n", opts.TRms)
	par.WriteString("# === IMAGE INFORMATION ==========================================================\n")
	par.WriteString("#  sl ec  dyn ph ty    idx pix scan% rec size                 (x y)\n")

	sliceVox := opts.X * opts.Y
	rec := make([]byte, 0, len(opts.Volumes)*opts.Slices*sliceVox*2)
	recIndex := 0
	for _, vol := range opts.Volumes {
		for s := 1; s <= opts.Slices; s++ {
			fmt.Fprintf(&par,
				"%3d %2d %4d %2d %d %d %5d %3d 100 %4d %4d 0.00 1.00 1.00 1070 1860 0.00 0.00 0.00 0.00 0.00 0.00 3.00 0.30 0 3 0 2 3.500 3.500 30.00\n",
				s, 1, vol.Dynamic, 1, vol.TypeMR, 0, recIndex, 16, opts.X, opts.Y)
			for i := 0; i < sliceVox; i++ {
				rec = binary.LittleEndian.AppendUint16(rec, uint16(vol.Value))
			}
			recIndex++
		}
	}

	parPath := filepath.Join(dir, stem+".PAR")
	if err := os.WriteFile(parPath, []byte(par.String()), 0o644); err != nil {
		t.Fatalf("write PAR fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".REC"), rec, 0o644); err != nil {
		t.Fatalf("write REC fixture: %v", err)
	}
	return parPath
}

// BoldWithPhase returns the volume list of a functional acquisition with
// interleaved magnitude/phase across the given number of dynamics.
func BoldWithPhase(dynamics int) []Volume {
	var vols []Volume
	for d := 1; d <= dynamics; d++ {
		vols = append(vols, Volume{Dynamic: d, TypeMR: 0, Value: int16(2 * d)})
		vols = append(vols, Volume{Dynamic: d, TypeMR: 3, Value: int16(2*d + 1)})
	}
	return vols
}
