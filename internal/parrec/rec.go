package parrec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"parforge/internal/nii"
)

// Dataset is a fully loaded PAR/REC pair: the parsed header plus the pixel
// data assembled into a 4-D NIfTI image in acquisition-order volumes.
type Dataset struct {
	Header *Header
	Image  *nii.Image
}

// Load parses the PAR header at parPath and assembles the matching REC
// pixel file into a NIfTI image. The REC file is located next to the PAR,
// matching its case (.PAR/.REC or .par/.rec).
func Load(parPath string) (*Dataset, error) {
	hdr, err := LoadHeader(parPath)
	if err != nil {
		return nil, err
	}

	recPath, err := recPathFor(parPath)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(recPath)
	if err != nil {
		return nil, fmt.Errorf("read REC file: %w", err)
	}

	img, err := assemble(hdr, raw)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", parPath, err)
	}
	return &Dataset{Header: hdr, Image: img}, nil
}

func recPathFor(parPath string) (string, error) {
	ext := filepath.Ext(parPath)
	stem := strings.TrimSuffix(parPath, ext)
	for _, recExt := range []string{".REC", ".rec"} {
		p := stem + recExt
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no REC file next to %s", parPath)
}

// assemble places each REC slice into its (x, y, z, t) position. REC
// stores reconstructed slices back to back as little-endian integers, in
// the order given by the index-in-REC column.
func assemble(hdr *Header, raw []byte) (*nii.Image, error) {
	first := hdr.Rows[0]
	if first.PixelBits != 16 {
		return nil, fmt.Errorf("unsupported pixel size %d bits (only 16-bit REC data is supported)", first.PixelBits)
	}
	nx, ny := first.ReconX, first.ReconY
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("bad recon resolution %dx%d", nx, ny)
	}
	for _, row := range hdr.Rows {
		if row.ReconX != nx || row.ReconY != ny || row.PixelBits != first.PixelBits {
			return nil, fmt.Errorf("mixed slice geometry within one acquisition")
		}
	}

	nz := hdr.General.MaxSlices
	keys := hdr.volumeKeys()
	nt := len(keys)
	volOf := make(map[volumeKey]int, nt)
	for i, k := range keys {
		volOf[k] = i
	}

	sliceBytes := nx * ny * 2
	if want := sliceBytes * len(hdr.Rows); len(raw) < want {
		return nil, fmt.Errorf("REC file too short: have %d bytes, need %d", len(raw), want)
	}

	dims := []int{nx, ny, nz}
	if nt > 1 {
		dims = append(dims, nt)
	}
	img, err := nii.New(nii.DTInt16, dims, []float32{
		float32(first.PixelSpacingX),
		float32(first.PixelSpacingY),
		float32(first.SliceThickness + first.SliceGap),
		float32(hdr.General.RepetitionTimeMS / 1000.0),
	})
	if err != nil {
		return nil, err
	}
	img.Hdr.SclInter = float32(first.RescaleIntercept)
	img.Hdr.SclSlope = float32(first.RescaleSlope)
	img.Hdr.SetDescrip(hdr.General.ProtocolName)

	volBytes := sliceBytes * nz
	for _, row := range hdr.Rows {
		if row.Slice < 1 || row.Slice > nz {
			return nil, fmt.Errorf("slice number %d outside 1..%d", row.Slice, nz)
		}
		if row.RecIndex < 0 || (row.RecIndex+1)*sliceBytes > len(raw) {
			return nil, fmt.Errorf("REC index %d outside the pixel file", row.RecIndex)
		}
		vol := volOf[volumeKey{row.Dynamic, row.TypeMR, row.Echo, row.Sequence, row.CardiacPhase}]
		src := raw[row.RecIndex*sliceBytes : (row.RecIndex+1)*sliceBytes]
		dst := vol*volBytes + (row.Slice-1)*sliceBytes
		copy(img.Data[dst:dst+sliceBytes], src)
	}
	return img, nil
}
