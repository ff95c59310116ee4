package qc

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"parforge/internal/nii"
)

// tileSize is the square tile edge each slice is scaled to in the montage.
const tileSize = 128

// WriteMontage renders the middle axial slice of the first volume of each
// image side by side into a PNG at path. Intensities are windowed to each
// slice's own maximum so phase and magnitude images are both visible.
func WriteMontage(images []*nii.Image, path string) error {
	if len(images) == 0 {
		return fmt.Errorf("montage: no images")
	}

	out := image.NewGray16(image.Rect(0, 0, tileSize*len(images), tileSize))
	for i, img := range images {
		tile, err := middleSliceGray(img)
		if err != nil {
			return fmt.Errorf("montage tile %d: %w", i, err)
		}
		dst := image.Rect(i*tileSize, 0, (i+1)*tileSize, tileSize)
		draw.BiLinear.Scale(out, dst, tile, tile.Bounds(), draw.Src, nil)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create montage: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("encode montage %s: %w", path, err)
	}
	return f.Close()
}

// middleSliceGray extracts the central z slice of volume 0, scaled so the
// slice maximum maps to full white.
func middleSliceGray(img *nii.Image) (*image.Gray16, error) {
	vals, err := img.VolumeFloat64(0)
	if err != nil {
		return nil, err
	}
	nx, ny := int(img.Hdr.Dim[1]), int(img.Hdr.Dim[2])
	nz := int(img.Hdr.Dim[3])
	if nz < 1 {
		nz = 1
	}
	slice := vals[(nz/2)*nx*ny : (nz/2+1)*nx*ny]

	maxVal := 0.0
	for _, v := range slice {
		if v > maxVal {
			maxVal = v
		}
	}

	out := image.NewGray16(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := slice[y*nx+x]
			out.SetGray16(x, y, color.Gray16{Y: window(v, maxVal)})
		}
	}
	return out, nil
}

// window maps an intensity to 16-bit grayscale against the slice maximum,
// clipping negatives (phase data is re-centered by its own offset).
func window(v, maxVal float64) uint16 {
	if v <= 0 || maxVal <= 0 {
		return 0
	}
	return uint16(65535 * v / maxVal)
}
