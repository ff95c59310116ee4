package nii

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// Image is a NIfTI-1 image: the parsed header plus the raw voxel payload
// in on-disk byte order.
type Image struct {
	Hdr   Header
	Data  []byte
	Order binary.ByteOrder
}

// New creates an image with the given datatype and up-to-4-D shape, with a
// zeroed voxel payload. pixdim entries map to dims; missing entries default
// to 1.0.
func New(datatype int16, dims []int, pixdim []float32) (*Image, error) {
	if len(dims) < 3 || len(dims) > 4 {
		return nil, fmt.Errorf("nii: need 3 or 4 dimensions, got %d", len(dims))
	}
	bitpix, ok := bitpixFor(datatype)
	if !ok {
		return nil, fmt.Errorf("nii: unsupported datatype code %d", datatype)
	}

	img := &Image{Order: binary.LittleEndian}
	h := &img.Hdr
	h.SizeofHdr = HeaderSize
	h.RegularOld = 'r'
	h.Datatype = datatype
	h.Bitpix = bitpix
	h.SclSlope = 1
	h.VoxOffset = DefaultVoxOffset
	h.Magic = [4]byte{'n', '+', '1', 0}
	h.XyztUnits = 2 | 8 // mm, seconds

	h.Dim[0] = int16(len(dims))
	nvox := 1
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("nii: dimension %d must be positive, got %d", i+1, d)
		}
		h.Dim[i+1] = int16(d)
		nvox *= d
	}
	for i := len(dims) + 1; i < 8; i++ {
		h.Dim[i] = 1
	}
	for i := range h.Pixdim {
		h.Pixdim[i] = 1
	}
	for i, p := range pixdim {
		if i+1 < len(h.Pixdim) {
			h.Pixdim[i+1] = p
		}
	}

	img.Data = make([]byte, nvox*int(bitpix)/8)
	return img, nil
}

func bitpixFor(datatype int16) (int16, bool) {
	switch datatype {
	case DTUint8:
		return 8, true
	case DTInt16, DTUint16:
		return 16, true
	case DTInt32, DTFloat32:
		return 32, true
	case DTFloat64:
		return 64, true
	}
	return 0, false
}

// Read loads a .nii or .nii.gz image from disk. Gzip compression is
// detected from the file content, not the extension.
func Read(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	head := make([]byte, 2)
	if _, err := io.ReadFull(f, head); err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	if head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", path, err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	img, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse image %s: %w", path, err)
	}
	return img, nil
}

// Decode parses a complete uncompressed NIfTI-1 byte stream.
func Decode(raw []byte) (*Image, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("nii: file too short for header (%d bytes)", len(raw))
	}

	// sizeof_hdr doubles as the byte-order probe: it must decode to 348
	// in exactly one of the two orders.
	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(raw[:4]) != HeaderSize {
		if binary.BigEndian.Uint32(raw[:4]) != HeaderSize {
			return nil, fmt.Errorf("nii: bad sizeof_hdr, not a NIfTI-1 file")
		}
		order = binary.BigEndian
	}

	var h Header
	if err := binary.Read(bytes.NewReader(raw[:HeaderSize]), order, &h); err != nil {
		return nil, fmt.Errorf("nii: decode header: %w", err)
	}
	if h.Magic != [4]byte{'n', '+', '1', 0} {
		if h.Magic == [4]byte{'n', 'i', '1', 0} {
			return nil, fmt.Errorf("nii: two-file (.hdr/.img) images are not supported")
		}
		return nil, fmt.Errorf("nii: bad magic %q", h.Magic[:3])
	}
	if _, ok := bitpixFor(h.Datatype); !ok {
		return nil, fmt.Errorf("nii: unsupported datatype code %d", h.Datatype)
	}

	offset := int(h.VoxOffset)
	if offset < HeaderSize || offset > len(raw) {
		return nil, fmt.Errorf("nii: vox_offset %d out of range", offset)
	}
	want := h.VolumeBytes() * h.NVolumes()
	if len(raw)-offset < want {
		return nil, fmt.Errorf("nii: truncated voxel data: have %d bytes, need %d", len(raw)-offset, want)
	}

	data := make([]byte, want)
	copy(data, raw[offset:offset+want])
	return &Image{Hdr: h, Data: data, Order: order}, nil
}

// Write stores the image at path. A ".gz" suffix selects gzip compression.
// Output bytes are deterministic for identical inputs.
func (img *Image) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer func() { _ = f.Close() }()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := img.encode(w); err != nil {
		return fmt.Errorf("write image %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("write image %s: %w", path, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write image %s: %w", path, err)
	}
	return nil
}

func (img *Image) encode(w io.Writer) error {
	h := img.Hdr
	h.SizeofHdr = HeaderSize
	h.VoxOffset = DefaultVoxOffset
	h.Magic = [4]byte{'n', '+', '1', 0}

	order := img.Order
	if order == nil {
		order = binary.LittleEndian
	}
	if err := binary.Write(w, order, &h); err != nil {
		return err
	}
	// Extender: no header extensions.
	if _, err := w.Write([]byte{0, 0, 0, 0}); err != nil {
		return err
	}
	_, err := w.Write(img.Data)
	return err
}
