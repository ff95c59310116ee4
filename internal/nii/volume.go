package nii

import (
	"fmt"
	"math"
)

// ExtractVolumes returns a new image containing the selected 4th-dimension
// volumes, in the order given. Spatial geometry, datatype, scaling and
// orientation fields are inherited from the source header.
func (img *Image) ExtractVolumes(indices []int) (*Image, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("nii: no volumes selected")
	}
	nt := img.Hdr.NVolumes()
	volBytes := img.Hdr.VolumeBytes()

	out := &Image{Hdr: img.Hdr, Order: img.Order}
	if len(indices) > 1 {
		out.Hdr.Dim[0] = 4
		out.Hdr.Dim[4] = int16(len(indices))
	} else {
		out.Hdr.Dim[0] = 3
		out.Hdr.Dim[4] = 1
	}

	out.Data = make([]byte, volBytes*len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= nt {
			return nil, fmt.Errorf("nii: volume index %d out of range [0,%d)", idx, nt)
		}
		copy(out.Data[i*volBytes:(i+1)*volBytes], img.Data[idx*volBytes:(idx+1)*volBytes])
	}
	return out, nil
}

// VolumeFloat64 decodes one 3-D volume to float64 values with
// scl_slope/scl_inter applied. A zero slope means unscaled, per the NIfTI
// convention.
func (img *Image) VolumeFloat64(t int) ([]float64, error) {
	nt := img.Hdr.NVolumes()
	if t < 0 || t >= nt {
		return nil, fmt.Errorf("nii: volume index %d out of range [0,%d)", t, nt)
	}

	nvox := img.Hdr.SpatialVoxels()
	bpv := img.Hdr.BytesPerVoxel()
	raw := img.Data[t*img.Hdr.VolumeBytes():]

	slope := float64(img.Hdr.SclSlope)
	inter := float64(img.Hdr.SclInter)
	if slope == 0 {
		slope, inter = 1, 0
	}

	out := make([]float64, nvox)
	for i := 0; i < nvox; i++ {
		b := raw[i*bpv:]
		var v float64
		switch img.Hdr.Datatype {
		case DTUint8:
			v = float64(b[0])
		case DTInt16:
			v = float64(int16(img.Order.Uint16(b)))
		case DTUint16:
			v = float64(img.Order.Uint16(b))
		case DTInt32:
			v = float64(int32(img.Order.Uint32(b)))
		case DTFloat32:
			v = float64(math.Float32frombits(img.Order.Uint32(b)))
		case DTFloat64:
			v = math.Float64frombits(img.Order.Uint64(b))
		default:
			return nil, fmt.Errorf("nii: unsupported datatype code %d", img.Hdr.Datatype)
		}
		out[i] = v*slope + inter
	}
	return out, nil
}

// SetInt16 stores a little-endian int16 voxel value at linear index i.
// Converters use it when assembling images from scanner exports.
func (img *Image) SetInt16(i int, v int16) {
	img.Order.PutUint16(img.Data[i*2:], uint16(v))
}
