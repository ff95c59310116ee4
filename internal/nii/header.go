// Package nii reads and writes NIfTI-1 images.
//
// Only the single-file variant (.nii / .nii.gz, magic "n+1") is supported:
// that is what every converter in the surrounding pipeline produces and
// consumes. The voxel payload is kept as raw bytes so that images can be
// split along the 4th dimension without a decode/encode round trip.
//
// Header layout follows the official nifti1.h definition,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nii

// HeaderSize is the fixed size of a NIfTI-1 header in bytes.
const HeaderSize = 348

// DefaultVoxOffset is the voxel data offset for a single-file NIfTI-1
// image with no header extensions (348-byte header + 4-byte extender).
const DefaultVoxOffset = 352

// NIfTI-1 datatype codes (subset used by MR conversions).
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTUint16  int16 = 512
)

// Header is the 348-byte NIfTI-1 header.
//
// Field sizes mirror the C struct exactly so the whole header can be read
// and written with encoding/binary in one call.
type Header struct {
	SizeofHdr    int32
	DataTypeOld  [10]byte
	DBNameOld    [18]byte
	ExtentsOld   int32
	SessionError int16
	RegularOld   byte
	DimInfo      byte

	Dim        [8]int16
	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentCode int16
	Datatype   int16
	Bitpix     int16
	SliceStart int16
	Pixdim     [8]float32
	VoxOffset  float32
	SclSlope   float32
	SclInter   float32
	SliceEnd   int16
	SliceCode  byte
	XyztUnits  byte
	CalMax     float32
	CalMin     float32
	SliceDur   float32
	Toffset    float32
	Glmax      int32
	Glmin      int32

	Descrip [80]byte
	AuxFile [24]byte

	QformCode int16
	SformCode int16
	QuaternB  float32
	QuaternC  float32
	QuaternD  float32
	QoffsetX  float32
	QoffsetY  float32
	QoffsetZ  float32
	SrowX     [4]float32
	SrowY     [4]float32
	SrowZ     [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// NVolumes returns the size of the 4th dimension, treating 3-D images as
// a single volume.
func (h *Header) NVolumes() int {
	if h.Dim[0] < 4 || h.Dim[4] <= 1 {
		return 1
	}
	return int(h.Dim[4])
}

// SpatialVoxels returns the number of voxels in one 3-D volume.
func (h *Header) SpatialVoxels() int {
	n := 1
	for i := 1; i <= 3; i++ {
		if h.Dim[i] > 0 {
			n *= int(h.Dim[i])
		}
	}
	return n
}

// BytesPerVoxel returns the storage size of a single voxel.
func (h *Header) BytesPerVoxel() int {
	return int(h.Bitpix) / 8
}

// VolumeBytes returns the storage size of one 3-D volume.
func (h *Header) VolumeBytes() int {
	return h.SpatialVoxels() * h.BytesPerVoxel()
}

// SetDescrip stores s in the fixed-size descrip field, truncating if needed.
func (h *Header) SetDescrip(s string) {
	h.Descrip = [80]byte{}
	copy(h.Descrip[:79], s)
}
