// Package split decides whether a converted 4-D image carries extra
// magnitude/phase content and, if so, how to pull it apart into separate
// output volumes.
//
// Philips exports interleave or block-concatenate the extra channels into
// the converted image: a functional scan acquired with phase reconstruction
// comes out with twice the declared number of dynamics, an MP2RAGE with
// four times (two inversions, each magnitude + phase). Classification is a
// pure function of the declared dynamic count and the real 4th-dimension
// size; the per-volume image-type column from the source header settles the
// ordering.
package split

import (
	"errors"
	"fmt"
)

// Kind is the channel multiplicity of a converted acquisition.
type Kind int

const (
	// KindSingle means the image is the final output as-is.
	KindSingle Kind = iota + 1
	// KindDual means magnitude + phase (e.g. BOLD with phase recon).
	KindDual
	// KindQuad means two inversions, each magnitude + phase (MP2RAGE).
	KindQuad
)

// String returns a short lowercase name for logs.
func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindDual:
		return "dual"
	case KindQuad:
		return "quad"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classification errors. Each aborts the current acquisition only; batch
// callers log and continue with their siblings.
var (
	ErrInvalidVolumeCount   = errors.New("volume count does not divide declared dynamics")
	ErrUnsupportedRatio     = errors.New("unsupported volume/dynamic ratio")
	ErrHeaderColumnTooShort = errors.New("image type column too short")
)

// Classify derives the acquisition kind from the header-declared dynamic
// count and the actual 4th-dimension size of the converted image. The
// returned ratio is actualVolumes/declaredDynamics.
func Classify(declaredDynamics, actualVolumes int) (Kind, int, error) {
	if declaredDynamics <= 0 {
		return 0, 0, fmt.Errorf("%w: declared dynamics %d must be positive", ErrInvalidVolumeCount, declaredDynamics)
	}
	if actualVolumes <= 0 || actualVolumes%declaredDynamics != 0 {
		return 0, 0, fmt.Errorf("%w: %d volumes for %d dynamics", ErrInvalidVolumeCount, actualVolumes, declaredDynamics)
	}

	ratio := actualVolumes / declaredDynamics
	switch ratio {
	case 1:
		return KindSingle, 1, nil
	case 2:
		return KindDual, 2, nil
	case 4:
		return KindQuad, 4, nil
	default:
		return 0, ratio, fmt.Errorf("%w: found %dx the declared dynamics", ErrUnsupportedRatio, ratio)
	}
}

// DetectInterleave reports whether the extra channels alternate
// volume-by-volume rather than being grouped in contiguous blocks.
//
// imageTypes holds one image-type code per volume in acquisition order
// (0 = magnitude, 3 = phase by Philips convention). If the value at
// position 0 matches the value at the repeating unit's second canonical
// position, all volumes of one type come first and the data is
// block-ordered; if they differ, the types alternate.
func DetectInterleave(imageTypes []int, kind Kind) (bool, error) {
	var second int
	switch kind {
	case KindDual:
		second = 1
	case KindQuad:
		second = 2
	default:
		return false, fmt.Errorf("interleave detection is undefined for %s acquisitions", kind)
	}

	if len(imageTypes) <= second {
		return false, fmt.Errorf("%w: have %d entries, need at least %d", ErrHeaderColumnTooShort, len(imageTypes), second+1)
	}
	return imageTypes[0] != imageTypes[second], nil
}
