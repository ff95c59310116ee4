package split

import (
	"fmt"

	"parforge/internal/nii"
)

// Materialize extracts each planned output from img and writes it as
// base+suffix+ext (ext is ".nii" or ".nii.gz"). It returns the paths
// written, in plan order.
//
// Writes are not transactional: on failure, outputs already written stay
// on disk and the error is returned for this acquisition. Re-running with
// the same inputs overwrites them deterministically.
func Materialize(img *nii.Image, base, ext string, plan Plan) ([]string, error) {
	total := img.Hdr.NVolumes()
	written := make([]string, 0, len(plan))

	for _, out := range plan {
		indices := out.Rule.Indices(total)
		if len(indices) == 0 {
			return written, fmt.Errorf("output %q selects no volumes from a %d-volume image", out.Suffix, total)
		}

		sub, err := img.ExtractVolumes(indices)
		if err != nil {
			return written, fmt.Errorf("extract volumes for %q: %w", out.Suffix, err)
		}

		path := base + out.Suffix + ext
		if err := sub.Write(path); err != nil {
			return written, fmt.Errorf("materialize %q: %w", out.Suffix, err)
		}
		written = append(written, path)
	}
	return written, nil
}
