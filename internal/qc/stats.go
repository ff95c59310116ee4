// Package qc computes quality-control summaries for converted images: per
// output intensity statistics and a slice montage for eyeballing.
package qc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"parforge/internal/nii"
)

// ImageStats summarizes one converted output image.
type ImageStats struct {
	Path    string  `json:"path"`
	Volumes int     `json:"volumes"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stdDev"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	// TSNR is the mean over voxels of temporal mean / temporal stddev;
	// zero for 3-D outputs where it is undefined.
	TSNR float64 `json:"tSNR,omitempty"`
}

// Compute derives statistics over every voxel of every volume.
func Compute(img *nii.Image, path string) (ImageStats, error) {
	nt := img.Hdr.NVolumes()
	nvox := img.Hdr.SpatialVoxels()

	all := make([]float64, 0, nt*nvox)
	volumes := make([][]float64, nt)
	for t := 0; t < nt; t++ {
		vals, err := img.VolumeFloat64(t)
		if err != nil {
			return ImageStats{}, fmt.Errorf("qc stats for %s: %w", path, err)
		}
		volumes[t] = vals
		all = append(all, vals...)
	}

	s := ImageStats{
		Path:    path,
		Volumes: nt,
		Mean:    stat.Mean(all, nil),
		StdDev:  stat.StdDev(all, nil),
		Min:     math.Inf(1),
		Max:     math.Inf(-1),
	}
	for _, v := range all {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if nt > 1 {
		s.TSNR = tsnr(volumes, nvox)
	}
	return s, nil
}

// tsnr averages voxelwise mean/stddev across the volume, skipping voxels
// with no temporal variance (constant background).
func tsnr(volumes [][]float64, nvox int) float64 {
	series := make([]float64, len(volumes))
	var sum float64
	var n int
	for i := 0; i < nvox; i++ {
		for t := range volumes {
			series[t] = volumes[t][i]
		}
		mean, std := stat.MeanStdDev(series, nil)
		if std > 0 {
			sum += mean / std
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
