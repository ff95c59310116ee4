package split

// Output suffixes appended to the base name of each materialized file.
const (
	SuffixMagnitude = ""
	SuffixPhase     = "_ph"
	SuffixInv1Mag   = "_inv-1_part-mag"
	SuffixInv1Phase = "_inv-1_part-phase"
	SuffixInv2Mag   = "_inv-2_part-mag"
	SuffixInv2Phase = "_inv-2_part-phase"
)

// Rule selects volumes from the 4th dimension. Stride > 0 selects every
// Stride-th volume from Start to the end of the image; Stride == 0 selects
// the contiguous range [Start, Start+Count).
type Rule struct {
	Start  int
	Stride int
	Count  int
}

// Indices expands the rule against an image with total volumes.
func (r Rule) Indices(total int) []int {
	var out []int
	if r.Stride > 0 {
		for i := r.Start; i < total; i += r.Stride {
			out = append(out, i)
		}
		return out
	}
	for i := r.Start; i < r.Start+r.Count && i < total; i++ {
		out = append(out, i)
	}
	return out
}

// Output pairs a filename suffix with the rule that selects its volumes.
type Output struct {
	Suffix string
	Rule   Rule
}

// Plan is the ordered set of outputs for one acquisition. Order is part of
// the contract: files are written first-to-last so logs and reruns are
// deterministic.
type Plan []Output

// BuildPlan maps an acquisition kind and ordering to concrete volume
// selections. It is a pure function; all validation happens in Classify
// and DetectInterleave.
func BuildPlan(kind Kind, interleaved bool, declaredDynamics, actualVolumes int) Plan {
	switch kind {
	case KindDual:
		if interleaved {
			return Plan{
				{Suffix: SuffixMagnitude, Rule: Rule{Start: 0, Stride: 2}},
				{Suffix: SuffixPhase, Rule: Rule{Start: 1, Stride: 2}},
			}
		}
		return Plan{
			{Suffix: SuffixMagnitude, Rule: Rule{Start: 0, Count: declaredDynamics}},
			{Suffix: SuffixPhase, Rule: Rule{Start: declaredDynamics, Count: actualVolumes - declaredDynamics}},
		}

	case KindQuad:
		if interleaved {
			// Repeating unit on disk: inv1-mag, inv2-mag, inv1-phase,
			// inv2-phase. Output order pairs each inversion with its own
			// phase.
			return Plan{
				{Suffix: SuffixInv1Mag, Rule: Rule{Start: 0, Stride: 4}},
				{Suffix: SuffixInv1Phase, Rule: Rule{Start: 2, Stride: 4}},
				{Suffix: SuffixInv2Mag, Rule: Rule{Start: 1, Stride: 4}},
				{Suffix: SuffixInv2Phase, Rule: Rule{Start: 3, Stride: 4}},
			}
		}
		// Block-ordered blocks follow the same unit order, one block of
		// declaredDynamics volumes each. The final block runs to the end
		// of the image.
		d := declaredDynamics
		return Plan{
			{Suffix: SuffixInv1Mag, Rule: Rule{Start: 0, Count: d}},
			{Suffix: SuffixInv1Phase, Rule: Rule{Start: 2 * d, Count: d}},
			{Suffix: SuffixInv2Mag, Rule: Rule{Start: d, Count: d}},
			{Suffix: SuffixInv2Phase, Rule: Rule{Start: 3 * d, Count: actualVolumes - 3*d}},
		}
	}

	// KindSingle: the converted image is already final.
	return Plan{{Suffix: SuffixMagnitude, Rule: Rule{Start: 0, Count: actualVolumes}}}
}
