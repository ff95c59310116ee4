package split

import (
	"reflect"
	"testing"
)

func TestRuleIndices(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		total int
		want  []int
	}{
		{"stride from zero", Rule{Start: 0, Stride: 2}, 10, []int{0, 2, 4, 6, 8}},
		{"stride from one", Rule{Start: 1, Stride: 2}, 10, []int{1, 3, 5, 7, 9}},
		{"stride of four", Rule{Start: 2, Stride: 4}, 8, []int{2, 6}},
		{"contiguous", Rule{Start: 5, Count: 5}, 10, []int{5, 6, 7, 8, 9}},
		{"contiguous clamped", Rule{Start: 8, Count: 5}, 10, []int{8, 9}},
		{"single volume", Rule{Start: 3, Count: 1}, 4, []int{3}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.rule.Indices(tc.total)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Indices(%d) = %v, want %v", tc.total, got, tc.want)
			}
		})
	}
}

func TestBuildPlan_DualInterleaved(t *testing.T) {
	plan := BuildPlan(KindDual, true, 5, 10)

	want := Plan{
		{Suffix: "", Rule: Rule{Start: 0, Stride: 2}},
		{Suffix: "_ph", Rule: Rule{Start: 1, Stride: 2}},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Fatalf("BuildPlan(dual, interleaved) = %+v, want %+v", plan, want)
	}

	if got := plan[0].Rule.Indices(10); !reflect.DeepEqual(got, []int{0, 2, 4, 6, 8}) {
		t.Errorf("magnitude indices = %v", got)
	}
	if got := plan[1].Rule.Indices(10); !reflect.DeepEqual(got, []int{1, 3, 5, 7, 9}) {
		t.Errorf("phase indices = %v", got)
	}
}

func TestBuildPlan_DualBlockOrdered(t *testing.T) {
	plan := BuildPlan(KindDual, false, 5, 10)

	want := Plan{
		{Suffix: "", Rule: Rule{Start: 0, Count: 5}},
		{Suffix: "_ph", Rule: Rule{Start: 5, Count: 5}},
	}
	if !reflect.DeepEqual(plan, want) {
		t.Fatalf("BuildPlan(dual, block) = %+v, want %+v", plan, want)
	}
}

func TestBuildPlan_QuadInterleaved(t *testing.T) {
	plan := BuildPlan(KindQuad, true, 1, 4)

	wantSuffixes := []string{"_inv-1_part-mag", "_inv-1_part-phase", "_inv-2_part-mag", "_inv-2_part-phase"}
	wantFirst := []int{0, 2, 1, 3}

	if len(plan) != 4 {
		t.Fatalf("plan has %d outputs, want 4", len(plan))
	}
	for i, out := range plan {
		if out.Suffix != wantSuffixes[i] {
			t.Errorf("output %d suffix = %q, want %q", i, out.Suffix, wantSuffixes[i])
		}
		indices := out.Rule.Indices(4)
		if len(indices) != 1 || indices[0] != wantFirst[i] {
			t.Errorf("output %q indices = %v, want [%d]", out.Suffix, indices, wantFirst[i])
		}
	}
}

func TestBuildPlan_QuadBlockOrdered(t *testing.T) {
	// Single dynamic: the canonical MP2RAGE layout.
	plan := BuildPlan(KindQuad, false, 1, 4)
	wantIdx := [][]int{{0}, {2}, {1}, {3}}
	for i, out := range plan {
		if got := out.Rule.Indices(4); !reflect.DeepEqual(got, wantIdx[i]) {
			t.Errorf("output %q indices = %v, want %v", out.Suffix, got, wantIdx[i])
		}
	}

	// Multiple dynamics generalize to blocks of declaredDynamics volumes.
	plan = BuildPlan(KindQuad, false, 2, 8)
	wantIdx = [][]int{{0, 1}, {4, 5}, {2, 3}, {6, 7}}
	for i, out := range plan {
		if got := out.Rule.Indices(8); !reflect.DeepEqual(got, wantIdx[i]) {
			t.Errorf("output %q indices = %v, want %v", out.Suffix, got, wantIdx[i])
		}
	}
}

func TestBuildPlan_Single(t *testing.T) {
	plan := BuildPlan(KindSingle, false, 7, 7)
	if len(plan) != 1 || plan[0].Suffix != "" {
		t.Fatalf("single plan = %+v, want one unsuffixed output", plan)
	}
	if got := plan[0].Rule.Indices(7); len(got) != 7 {
		t.Errorf("single plan selects %d volumes, want 7", len(got))
	}
}

// Block-ordered dual outputs concatenate back to the original sequence.
func TestBuildPlan_DualBlockRoundTrip(t *testing.T) {
	const d, v = 5, 10
	plan := BuildPlan(KindDual, false, d, v)

	var all []int
	for _, out := range plan {
		all = append(all, out.Rule.Indices(v)...)
	}
	for i, idx := range all {
		if idx != i {
			t.Fatalf("concatenated indices %v do not reproduce the original order", all)
		}
	}
}
