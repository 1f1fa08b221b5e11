package vector

import (
	"math"
	"testing"
)

const epsilon = 1e-6

func assertUnitNorm(t *testing.T, vec []float64) {
	t.Helper()
	if mag := Magnitude(vec); math.Abs(mag-1.0) > epsilon {
		t.Errorf("expected unit norm, got magnitude %v", mag)
	}
}

func TestScale_SameDimension(t *testing.T) {
	vec := []float64{3, 4}

	got := Scale(vec, 2)

	if len(got) != 2 {
		t.Fatalf("expected length 2, got %d", len(got))
	}
	// Same dimension still normalizes: {3,4} has magnitude 5.
	if math.Abs(got[0]-0.6) > epsilon || math.Abs(got[1]-0.8) > epsilon {
		t.Errorf("expected [0.6 0.8], got %v", got)
	}
}

func TestScale_Downsample(t *testing.T) {
	// 4 -> 2: buckets [0,1] and [2,3] average to 1.5 and 3.5.
	vec := []float64{1, 2, 3, 4}

	got := Scale(vec, 2)

	if len(got) != 2 {
		t.Fatalf("expected length 2, got %d", len(got))
	}
	assertUnitNorm(t, got)

	// Direction preserved: ratio of components equals 1.5/3.5.
	wantRatio := 1.5 / 3.5
	if math.Abs(got[0]/got[1]-wantRatio) > epsilon {
		t.Errorf("expected component ratio %v, got %v", wantRatio, got[0]/got[1])
	}
}

func TestScale_DownsampleUnevenBuckets(t *testing.T) {
	// 5 -> 2: r = 2.5, buckets [0,2) and [2,5).
	vec := []float64{2, 4, 6, 8, 10}

	got := Scale(vec, 2)

	if len(got) != 2 {
		t.Fatalf("expected length 2, got %d", len(got))
	}
	assertUnitNorm(t, got)

	wantRatio := 3.0 / 8.0 // avg(2,4) / avg(6,8,10)
	if math.Abs(got[0]/got[1]-wantRatio) > epsilon {
		t.Errorf("expected component ratio %v, got %v", wantRatio, got[0]/got[1])
	}
}

func TestScale_Upsample(t *testing.T) {
	// 2 -> 3: r = 1/2, positions 0, 0.5, 1 interpolate to 1, 1.5, 2.
	vec := []float64{1, 2}

	got := Scale(vec, 3)

	if len(got) != 3 {
		t.Fatalf("expected length 3, got %d", len(got))
	}
	assertUnitNorm(t, got)

	if math.Abs(got[1]/got[0]-1.5) > epsilon {
		t.Errorf("middle element should interpolate to 1.5x the first, got %v", got)
	}
	if math.Abs(got[2]/got[0]-2.0) > epsilon {
		t.Errorf("last element should be 2x the first, got %v", got)
	}
}

func TestScale_UpsampleEndpoints(t *testing.T) {
	vec := []float64{5, 1, 9}

	got := Scale(vec, 7)

	if len(got) != 7 {
		t.Fatalf("expected length 7, got %d", len(got))
	}
	assertUnitNorm(t, got)

	// Endpoints map exactly onto source endpoints (before normalization the
	// first is 5 and the last is 9, so their ratio survives).
	if math.Abs(got[6]/got[0]-9.0/5.0) > epsilon {
		t.Errorf("endpoint ratio should be 9/5, got %v", got[6]/got[0])
	}
}

func TestScale_SingleElementUpsample(t *testing.T) {
	got := Scale([]float64{42}, 4)

	if len(got) != 4 {
		t.Fatalf("expected length 4, got %d", len(got))
	}
	assertUnitNorm(t, got)

	for i, v := range got {
		if math.Abs(v-0.5) > epsilon {
			t.Errorf("element %d = %v, want 0.5", i, v)
		}
	}
}

func TestScale_RealisticDimensions(t *testing.T) {
	// 512 -> 1024 mirrors adapting a small model's output to a wider column.
	vec := make([]float64, 512)
	for i := range vec {
		vec[i] = math.Sin(float64(i) / 10.0)
	}

	up := Scale(vec, 1024)
	if len(up) != 1024 {
		t.Fatalf("expected length 1024, got %d", len(up))
	}
	assertUnitNorm(t, up)

	// 1536 -> 1024 is the common OpenAI-to-column downsample.
	wide := make([]float64, 1536)
	for i := range wide {
		wide[i] = math.Cos(float64(i) / 100.0)
	}

	down := Scale(wide, 1024)
	if len(down) != 1024 {
		t.Fatalf("expected length 1024, got %d", len(down))
	}
	assertUnitNorm(t, down)
}

func TestScale_RoundTripShape(t *testing.T) {
	vec := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	roundTrip := Scale(Scale(vec, 4), 8)

	if len(roundTrip) != len(vec) {
		t.Fatalf("round trip changed length: %d != %d", len(roundTrip), len(vec))
	}
	assertUnitNorm(t, roundTrip)
}

func TestScale_Empty(t *testing.T) {
	if got := Scale(nil, 10); len(got) != 0 {
		t.Errorf("scaling empty vector should return empty, got %v", got)
	}
	if got := Scale([]float64{1, 2}, 0); len(got) != 0 {
		t.Errorf("scaling to 0 should return empty, got %v", got)
	}
	if got := Scale([]float64{1, 2}, -3); len(got) != 0 {
		t.Errorf("scaling to negative should return empty, got %v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]float64{3, 4})

	if math.Abs(got[0]-0.6) > epsilon || math.Abs(got[1]-0.8) > epsilon {
		t.Errorf("expected [0.6 0.8], got %v", got)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	got := Normalize([]float64{0, 0, 0})

	for i, v := range got {
		if v != 0 {
			t.Errorf("element %d = %v, want 0", i, v)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	vec := []float64{3, 4}
	_ = Normalize(vec)

	if vec[0] != 3 || vec[1] != 4 {
		t.Errorf("input mutated: %v", vec)
	}
}

func TestMagnitude(t *testing.T) {
	if got := Magnitude([]float64{3, 4}); math.Abs(got-5) > epsilon {
		t.Errorf("Magnitude = %v, want 5", got)
	}
	if got := Magnitude(nil); got != 0 {
		t.Errorf("Magnitude of empty = %v, want 0", got)
	}
}

func TestCosine_Identical(t *testing.T) {
	a := []float64{1, 2, 3}

	if got := Cosine(a, a); math.Abs(got-1.0) > epsilon {
		t.Errorf("Cosine of identical vectors = %v, want 1", got)
	}
}

func TestCosine_Orthogonal(t *testing.T) {
	if got := Cosine([]float64{1, 0}, []float64{0, 1}); math.Abs(got) > epsilon {
		t.Errorf("Cosine of orthogonal vectors = %v, want 0", got)
	}
}

func TestCosine_Opposite(t *testing.T) {
	if got := Cosine([]float64{1, 2}, []float64{-1, -2}); math.Abs(got+1.0) > epsilon {
		t.Errorf("Cosine of opposite vectors = %v, want -1", got)
	}
}

func TestCosine_Degenerate(t *testing.T) {
	if got := Cosine([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
		t.Errorf("Cosine of mismatched lengths = %v, want 0", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("Cosine of empty vectors = %v, want 0", got)
	}
	if got := Cosine([]float64{0, 0}, []float64{1, 2}); got != 0 {
		t.Errorf("Cosine with zero vector = %v, want 0", got)
	}
}

func TestCosine_ScaleInvariant(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{2, 4, 6}

	if got := Cosine(a, b); math.Abs(got-1.0) > epsilon {
		t.Errorf("Cosine should be scale invariant, got %v", got)
	}
}
