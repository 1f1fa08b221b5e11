package search

import "testing"

func TestPresetFor(t *testing.T) {
	tests := []struct {
		level          ZoomLevel
		threshold      float64
		limit          int
		contentPreview int
		includeContext bool
	}{
		{ZoomUltraWide, 0.15, 50, 200, false},
		{ZoomWide, 0.25, 25, 400, false},
		{ZoomNormal, 0.40, 15, 600, true},
		{ZoomClose, 0.60, 10, 800, true},
		{ZoomMacro, 0.80, 5, 1500, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			p := PresetFor(tt.level)
			if p.Threshold() != tt.threshold {
				t.Errorf("Threshold() = %v, want %v", p.Threshold(), tt.threshold)
			}
			if p.Limit() != tt.limit {
				t.Errorf("Limit() = %v, want %v", p.Limit(), tt.limit)
			}
			if p.ContentPreview() != tt.contentPreview {
				t.Errorf("ContentPreview() = %v, want %v", p.ContentPreview(), tt.contentPreview)
			}
			if p.IncludeContext() != tt.includeContext {
				t.Errorf("IncludeContext() = %v, want %v", p.IncludeContext(), tt.includeContext)
			}
		})
	}
}

func TestPresetFor_UnknownFallsBackToNormal(t *testing.T) {
	p := PresetFor(ZoomLevel("fisheye"))
	if p.Threshold() != 0.40 {
		t.Errorf("unknown level should map to normal, got threshold %v", p.Threshold())
	}
}

func TestValidZoom(t *testing.T) {
	for _, level := range []ZoomLevel{ZoomUltraWide, ZoomWide, ZoomNormal, ZoomClose, ZoomMacro} {
		if !ValidZoom(level) {
			t.Errorf("ValidZoom(%q) = false", level)
		}
	}
	if ValidZoom("fisheye") {
		t.Error("ValidZoom(fisheye) = true")
	}
}

func TestZoomForThreshold(t *testing.T) {
	tests := []struct {
		threshold float64
		want      ZoomLevel
	}{
		{0, ZoomUltraWide},
		{0.15, ZoomUltraWide},
		{0.19, ZoomUltraWide},
		{0.20, ZoomWide},
		{0.34, ZoomWide},
		{0.35, ZoomNormal},
		{0.54, ZoomNormal},
		{0.55, ZoomClose},
		{0.74, ZoomClose},
		{0.75, ZoomMacro},
		{0.99, ZoomMacro},
	}
	for _, tt := range tests {
		if got := ZoomForThreshold(tt.threshold); got != tt.want {
			t.Errorf("ZoomForThreshold(%v) = %q, want %q", tt.threshold, got, tt.want)
		}
	}
}

func TestZoomForThreshold_Monotone(t *testing.T) {
	rank := map[ZoomLevel]int{ZoomUltraWide: 0, ZoomWide: 1, ZoomNormal: 2, ZoomClose: 3, ZoomMacro: 4}
	prev := ZoomUltraWide
	for threshold := 0.0; threshold <= 1.0; threshold += 0.01 {
		cur := ZoomForThreshold(threshold)
		if rank[cur] < rank[prev] {
			t.Fatalf("zoom went wider as threshold rose: %q after %q at %v", cur, prev, threshold)
		}
		prev = cur
	}
}

func TestNextZoom(t *testing.T) {
	tests := []struct {
		current   ZoomLevel
		direction ZoomDirection
		want      ZoomLevel
		ok        bool
	}{
		{ZoomUltraWide, ZoomIn, ZoomWide, true},
		{ZoomWide, ZoomIn, ZoomNormal, true},
		{ZoomNormal, ZoomIn, ZoomClose, true},
		{ZoomClose, ZoomIn, ZoomMacro, true},
		{ZoomMacro, ZoomIn, "", false},
		{ZoomMacro, ZoomOut, ZoomClose, true},
		{ZoomUltraWide, ZoomOut, "", false},
		{ZoomLevel("fisheye"), ZoomIn, "", false},
		{ZoomNormal, ZoomDirection("sideways"), "", false},
	}
	for _, tt := range tests {
		got, ok := NextZoom(tt.current, tt.direction)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NextZoom(%q, %q) = (%q, %v), want (%q, %v)",
				tt.current, tt.direction, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNextZoom_VisitsEachLevelOnce(t *testing.T) {
	seen := []ZoomLevel{ZoomUltraWide}
	current := ZoomUltraWide
	for {
		next, ok := NextZoom(current, ZoomIn)
		if !ok {
			break
		}
		seen = append(seen, next)
		current = next
	}
	if len(seen) != 5 {
		t.Fatalf("zoom-in chain visited %d levels, want 5: %v", len(seen), seen)
	}
}
