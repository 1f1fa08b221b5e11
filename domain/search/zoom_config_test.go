package search

import (
	"errors"
	"testing"
)

func TestDefaultPresets_Valid(t *testing.T) {
	if err := DefaultPresets().Validate(); err != nil {
		t.Fatalf("default presets should validate: %v", err)
	}
}

func TestDefaultPresets_IsACopy(t *testing.T) {
	presets := DefaultPresets()
	presets[ZoomWide] = NewPreset(0.99, 1, 1, false, CompressionNone)
	if PresetFor(ZoomWide).Threshold() != 0.25 {
		t.Error("mutating a DefaultPresets copy must not affect the built-in table")
	}
}

func TestParsePresets_Override(t *testing.T) {
	data := []byte(`
levels:
  wide:
    threshold: 0.30
    limit: 20
  macro:
    content_preview: 2000
    compression: light
`)
	presets, err := ParsePresets(data)
	if err != nil {
		t.Fatalf("ParsePresets: %v", err)
	}

	wide := presets.For(ZoomWide)
	if wide.Threshold() != 0.30 || wide.Limit() != 20 {
		t.Errorf("wide = (%v, %d), want (0.30, 20)", wide.Threshold(), wide.Limit())
	}
	if wide.ContentPreview() != 400 {
		t.Errorf("unset fields should inherit defaults, got preview %d", wide.ContentPreview())
	}

	macro := presets.For(ZoomMacro)
	if macro.ContentPreview() != 2000 || macro.Compression() != CompressionLight {
		t.Errorf("macro = (%d, %q)", macro.ContentPreview(), macro.Compression())
	}
	if macro.Threshold() != 0.80 {
		t.Errorf("macro threshold should stay default, got %v", macro.Threshold())
	}
}

func TestParsePresets_EmptyKeepsDefaults(t *testing.T) {
	presets, err := ParsePresets(nil)
	if err != nil {
		t.Fatalf("ParsePresets(nil): %v", err)
	}
	if presets.For(ZoomNormal).Limit() != 15 {
		t.Error("empty override should keep defaults")
	}
}

func TestParsePresets_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown level", "levels:\n  fisheye:\n    limit: 3\n"},
		{"threshold out of range", "levels:\n  wide:\n    threshold: 1.5\n"},
		{"negative limit", "levels:\n  wide:\n    limit: -1\n"},
		{"unknown compression", "levels:\n  wide:\n    compression: zstd\n"},
		{"threshold ordering broken", "levels:\n  wide:\n    threshold: 0.05\n"},
		{"limit ordering broken", "levels:\n  close:\n    limit: 100\n"},
		{"malformed yaml", "levels: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresets([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrZoomConfig) {
				t.Errorf("error should wrap ErrZoomConfig: %v", err)
			}
		})
	}
}
