// Package search provides search domain types for memory retrieval: zoom
// presets, adaptive thresholds, similarity matches, and the camera-roll
// rendering of results.
package search

// ZoomLevel names one step of the camera metaphor, from the widest sweep
// to the tightest close-up.
type ZoomLevel string

// Zoom levels, ordered from widest to narrowest.
const (
	ZoomUltraWide ZoomLevel = "ultra-wide"
	ZoomWide      ZoomLevel = "wide"
	ZoomNormal    ZoomLevel = "normal"
	ZoomClose     ZoomLevel = "close"
	ZoomMacro     ZoomLevel = "macro"
)

// Compression selects how aggressively item content is compressed before
// rendering.
type Compression string

// Compression levels.
const (
	CompressionNone  Compression = "none"
	CompressionLight Compression = "light"
	CompressionFull  Compression = "full"
)

// ZoomDirection is the argument to NextZoom.
type ZoomDirection string

// Zoom directions. "in" narrows toward macro, "out" widens toward
// ultra-wide.
const (
	ZoomIn  ZoomDirection = "in"
	ZoomOut ZoomDirection = "out"
)

// zoomOrder lists the levels from widest to narrowest. NextZoom walks it;
// ZoomForThreshold brackets against it.
var zoomOrder = []ZoomLevel{ZoomUltraWide, ZoomWide, ZoomNormal, ZoomClose, ZoomMacro}

// Preset holds the retrieval parameters one zoom level implies.
type Preset struct {
	threshold      float64
	limit          int
	contentPreview int
	includeContext bool
	compression    Compression
}

// NewPreset creates a Preset.
func NewPreset(threshold float64, limit, contentPreview int, includeContext bool, compression Compression) Preset {
	return Preset{
		threshold:      threshold,
		limit:          limit,
		contentPreview: contentPreview,
		includeContext: includeContext,
		compression:    compression,
	}
}

// Threshold returns the minimum similarity for a hit.
func (p Preset) Threshold() float64 { return p.threshold }

// Limit returns the maximum number of hits.
func (p Preset) Limit() int { return p.limit }

// ContentPreview returns the preview length in characters.
func (p Preset) ContentPreview() int { return p.contentPreview }

// IncludeContext reports whether conversational context is fetched.
func (p Preset) IncludeContext() bool { return p.includeContext }

// Compression returns the compression level applied to item content.
func (p Preset) Compression() Compression { return p.compression }

// defaultPresets is the built-in zoom table. Thresholds rise and limits
// shrink as the lens narrows.
var defaultPresets = map[ZoomLevel]Preset{
	ZoomUltraWide: NewPreset(0.15, 50, 200, false, CompressionFull),
	ZoomWide:      NewPreset(0.25, 25, 400, false, CompressionLight),
	ZoomNormal:    NewPreset(0.40, 15, 600, true, CompressionNone),
	ZoomClose:     NewPreset(0.60, 10, 800, true, CompressionNone),
	ZoomMacro:     NewPreset(0.80, 5, 1500, true, CompressionNone),
}

// PresetFor returns the preset for a zoom level. Unknown levels fall back
// to normal.
func PresetFor(level ZoomLevel) Preset {
	if p, ok := defaultPresets[level]; ok {
		return p
	}
	return defaultPresets[ZoomNormal]
}

// ValidZoom reports whether the level is one of the five known levels.
func ValidZoom(level ZoomLevel) bool {
	_, ok := defaultPresets[level]
	return ok
}

// ZoomForThreshold picks the widest level whose bracket admits the given
// similarity threshold. Brackets sit at 0.20, 0.35, 0.55, and 0.75.
func ZoomForThreshold(threshold float64) ZoomLevel {
	switch {
	case threshold < 0.20:
		return ZoomUltraWide
	case threshold < 0.35:
		return ZoomWide
	case threshold < 0.55:
		return ZoomNormal
	case threshold < 0.75:
		return ZoomClose
	default:
		return ZoomMacro
	}
}

// NextZoom walks one step along the zoom order. The second return is false
// at either end of the range or for an unknown level.
func NextZoom(current ZoomLevel, direction ZoomDirection) (ZoomLevel, bool) {
	idx := -1
	for i, level := range zoomOrder {
		if level == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", false
	}

	switch direction {
	case ZoomIn:
		idx++
	case ZoomOut:
		idx--
	default:
		return "", false
	}

	if idx < 0 || idx >= len(zoomOrder) {
		return "", false
	}
	return zoomOrder[idx], true
}
