package search

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrZoomConfig is wrapped by every zoom override parse or validation
// failure.
var ErrZoomConfig = errors.New("invalid zoom config")

// Presets maps zoom levels to retrieval parameters. The zero value is not
// usable; obtain one from DefaultPresets or ParsePresets.
type Presets map[ZoomLevel]Preset

// DefaultPresets returns a copy of the built-in zoom table.
func DefaultPresets() Presets {
	presets := make(Presets, len(defaultPresets))
	for level, p := range defaultPresets {
		presets[level] = p
	}
	return presets
}

// For returns the preset for a zoom level, falling back to normal for
// unknown levels.
func (p Presets) For(level ZoomLevel) Preset {
	if preset, ok := p[level]; ok {
		return preset
	}
	return p[ZoomNormal]
}

// Validate checks ranges and the ordering laws: thresholds must not
// decrease and limits must not grow as the lens narrows.
func (p Presets) Validate() error {
	for _, level := range zoomOrder {
		preset, ok := p[level]
		if !ok {
			return fmt.Errorf("%w: missing level %q", ErrZoomConfig, level)
		}
		if preset.threshold < 0 || preset.threshold > 1 {
			return fmt.Errorf("%w: level %q threshold %v out of [0,1]", ErrZoomConfig, level, preset.threshold)
		}
		if preset.limit < 0 {
			return fmt.Errorf("%w: level %q limit %d negative", ErrZoomConfig, level, preset.limit)
		}
		if preset.contentPreview < 0 {
			return fmt.Errorf("%w: level %q content preview %d negative", ErrZoomConfig, level, preset.contentPreview)
		}
		switch preset.compression {
		case CompressionNone, CompressionLight, CompressionFull:
		default:
			return fmt.Errorf("%w: level %q compression %q unknown", ErrZoomConfig, level, preset.compression)
		}
	}

	for i := 1; i < len(zoomOrder); i++ {
		prev, cur := p[zoomOrder[i-1]], p[zoomOrder[i]]
		if cur.threshold < prev.threshold {
			return fmt.Errorf("%w: threshold of %q below %q", ErrZoomConfig, zoomOrder[i], zoomOrder[i-1])
		}
		if cur.limit > prev.limit {
			return fmt.Errorf("%w: limit of %q above %q", ErrZoomConfig, zoomOrder[i], zoomOrder[i-1])
		}
	}
	return nil
}

type presetYAML struct {
	Threshold      *float64 `yaml:"threshold"`
	Limit          *int     `yaml:"limit"`
	ContentPreview *int     `yaml:"content_preview"`
	IncludeContext *bool    `yaml:"include_context"`
	Compression    *string  `yaml:"compression"`
}

type zoomYAML struct {
	Levels map[string]presetYAML `yaml:"levels"`
}

// ParsePresets merges a YAML override over the default zoom table and
// validates the result. A level block overrides only the fields it sets.
func ParsePresets(data []byte) (Presets, error) {
	var doc zoomYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrZoomConfig, err)
	}

	presets := DefaultPresets()
	for name, override := range doc.Levels {
		level := ZoomLevel(name)
		preset, ok := presets[level]
		if !ok {
			return nil, fmt.Errorf("%w: unknown level %q", ErrZoomConfig, name)
		}
		if override.Threshold != nil {
			preset.threshold = *override.Threshold
		}
		if override.Limit != nil {
			preset.limit = *override.Limit
		}
		if override.ContentPreview != nil {
			preset.contentPreview = *override.ContentPreview
		}
		if override.IncludeContext != nil {
			preset.includeContext = *override.IncludeContext
		}
		if override.Compression != nil {
			preset.compression = Compression(*override.Compression)
		}
		presets[level] = preset
	}

	if err := presets.Validate(); err != nil {
		return nil, err
	}
	return presets, nil
}
