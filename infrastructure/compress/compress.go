// Package compress holds the content compression codec the camera roll
// applies to memory previews. Compression trades fidelity for context
// window: wide zoom levels show many hits and can afford lossy text,
// close zoom levels show few and keep the original.
package compress

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Level selects how aggressively preview text is compressed.
type Level string

const (
	LevelNone  Level = "none"
	LevelLight Level = "light"
	LevelFull  Level = "full"
)

// ParseLevel maps a config string to a Level. Empty means none.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelNone:
		return LevelNone, nil
	case LevelLight:
		return LevelLight, nil
	case LevelFull:
		return LevelFull, nil
	default:
		return LevelNone, fmt.Errorf("unknown compression level %q", s)
	}
}

// Compressor shrinks preview text at the requested level. A compressor
// must return usable text for every level; degrading to a lighter level
// is fine, failing the render is not.
type Compressor interface {
	Compress(ctx context.Context, text string, level Level) (string, error)
}

// NoopCompressor returns text unchanged at every level. It is the
// default when no translation sidecar is configured.
type NoopCompressor struct{}

func (NoopCompressor) Compress(_ context.Context, text string, _ Level) (string, error) {
	return text, nil
}

// Translator is the slice of the translation sidecar the full level
// needs.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslateCompressor implements light compression locally and full
// compression by routing text through the translation sidecar into a
// token-denser language. Sidecar failures degrade to the light result.
type TranslateCompressor struct {
	translator Translator
	source     string
	target     string
	logger     *slog.Logger
}

// TranslateOption configures a TranslateCompressor.
type TranslateOption func(*TranslateCompressor)

// WithLanguages sets the source and target language codes for the full
// level. The default is en to zh; Chinese carries roughly twice the
// meaning per token for English prose.
func WithLanguages(source, target string) TranslateOption {
	return func(c *TranslateCompressor) {
		c.source = source
		c.target = target
	}
}

// WithLogger sets the logger for degradation warnings.
func WithLogger(logger *slog.Logger) TranslateOption {
	return func(c *TranslateCompressor) { c.logger = logger }
}

// NewTranslateCompressor creates a compressor backed by the given
// translator.
func NewTranslateCompressor(translator Translator, options ...TranslateOption) *TranslateCompressor {
	c := &TranslateCompressor{
		translator: translator,
		source:     "en",
		target:     "zh",
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Compress shrinks text at the requested level. Full compression never
// returns an error: if the sidecar is down or its output is longer than
// the input, the light result is served instead.
func (c *TranslateCompressor) Compress(ctx context.Context, text string, level Level) (string, error) {
	switch level {
	case LevelNone:
		return text, nil
	case LevelLight:
		return squeeze(text), nil
	case LevelFull:
		light := squeeze(text)
		translated, err := c.translator.Translate(ctx, light, c.source, c.target)
		if err != nil {
			c.logger.Warn("compression translate failed, serving light compression",
				slog.String("target", c.target),
				slog.Any("error", err),
			)
			return light, nil
		}
		// Translation must never expand the preview.
		if translated == "" || len(translated) >= len(light) {
			return light, nil
		}
		return translated, nil
	default:
		return "", fmt.Errorf("unknown compression level %q", level)
	}
}

// squeeze collapses runs of whitespace and drops blank lines, keeping
// line structure for anything that still has one.
func squeeze(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

var (
	_ Compressor = NoopCompressor{}
	_ Compressor = (*TranslateCompressor)(nil)
)
