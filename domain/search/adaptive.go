package search

// MinVectorsForSemantic is the corpus size below which semantic search is
// not considered trustworthy.
const MinVectorsForSemantic = 100

// AdaptiveConfig holds search parameters derived from corpus size. Small
// corpora get permissive thresholds so sparse data still surfaces; large
// ones get strict thresholds and wider limits.
type AdaptiveConfig struct {
	threshold     float64
	limit         int
	qualityScore  float64
	hasEnoughData bool
}

// Threshold returns the minimum similarity for a hit.
func (c AdaptiveConfig) Threshold() float64 { return c.threshold }

// Limit returns the maximum number of hits.
func (c AdaptiveConfig) Limit() int { return c.limit }

// QualityScore estimates result trustworthiness in [0,1].
func (c AdaptiveConfig) QualityScore() float64 { return c.qualityScore }

// HasEnoughData reports whether the corpus clears MinVectorsForSemantic.
func (c AdaptiveConfig) HasEnoughData() bool { return c.hasEnoughData }

// AdaptiveConfigFor picks the bracket for a corpus of total vectors.
func AdaptiveConfigFor(total int64) AdaptiveConfig {
	switch {
	case total <= 0:
		return AdaptiveConfig{}
	case total < 100:
		return AdaptiveConfig{
			threshold:    0.05,
			limit:        min(int(total), 10),
			qualityScore: float64(total) / 100,
		}
	case total < 1000:
		return AdaptiveConfig{
			threshold:     0.10,
			limit:         min(int(total), 25),
			qualityScore:  0.5 + float64(total)/2000,
			hasEnoughData: true,
		}
	case total < 10000:
		return AdaptiveConfig{threshold: 0.15, limit: 50, qualityScore: 0.8, hasEnoughData: true}
	case total < 50000:
		return AdaptiveConfig{threshold: 0.20, limit: 100, qualityScore: 0.9, hasEnoughData: true}
	default:
		return AdaptiveConfig{threshold: 0.25, limit: 200, qualityScore: 1.0, hasEnoughData: true}
	}
}
