package score

import (
	"math"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Default heuristic thresholds
const (
	DefaultSimilarityThreshold         = 0.45
	DefaultRelativeDifferenceThreshold = 0.10
)

// SimilarityFunc scores two context strings in [0,1]
type SimilarityFunc func(a, b string) float64

// Detector flags number mentions from different slides that appear to state
// the same claim with materially different values
type Detector struct {
	thresholds model.ThresholdConfig
	similarity SimilarityFunc
}

// NewDetector creates a detector. Thresholds are used as given, including 0;
// only negative or NaN values fall back to the defaults.
func NewDetector(thresholds model.ThresholdConfig) *Detector {
	if thresholds.Similarity < 0 || math.IsNaN(thresholds.Similarity) {
		thresholds.Similarity = DefaultSimilarityThreshold
	}
	if thresholds.RelativeDifference < 0 || math.IsNaN(thresholds.RelativeDifference) {
		thresholds.RelativeDifference = DefaultRelativeDifferenceThreshold
	}
	return &Detector{
		thresholds: thresholds,
		similarity: Similarity,
	}
}

// WithSimilarity swaps the context similarity metric
func (d *Detector) WithSimilarity(fn SimilarityFunc) *Detector {
	d.similarity = fn
	return d
}

// Thresholds returns the thresholds in effect
func (d *Detector) Thresholds() model.ThresholdConfig {
	return d.thresholds
}

// Detect compares every pair of valued number mentions (i < j, extraction
// order) from different slides. A pair is the same claim when context
// similarity exceeds the similarity threshold, and conflicts when the
// relative difference of the values exceeds the difference threshold.
// Conflicts come out in pair order with no merging.
func (d *Detector) Detect(mentions []model.Mention) []model.Conflict {
	var nums []model.Mention
	for _, m := range mentions {
		if m.Type == model.MentionNumber && m.Value != nil {
			nums = append(nums, m)
		}
	}

	conflicts := make([]model.Conflict, 0)
	for i := 0; i < len(nums); i++ {
		for j := i + 1; j < len(nums); j++ {
			a, b := nums[i], nums[j]
			if a.Slide == b.Slide {
				continue
			}

			sim := d.similarity(a.Context, b.Context)
			if sim <= d.thresholds.Similarity {
				continue
			}

			rel, ok := RelativeDifference(*a.Value, *b.Value)
			if !ok || rel <= d.thresholds.RelativeDifference {
				continue
			}

			conflicts = append(conflicts, model.Conflict{
				Type:               model.ConflictTypeNumber,
				Slides:             [2]int{a.Slide, b.Slide},
				ARaw:               a.Raw,
				BRaw:               b.Raw,
				ContextA:           a.Context,
				ContextB:           b.Context,
				Similarity:         sim,
				RelativeDifference: rel,
			})
		}
	}

	return conflicts
}

// RelativeDifference returns |a-b| / max(|a|,|b|). It reports false when
// both values are zero and the ratio is undefined.
func RelativeDifference(a, b float64) (float64, bool) {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 || math.IsNaN(denom) {
		return 0, false
	}
	return math.Abs(a-b) / denom, true
}
