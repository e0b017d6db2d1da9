package vision

import (
	"github.com/ncecere/readaloud/internal/models"
	"github.com/ncecere/readaloud/internal/sanitize"
)

// SelectCaption picks the candidate with the highest confidence; the earliest
// one wins a tie. Candidates below minConfidence or without printable text
// are ignored. It returns nil when nothing qualifies.
func SelectCaption(candidates []models.CaptionCandidate, minConfidence float64) *string {
	best := -1
	for i, c := range candidates {
		if c.Confidence < minConfidence || sanitize.Maybe(c.Text) == nil {
			continue
		}
		if best < 0 || c.Confidence > candidates[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	text := candidates[best].Text
	return &text
}
