package models

import (
	"time"

	"github.com/google/uuid"
)

// Level1Prediction is one base learner's distribution for one match.
type Level1Prediction struct {
	Learner       string        `json:"learner"`
	Probabilities Probabilities `json:"probabilities"`
}

// BlendedPrediction is the calibrated output served for a match.
type BlendedPrediction struct {
	ID              uuid.UUID     `json:"id"`
	MatchID         string        `json:"match_id"`
	League          string        `json:"league"`
	Probabilities   Probabilities `json:"probabilities"`
	Raw             Probabilities `json:"raw"`
	Confidence      float64       `json:"confidence"`
	IsBaseline      bool          `json:"is_baseline"`
	Degraded        bool          `json:"degraded,omitempty"`
	ArtifactVersion string        `json:"artifact_version,omitempty"`
	PredictedAt     time.Time     `json:"predicted_at"`
}

// NewBaselinePrediction returns the historical-average fallback for a match.
func NewBaselinePrediction(matchID, league string, baseline Probabilities, now time.Time) *BlendedPrediction {
	p := baseline.Normalize()
	return &BlendedPrediction{
		ID:            uuid.New(),
		MatchID:       matchID,
		League:        league,
		Probabilities: p,
		Raw:           p,
		Confidence:    p.Max(),
		IsBaseline:    true,
		PredictedAt:   now,
	}
}
