package models

import (
	"time"

	"github.com/google/uuid"
)

// SettledOutcome pairs a served prediction with the result that followed.
type SettledOutcome struct {
	ID              uuid.UUID     `db:"id" json:"id"`
	PredictionID    uuid.UUID     `db:"prediction_id" json:"prediction_id"`
	MatchID         string        `db:"match_id" json:"match_id" validate:"required"`
	League          string        `db:"league" json:"league" validate:"required"`
	ArtifactVersion string        `db:"artifact_version" json:"artifact_version"`
	Raw             Probabilities `db:"raw" json:"raw"`
	Calibrated      Probabilities `db:"calibrated" json:"calibrated"`
	Actual          Outcome       `db:"actual" json:"actual"`
	IsBaseline      bool          `db:"is_baseline" json:"is_baseline"`
	SettledAt       time.Time     `db:"settled_at" json:"settled_at" validate:"required"`
}

// NewSettledOutcome builds a settled record from a served prediction.
func NewSettledOutcome(pred *BlendedPrediction, actual Outcome, settledAt time.Time) *SettledOutcome {
	return &SettledOutcome{
		ID:              uuid.New(),
		PredictionID:    pred.ID,
		MatchID:         pred.MatchID,
		League:          pred.League,
		ArtifactVersion: pred.ArtifactVersion,
		Raw:             pred.Raw,
		Calibrated:      pred.Probabilities,
		Actual:          actual,
		IsBaseline:      pred.IsBaseline,
		SettledAt:       settledAt,
	}
}
