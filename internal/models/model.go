package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ArtifactStatus is the lifecycle stage of a model artifact.
type ArtifactStatus string

const (
	ArtifactCandidate  ArtifactStatus = "candidate"
	ArtifactProduction ArtifactStatus = "production"
	ArtifactRetired    ArtifactStatus = "retired"
	ArtifactRejected   ArtifactStatus = "rejected"
)

// ArtifactRecord is the audit row kept for every registered model artifact.
type ArtifactRecord struct {
	ID            uuid.UUID       `db:"id" json:"id" validate:"required"`
	League        string          `db:"league" json:"league" validate:"required"`
	Version       string          `db:"version" json:"version" validate:"required"`
	Status        ArtifactStatus  `db:"status" json:"status" validate:"required"`
	SchemaVersion string          `db:"schema_version" json:"schema_version"`
	SampleCount   int             `db:"sample_count" json:"sample_count"`
	Learners      []string        `db:"learners" json:"learners"`
	Metrics       json.RawMessage `db:"metrics" json:"metrics"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata"`
	TrainedAt     time.Time       `db:"trained_at" json:"trained_at" validate:"required"`
	PromotedAt    *time.Time      `db:"promoted_at" json:"promoted_at,omitempty"`
	RetiredAt     *time.Time      `db:"retired_at" json:"retired_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// IsLive checks if the artifact is currently served
func (a *ArtifactRecord) IsLive() bool {
	return a.Status == ArtifactProduction
}

// GetMetric retrieves a metric value from the Metrics JSON
func (a *ArtifactRecord) GetMetric(name string) (interface{}, error) {
	if a.Metrics == nil {
		return nil, nil
	}

	var metrics map[string]interface{}
	if err := json.Unmarshal(a.Metrics, &metrics); err != nil {
		return nil, err
	}

	return metrics[name], nil
}
