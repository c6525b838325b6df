// Package registry versions trained ensembles and controls which one is live
// for each league.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/matchedge/internal/calibration"
	"github.com/yourusername/matchedge/internal/features"
	"github.com/yourusername/matchedge/internal/ml"
	"github.com/yourusername/matchedge/internal/models"
)

// versionLength is the number of hex characters kept from the content hash.
const versionLength = 16

// Metadata describes how an artifact was produced.
type Metadata struct {
	League        string                  `json:"league"`
	SchemaVersion string                  `json:"schema_version"`
	SampleCount   int                     `json:"sample_count"`
	Folds         int                     `json:"folds"`
	Learners      []string                `json:"learners"`
	Excluded      []models.LearnerFailure `json:"excluded,omitempty"`
	Search        []*ml.SearchResult      `json:"search,omitempty"`
	TrainedAt     time.Time               `json:"trained_at"`
}

// Artifact is an immutable, content-addressed ensemble bundle.
type Artifact struct {
	Version     string             `json:"version"`
	Metadata    Metadata           `json:"metadata"`
	Ensemble    *ml.Ensemble       `json:"ensemble"`
	Calibration *calibration.Curve `json:"calibration"`
	Metrics     ml.Scores          `json:"metrics"`
}

// hashedContent is the part of an artifact its version is derived from.
type hashedContent struct {
	SchemaVersion string             `json:"schema_version"`
	Ensemble      *ml.Ensemble       `json:"ensemble"`
	Calibration   *calibration.Curve `json:"calibration"`
}

// NewArtifact bundles a trained ensemble and stamps its content hash.
func NewArtifact(league string, ens *ml.Ensemble, report *ml.TrainingReport, trainedAt time.Time) (*Artifact, error) {
	if ens == nil || ens.Bank == nil || ens.Meta == nil {
		return nil, ml.ErrNotFitted
	}
	a := &Artifact{
		Metadata: Metadata{
			League:        league,
			SchemaVersion: ens.Schema.Version,
			TrainedAt:     trainedAt.UTC(),
		},
		Ensemble:    ens,
		Calibration: calibration.Identity(),
	}
	for _, k := range ens.Bank.Kinds() {
		a.Metadata.Learners = append(a.Metadata.Learners, string(k))
	}
	if report != nil {
		a.Metadata.SampleCount = report.Samples
		a.Metadata.Folds = report.Folds
		a.Metadata.Excluded = report.Excluded
		a.Metadata.Search = report.Search
		a.Metrics = report.Meta
	}

	version, err := ComputeVersion(a)
	if err != nil {
		return nil, err
	}
	a.Version = version
	return a, nil
}

// ComputeVersion hashes the model content of a.
func ComputeVersion(a *Artifact) (string, error) {
	data, err := json.Marshal(hashedContent{
		SchemaVersion: a.Metadata.SchemaVersion,
		Ensemble:      a.Ensemble,
		Calibration:   a.Calibration,
	})
	if err != nil {
		return "", fmt.Errorf("encode artifact content: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:versionLength], nil
}

// Verify checks that the content still matches the version.
func (a *Artifact) Verify() error {
	if a.Ensemble == nil || a.Ensemble.Bank == nil || a.Ensemble.Meta == nil {
		return fmt.Errorf("%w: missing ensemble", models.ErrArtifactCorrupt)
	}
	if !a.Ensemble.Schema.Equal(features.SchemaV1) && a.Ensemble.Schema.Version == features.SchemaVersion {
		return fmt.Errorf("%w: schema %s does not match its definition", models.ErrArtifactCorrupt, a.Ensemble.Schema.Version)
	}
	version, err := ComputeVersion(a)
	if err != nil {
		return err
	}
	if version != a.Version {
		return fmt.Errorf("%w: content hash %s, recorded version %s", models.ErrArtifactCorrupt, version, a.Version)
	}
	return nil
}

// Record returns the audit record of a in the given status.
func (a *Artifact) Record(status models.ArtifactStatus, now time.Time) (*models.ArtifactRecord, error) {
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return nil, err
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return nil, err
	}
	return &models.ArtifactRecord{
		ID:            uuid.New(),
		League:        a.Metadata.League,
		Version:       a.Version,
		Status:        status,
		SchemaVersion: a.Metadata.SchemaVersion,
		SampleCount:   a.Metadata.SampleCount,
		Learners:      a.Metadata.Learners,
		Metrics:       metrics,
		Metadata:      metadata,
		TrainedAt:     a.Metadata.TrainedAt,
		CreatedAt:     now.UTC(),
	}, nil
}

// ExcludedLearners lists the learners dropped during training.
func (a *Artifact) ExcludedLearners() []string {
	out := make([]string, len(a.Metadata.Excluded))
	for i, f := range a.Metadata.Excluded {
		out[i] = f.Learner
	}
	return out
}
