package features

import (
	"math"

	"github.com/yourusername/matchedge/internal/models"
)

// MatchFeatureVector is an immutable, ordered set of named features for one match.
type MatchFeatureVector struct {
	matchID       string
	schemaVersion string
	names         []string
	values        []float64
	imputed       []string
}

// NewVector builds a vector for schema s from already computed values.
func NewVector(s Schema, matchID string, values []float64) (*MatchFeatureVector, error) {
	if len(values) != s.Len() {
		return nil, models.NewSchemaError("features", "got %d values, schema %s has %d", len(values), s.Version, s.Len())
	}
	v := &MatchFeatureVector{
		matchID:       matchID,
		schemaVersion: s.Version,
		names:         s.Names,
		values:        append([]float64(nil), values...),
	}
	if err := s.Check(v); err != nil {
		return nil, err
	}
	return v, nil
}

// MatchID returns the match the vector describes.
func (v *MatchFeatureVector) MatchID() string { return v.matchID }

// SchemaVersion returns the layout version.
func (v *MatchFeatureVector) SchemaVersion() string { return v.schemaVersion }

// Len returns the number of features.
func (v *MatchFeatureVector) Len() int { return len(v.values) }

// Names returns a copy of the feature names.
func (v *MatchFeatureVector) Names() []string {
	return append([]string(nil), v.names...)
}

// Values returns a copy of the feature values.
func (v *MatchFeatureVector) Values() []float64 {
	return append([]float64(nil), v.values...)
}

// Value returns a single feature by name.
func (v *MatchFeatureVector) Value(name string) (float64, bool) {
	for i, n := range v.names {
		if n == name {
			return v.values[i], true
		}
	}
	return 0, false
}

// Imputed lists the features that were filled with defaults.
func (v *MatchFeatureVector) Imputed() []string {
	return append([]string(nil), v.imputed...)
}

// Equal reports bit-for-bit equality of two vectors.
func (v *MatchFeatureVector) Equal(other *MatchFeatureVector) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.matchID != other.matchID || v.schemaVersion != other.schemaVersion || len(v.values) != len(other.values) {
		return false
	}
	for i := range v.values {
		if v.names[i] != other.names[i] || math.Float64bits(v.values[i]) != math.Float64bits(other.values[i]) {
			return false
		}
	}
	return true
}
