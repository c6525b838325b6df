// Package features turns raw match context into fixed-schema feature vectors.
package features

import (
	"math"

	"github.com/yourusername/matchedge/internal/models"
)

// SchemaVersion is the version of the feature layout produced by Builder.
const SchemaVersion = "v1"

// Feature names, in vector order.
const (
	HomeFormPPG      = "home_form_ppg"
	AwayFormPPG      = "away_form_ppg"
	FormPPGDelta     = "form_ppg_delta"
	HomeGoalsFor     = "home_goals_for"
	HomeGoalsAgainst = "home_goals_against"
	AwayGoalsFor     = "away_goals_for"
	AwayGoalsAgainst = "away_goals_against"
	HomeXG           = "home_xg"
	AwayXG           = "away_xg"
	XGDelta          = "xg_delta"
	H2HHomeWinRate   = "h2h_home_win_rate"
	H2HDrawRate      = "h2h_draw_rate"
	RestDaysDelta    = "rest_days_delta"
	MarketHomeProb   = "market_home_prob"
	MarketDrawProb   = "market_draw_prob"
	MarketAwayProb   = "market_away_prob"
	MarketOverround  = "market_overround"
)

// Schema is an ordered, versioned list of feature names.
type Schema struct {
	Version string   `json:"version"`
	Names   []string `json:"names"`
}

// SchemaV1 is the current feature layout.
var SchemaV1 = Schema{
	Version: SchemaVersion,
	Names: []string{
		HomeFormPPG, AwayFormPPG, FormPPGDelta,
		HomeGoalsFor, HomeGoalsAgainst, AwayGoalsFor, AwayGoalsAgainst,
		HomeXG, AwayXG, XGDelta,
		H2HHomeWinRate, H2HDrawRate,
		RestDaysDelta,
		MarketHomeProb, MarketDrawProb, MarketAwayProb, MarketOverround,
	},
}

// Len returns the number of features.
func (s Schema) Len() int {
	return len(s.Names)
}

// Index returns the position of a feature name, or -1.
func (s Schema) Index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two schemas have the same version and layout.
func (s Schema) Equal(other Schema) bool {
	if s.Version != other.Version || len(s.Names) != len(other.Names) {
		return false
	}
	for i := range s.Names {
		if s.Names[i] != other.Names[i] {
			return false
		}
	}
	return true
}

// Check rejects a vector whose version, cardinality or ordering differs from s.
func (s Schema) Check(v *MatchFeatureVector) error {
	if v == nil {
		return models.NewSchemaError("features", "vector is nil")
	}
	if v.schemaVersion != s.Version {
		return models.NewSchemaError("schema_version", "vector built with %q, model expects %q", v.schemaVersion, s.Version)
	}
	if len(v.values) != len(s.Names) || len(v.names) != len(s.Names) {
		return models.NewSchemaError("features", "vector has %d features, model expects %d", len(v.values), len(s.Names))
	}
	for i, name := range s.Names {
		if v.names[i] != name {
			return models.NewSchemaError(name, "feature %d is %q, model expects %q", i, v.names[i], name)
		}
		if math.IsNaN(v.values[i]) || math.IsInf(v.values[i], 0) {
			return models.NewSchemaError(name, "value is not finite")
		}
	}
	return nil
}
