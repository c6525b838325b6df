package features

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/models"
)

// Defaults are the documented fills for optional inputs.
type Defaults struct {
	FormPPG        float64
	GoalsFor       float64
	GoalsAgainst   float64
	H2HHomeWinRate float64
	H2HDrawRate    float64
	RestDaysDelta  float64
	RecentWindow   int
}

// LeagueAverageDefaults returns long-run averages across top European leagues.
func LeagueAverageDefaults() Defaults {
	return Defaults{
		FormPPG:        1.37,
		GoalsFor:       1.35,
		GoalsAgainst:   1.35,
		H2HHomeWinRate: 0.46,
		H2HDrawRate:    0.27,
		RestDaysDelta:  0,
		RecentWindow:   6,
	}
}

// Builder assembles MatchFeatureVectors. It is safe for concurrent use.
type Builder struct {
	schema   Schema
	defaults Defaults
	validate *validator.Validate
	logger   *logrus.Entry
}

// Option configures a Builder.
type Option func(*Builder)

// WithDefaults overrides the default fills.
func WithDefaults(d Defaults) Option {
	return func(b *Builder) {
		if d.RecentWindow <= 0 {
			d.RecentWindow = LeagueAverageDefaults().RecentWindow
		}
		b.defaults = d
	}
}

// NewBuilder creates a builder for SchemaV1.
func NewBuilder(logger *logrus.Logger, opts ...Option) *Builder {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	b := &Builder{
		schema:   SchemaV1,
		defaults: LeagueAverageDefaults(),
		validate: v,
		logger:   logger.WithField("component", "features"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Schema returns the layout this builder produces.
func (b *Builder) Schema() Schema {
	return b.schema
}

// Build converts raw match context into a feature vector. Missing optional data is
// replaced by documented defaults and logged; missing required data is a SchemaError.
func (b *Builder) Build(raw *models.RawMatchContext) (*MatchFeatureVector, error) {
	if raw == nil {
		return nil, models.NewSchemaError("match", "raw match context is nil")
	}
	if err := b.check(raw); err != nil {
		return nil, err
	}

	fb := &fill{defaults: b.defaults}
	values := make([]float64, 0, b.schema.Len())

	home := fb.form(raw.HomeRecent, HomeFormPPG, HomeGoalsFor, HomeGoalsAgainst, HomeXG)
	away := fb.form(raw.AwayRecent, AwayFormPPG, AwayGoalsFor, AwayGoalsAgainst, AwayXG)
	values = append(values,
		home.ppg, away.ppg, home.ppg-away.ppg,
		home.goalsFor, home.goalsAgainst, away.goalsFor, away.goalsAgainst,
		home.xg, away.xg, home.xg-away.xg,
	)

	winRate, drawRate := fb.headToHead(raw.HeadToHead)
	values = append(values, winRate, drawRate, fb.restDelta(raw.RestDaysHome, raw.RestDaysAway))

	market, overround := raw.MarketOdds.Implied()
	values = append(values, market[models.OutcomeHome], market[models.OutcomeDraw], market[models.OutcomeAway], overround)

	for _, name := range fb.imputed {
		b.logger.WithFields(logrus.Fields{
			"match_id": raw.MatchID,
			"league":   raw.League,
			"feature":  name,
		}).Warn("Feature default applied")
	}

	return &MatchFeatureVector{
		matchID:       raw.MatchID,
		schemaVersion: b.schema.Version,
		names:         b.schema.Names,
		values:        values,
		imputed:       fb.imputed,
	}, nil
}

func (b *Builder) check(raw *models.RawMatchContext) error {
	if err := b.validate.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			field := fe.Namespace()
			if idx := strings.Index(field, "."); idx >= 0 {
				field = field[idx+1:]
			}
			return models.NewSchemaError(field, "failed %q constraint", fe.Tag())
		}
		return models.NewSchemaError("match", "%v", err)
	}

	odds := raw.MarketOdds
	if !odds.Complete() {
		return models.NewSchemaError("market_odds", "home, draw and away prices are required")
	}
	for _, o := range models.Outcomes {
		if odds.Get(o) <= 1 {
			return models.NewSchemaError("market_odds."+o.String(), "decimal odds must exceed 1, got %v", odds.Get(o))
		}
	}

	if err := checkOrdered("home_recent", raw.HomeRecent, raw); err != nil {
		return err
	}
	if err := checkOrdered("away_recent", raw.AwayRecent, raw); err != nil {
		return err
	}
	for i := 1; i < len(raw.HeadToHead); i++ {
		if raw.HeadToHead[i].PlayedAt.Before(raw.HeadToHead[i-1].PlayedAt) {
			return models.NewSchemaError("head_to_head", "records must be in ascending time order")
		}
	}
	return nil
}

func checkOrdered(field string, records []models.ResultRecord, raw *models.RawMatchContext) error {
	for i, r := range records {
		if !r.PlayedAt.Before(raw.KickoffAt) {
			return models.NewSchemaError(field, "record %d is not before kickoff", i)
		}
		if i > 0 && r.PlayedAt.Before(records[i-1].PlayedAt) {
			return models.NewSchemaError(field, "records must be in ascending time order")
		}
	}
	return nil
}

type formStats struct {
	ppg          float64
	goalsFor     float64
	goalsAgainst float64
	xg           float64
}

// fill computes feature groups and remembers which ones fell back to defaults.
type fill struct {
	defaults Defaults
	imputed  []string
}

func (f *fill) impute(names ...string) {
	f.imputed = append(f.imputed, names...)
}

func (f *fill) window(n int) int {
	if n > f.defaults.RecentWindow {
		return n - f.defaults.RecentWindow
	}
	return 0
}

func (f *fill) form(records []models.ResultRecord, ppgName, forName, againstName, xgName string) formStats {
	if len(records) == 0 {
		f.impute(ppgName, forName, againstName, xgName)
		return formStats{
			ppg:          f.defaults.FormPPG,
			goalsFor:     f.defaults.GoalsFor,
			goalsAgainst: f.defaults.GoalsAgainst,
			xg:           f.defaults.GoalsFor,
		}
	}

	recent := records[f.window(len(records)):]
	var points, goalsFor, goalsAgainst, xg float64
	xgCount := 0
	for _, r := range recent {
		points += float64(r.Points())
		goalsFor += float64(r.GoalsFor)
		goalsAgainst += float64(r.GoalsAgainst)
		if r.ExpectedGoals != nil {
			xg += *r.ExpectedGoals
			xgCount++
		}
	}
	n := float64(len(recent))
	stats := formStats{
		ppg:          points / n,
		goalsFor:     goalsFor / n,
		goalsAgainst: goalsAgainst / n,
	}
	if xgCount > 0 {
		stats.xg = xg / float64(xgCount)
	} else {
		f.impute(xgName)
		stats.xg = stats.goalsFor
	}
	return stats
}

func (f *fill) headToHead(records []models.HeadToHeadRecord) (float64, float64) {
	if len(records) == 0 {
		f.impute(H2HHomeWinRate, H2HDrawRate)
		return f.defaults.H2HHomeWinRate, f.defaults.H2HDrawRate
	}
	recent := records[f.window(len(records)):]
	var wins, draws float64
	for _, r := range recent {
		switch {
		case r.HomeGoals > r.AwayGoals:
			wins++
		case r.HomeGoals == r.AwayGoals:
			draws++
		}
	}
	n := float64(len(recent))
	return wins / n, draws / n
}

func (f *fill) restDelta(home, away *int) float64 {
	if home == nil || away == nil {
		f.impute(RestDaysDelta)
		return f.defaults.RestDaysDelta
	}
	return float64(*home - *away)
}
