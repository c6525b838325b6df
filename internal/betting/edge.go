// Package betting turns calibrated probabilities into priced value bets and
// Kelly-sized stakes.
package betting

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

// DetectRequest carries everything needed to price one match.
type DetectRequest struct {
	MatchID    string
	Fair       models.Probabilities
	Confidence float64
	Odds       models.BookmakerOdds
	Closing    *models.OutcomeOdds
	Bankroll   decimal.Decimal
	// IncludeAvoid keeps the best-priced below-threshold entry of each outcome
	// for audit.
	IncludeAvoid bool
}

// EdgeDetector compares fair probabilities with bookmaker prices.
type EdgeDetector struct {
	cfg    config.StakingConfig
	logger *logrus.Logger
}

// NewEdgeDetector creates a detector with the configured thresholds.
func NewEdgeDetector(cfg config.StakingConfig, logger *logrus.Logger) *EdgeDetector {
	return &EdgeDetector{cfg: cfg, logger: logger}
}

// Edge returns the expected return per unit staked.
func Edge(fair, odds float64) float64 {
	return fair*odds - 1
}

// CLV returns the closing-line value of a price taken against the closing price.
func CLV(betOdds, closingOdds float64) float64 {
	return betOdds/closingOdds - 1
}

// Tier grades an edge. Premium additionally needs a confident forecast.
func (d *EdgeDetector) Tier(edge, confidence float64) models.Tier {
	switch {
	case edge < d.cfg.MinEdge:
		return models.TierAvoid
	case edge >= d.cfg.PremiumEdge && confidence >= d.cfg.PremiumConfidence:
		return models.TierPremium
	case edge >= d.cfg.ValueEdge:
		return models.TierValue
	default:
		return models.TierMarginal
	}
}

// Detect returns at most one bet per outcome: the bookmaker with the highest
// qualifying odds. Bookmakers without a complete three-way price are skipped
// since their margin cannot be removed.
func (d *EdgeDetector) Detect(req DetectRequest) ([]models.ValueBet, error) {
	if !req.Fair.Valid(models.DefaultProbabilityTolerance) {
		return nil, models.NewSchemaError("fair_probabilities", "not a distribution: %v", req.Fair)
	}
	if !req.Bankroll.IsPositive() {
		d.logger.WithFields(logrus.Fields{
			"match_id": req.MatchID,
			"bankroll": req.Bankroll.String(),
		}).Debug("Non-positive bankroll, skipping edge detection")
		return nil, nil
	}

	bookmakers := make([]string, 0, len(req.Odds))
	for name := range req.Odds {
		bookmakers = append(bookmakers, name)
	}
	sort.Strings(bookmakers)

	var best [models.NumOutcomes]*models.ValueBet
	for _, name := range bookmakers {
		quote := req.Odds[name]
		if err := validateQuote(name, quote); err != nil {
			return nil, err
		}
		if !quote.Complete() {
			d.logger.WithFields(logrus.Fields{
				"match_id":  req.MatchID,
				"bookmaker": name,
			}).Warn("Incomplete bookmaker price skipped")
			continue
		}
		market, overround := quote.Implied()

		for _, o := range models.Outcomes {
			odds := quote.Get(o)
			edge := Edge(req.Fair[o], odds)
			bet := &models.ValueBet{
				MatchID:           req.MatchID,
				Outcome:           o,
				Bookmaker:         name,
				Odds:              odds,
				FairProbability:   req.Fair[o],
				MarketProbability: market[o],
				Overround:         overround,
				Edge:              edge,
				Confidence:        req.Confidence,
				Tier:              d.Tier(edge, req.Confidence),
			}
			// Strictly higher odds win; ties keep the alphabetically first bookmaker.
			if cur := best[o]; cur == nil || bet.Odds > cur.Odds {
				best[o] = bet
			}
		}
	}

	var out []models.ValueBet
	for _, o := range models.Outcomes {
		bet := best[o]
		if bet == nil {
			continue
		}
		if bet.Tier == models.TierAvoid && !req.IncludeAvoid {
			continue
		}
		if req.Closing != nil {
			if closing := req.Closing.Get(o); closing > 1 {
				c := closing
				clv := CLV(bet.Odds, closing)
				bet.ClosingOdds, bet.CLV = &c, &clv
			}
		}
		out = append(out, *bet)
	}

	d.logger.WithFields(logrus.Fields{
		"match_id":   req.MatchID,
		"bookmakers": len(bookmakers),
		"bets":       len(out),
	}).Debug("Edge detection complete")
	return out, nil
}

func validateQuote(bookmaker string, q models.OutcomeOdds) error {
	for _, o := range models.Outcomes {
		if v := q.Get(o); v != 0 && v <= 1 {
			return models.NewSchemaError(fmt.Sprintf("odds.%s.%s", bookmaker, o), "decimal odds must exceed 1, got %v", v)
		}
	}
	return nil
}
