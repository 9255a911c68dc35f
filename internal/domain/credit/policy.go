package credit

import (
	"fmt"
	"slices"
)

const (
	MinScore = 0
	MaxScore = 850
)

// Policy holds the tunable constants of the ledger and the loan engine.
// Amounts are minor currency units.
type Policy struct {
	BaseLimitMinor   int64  `yaml:"base_limit_minor"`
	ScoreFactorMinor int64  `yaml:"score_factor_minor"`
	MaxLimitMinor    int64  `yaml:"max_limit_minor"`
	RepaymentDelta   int64  `yaml:"repayment_delta"`
	DefaultDelta     int64  `yaml:"default_delta"`
	InitialGrant     int64  `yaml:"initial_grant"`
	StrikeThreshold  int32  `yaml:"strike_threshold"`
	FreezeMonths     int    `yaml:"freeze_months"`
	InterestRateBPS  int32  `yaml:"interest_rate_bps"`
	AllowedDurations []int  `yaml:"allowed_durations"`
	SingleActiveLoan bool   `yaml:"single_active_loan"`
	CurrencyCode     string `yaml:"currency_code"`
}

func DefaultPolicy() Policy {
	return Policy{
		BaseLimitMinor:   500000,
		ScoreFactorMinor: 1000,
		MaxLimitMinor:    1000000,
		RepaymentDelta:   50,
		DefaultDelta:     -100,
		InitialGrant:     0,
		StrikeThreshold:  3,
		FreezeMonths:     6,
		InterestRateBPS:  1200,
		AllowedDurations: []int{7, 14, 30, 60, 90},
		SingleActiveLoan: true,
		CurrencyCode:     "INR",
	}
}

func (p Policy) Validate() error {
	switch {
	case p.BaseLimitMinor < 0:
		return fmt.Errorf("base_limit_minor must be >= 0")
	case p.ScoreFactorMinor < 0:
		return fmt.Errorf("score_factor_minor must be >= 0")
	case p.MaxLimitMinor < p.BaseLimitMinor:
		return fmt.Errorf("max_limit_minor must be >= base_limit_minor")
	case p.RepaymentDelta < 0:
		return fmt.Errorf("repayment_delta must be >= 0")
	case p.DefaultDelta > 0:
		return fmt.Errorf("default_delta must be <= 0")
	case p.StrikeThreshold < 1:
		return fmt.Errorf("strike_threshold must be >= 1")
	case p.FreezeMonths < 0:
		return fmt.Errorf("freeze_months must be >= 0")
	case p.InterestRateBPS < 0:
		return fmt.Errorf("interest_rate_bps must be >= 0")
	case len(p.AllowedDurations) == 0:
		return fmt.Errorf("allowed_durations must not be empty")
	case len(p.CurrencyCode) != 3:
		return fmt.Errorf("currency_code must be a 3-letter code")
	}
	for _, d := range p.AllowedDurations {
		if d <= 0 {
			return fmt.Errorf("allowed_durations must be positive")
		}
	}
	return nil
}

// LimitFor maps a score to a borrowing limit. A frozen account borrows nothing.
func (p Policy) LimitFor(score int, frozen bool) int64 {
	if frozen {
		return 0
	}
	limit := p.BaseLimitMinor + p.ScoreFactorMinor*int64(Clamp(int64(score)))
	return min(limit, p.MaxLimitMinor)
}

func (p Policy) DurationAllowed(days int) bool {
	return slices.Contains(p.AllowedDurations, days)
}

// Clamp bounds a raw event sum to the score range.
func Clamp(raw int64) int {
	if raw < MinScore {
		return MinScore
	}
	if raw > MaxScore {
		return MaxScore
	}
	return int(raw)
}
