package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const weightTolerance = 1e-9

// Validate applies struct tag validation plus the cross-field rules the tags
// cannot express. It must pass before any scoring work begins.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := cfg.Scoring
	sum := s.BasicWeight + s.RelevanceWeight + s.PersonalizationWeight + s.BonusBudget
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: signal weights plus bonus budget must sum to 1.0, got %.6f", ErrInvalidConfig, sum)
	}

	basicSum := s.WageWeight + s.FeeWeight + s.PopularityWeight
	if math.Abs(basicSum-1.0) > weightTolerance {
		return fmt.Errorf("%w: basic score weights must sum to 1.0, got %.6f", ErrInvalidConfig, basicSum)
	}

	if s.FeeCeiling <= s.MinFee {
		return fmt.Errorf("%w: fee_ceiling (%.0f) must exceed min_fee (%.0f)", ErrInvalidConfig, s.FeeCeiling, s.MinFee)
	}

	if len(cfg.Sections) == 0 {
		return fmt.Errorf("%w: section plan is empty", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(cfg.Sections))
	for _, sec := range cfg.Sections {
		if seen[sec.Name] {
			return fmt.Errorf("%w: duplicate section name %q", ErrInvalidConfig, sec.Name)
		}
		seen[sec.Name] = true
		if sec.Kind == "fresh" && sec.MaxAgeDays <= 0 {
			return fmt.Errorf("%w: fresh section %q requires max_age_days", ErrInvalidConfig, sec.Name)
		}
	}

	ruleBudget := 0.0
	for _, r := range cfg.Rules {
		if r.Adjustment > 0 {
			ruleBudget += r.Adjustment
		}
		if r.Kind == "recent_application" && r.WithinDays <= 0 {
			return fmt.Errorf("%w: rule %q requires within_days", ErrInvalidConfig, r.Name)
		}
	}
	if ruleBudget > s.BonusBudget*100+weightTolerance {
		return fmt.Errorf("%w: bonus rules total %.1f exceeds bonus budget %.1f",
			ErrInvalidConfig, ruleBudget, s.BonusBudget*100)
	}

	return nil
}
