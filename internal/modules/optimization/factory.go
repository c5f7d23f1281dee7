package optimization

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/portfin/internal/domain"
)

// Kind names an optimizer variant.
type Kind string

const (
	KindHierarchical Kind = "hierarchical"
	KindEfficient    Kind = "efficient"
	KindEqual        Kind = "equal"
)

// OptimizerSpec is the user-facing optimizer selection.
type OptimizerSpec struct {
	Kind         Kind      `json:"kind" yaml:"kind"`
	Objective    Objective `json:"objective,omitempty" yaml:"objective"`
	Gamma        float64   `json:"gamma" yaml:"gamma"`
	RiskFreeRate float64   `json:"risk_free_rate" yaml:"risk_free_rate"`
	Linkage      Linkage   `json:"linkage,omitempty" yaml:"linkage"`
}

// NewOptimizer builds the variant named by spec.Kind (hierarchical when empty).
//
// The efficient variant requires an objective and rejects a linkage. The
// hierarchical and equal variants reject an objective; a non-default gamma or
// risk-free rate has no effect on them and is logged as ignored.
func NewOptimizer(spec OptimizerSpec, log zerolog.Logger) (Optimizer, error) {
	kind := spec.Kind
	if kind == "" {
		kind = KindHierarchical
	}

	switch kind {
	case KindEfficient:
		if spec.Linkage != "" {
			return nil, fmt.Errorf("linkage with %s optimizer: %w", kind, domain.ErrUnsupportedOption)
		}
		return NewEfficientFrontier(spec.Objective, spec.Gamma, spec.RiskFreeRate, log)

	case KindHierarchical, KindEqual:
		if spec.Objective != "" {
			return nil, fmt.Errorf("objective %q with %s optimizer: %w", spec.Objective, kind, domain.ErrUnsupportedOption)
		}
		if spec.Gamma != DefaultGamma || spec.RiskFreeRate != 0 {
			log.Warn().
				Str("optimizer", string(kind)).
				Float64("gamma", spec.Gamma).
				Float64("risk_free_rate", spec.RiskFreeRate).
				Msg("Return-based options ignored by risk-based optimizer")
		}
		if kind == KindEqual {
			if spec.Linkage != "" {
				return nil, fmt.Errorf("linkage with %s optimizer: %w", kind, domain.ErrUnsupportedOption)
			}
			return NewEqualWeight(), nil
		}
		if spec.Linkage != "" && !spec.Linkage.Valid() {
			return nil, fmt.Errorf("unknown linkage %q: %w", spec.Linkage, domain.ErrInvalidConfig)
		}
		return NewHierarchicalRiskParity(spec.Linkage, log), nil

	default:
		return nil, fmt.Errorf("unknown optimizer %q: %w", spec.Kind, domain.ErrInvalidConfig)
	}
}
