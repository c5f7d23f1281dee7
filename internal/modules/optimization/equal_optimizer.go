package optimization

import (
	"github.com/aristath/portfin/internal/domain"
)

// EqualWeight assigns 1/n to every eligible asset.
type EqualWeight struct{}

// NewEqualWeight creates an equal-weight optimizer.
func NewEqualWeight() *EqualWeight {
	return &EqualWeight{}
}

// Name implements Optimizer.
func (e *EqualWeight) Name() string {
	return string(KindEqual)
}

// Optimize implements Optimizer.
func (e *EqualWeight) Optimize(est *Estimate, c Constraints) (domain.Weights, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if est.Len() == 0 {
		return nil, domain.ErrNoEligibleAssets
	}
	if err := c.Feasible(len(est.Assets)); err != nil {
		return nil, err
	}

	w := make(domain.Weights, len(est.Assets))
	for _, a := range est.Assets {
		w[a] = 1 / float64(len(est.Assets))
	}
	return w, nil
}
