package indicator

import (
	"maps"
	"slices"
	"sync"

	"github.com/rxtech-lab/algoscript/internal/types"
	"github.com/rxtech-lab/algoscript/pkg/errors"
)

// Registry resolves the indicator names a strategy refers to into calculators.
type Registry interface {
	Register(ind Indicator) error
	Get(name types.IndicatorType) (Indicator, error)
	// Names returns the registered names in sorted order.
	Names() []types.IndicatorType
}

type registry struct {
	mu         sync.RWMutex
	indicators map[types.IndicatorType]Indicator
}

// NewRegistry creates a registry holding indicators. Two indicators with the
// same name are an error.
func NewRegistry(indicators ...Indicator) (Registry, error) {
	r := &registry{
		mu:         sync.RWMutex{},
		indicators: make(map[types.IndicatorType]Indicator, len(indicators)),
	}

	for _, ind := range indicators {
		if err := r.Register(ind); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// NewDefaultRegistry holds EMA, RSI and MACD with their default periods.
func NewDefaultRegistry() Registry {
	r, err := NewRegistry(NewEMA(), NewRSI(), NewMACD())
	if err != nil {
		panic(err)
	}

	return r
}

func (r *registry) Register(ind Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := ind.Name()
	if _, ok := r.indicators[name]; ok {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "indicator %s is already registered", name)
	}

	r.indicators[name] = ind

	return nil
}

func (r *registry) Get(name types.IndicatorType) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ind, ok := r.indicators[name]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeIndicatorNotFound, "unknown indicator %s", name)
	}

	return ind, nil
}

func (r *registry) Names() []types.IndicatorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.indicators))
}
