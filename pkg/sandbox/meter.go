package sandbox

// Meter implements cache.Tracer and lang.Tracer: during one dispatch it is
// charged for every byte read through or written back by the cache.Driver
// and for every statement and expression the interpreter evaluates, against
// a fixed stamp budget. Modeled on core-coin-go-core/core/state_transition.go's
// useEnergy, which decrements a running counter and fails once it would go
// negative.
type Meter struct {
	limit uint64
	used  uint64
}

// NewMeter installs a budget of limit stamp-equivalents.
func NewMeter(limit uint64) *Meter {
	return &Meter{limit: limit}
}

// Charge implements cache.Tracer.
func (m *Meter) Charge(n uint64) error {
	if m.used+n > m.limit {
		m.used = m.limit
		return ErrOutOfStamps
	}
	m.used += n
	return nil
}

// Used reports the stamps consumed so far.
func (m *Meter) Used() uint64 { return m.used }
