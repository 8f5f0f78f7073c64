// Package clock counts topology generations.
package clock

import "sync/atomic"

// Epoch is a monotonically increasing generation number. The zero value starts at 0.
type Epoch struct {
	v atomic.Uint64
}

func NewEpoch(init uint64) *Epoch {
	var e Epoch
	e.v.Store(init)
	return &e
}

func (e *Epoch) Val() uint64 {
	return e.v.Load()
}

// Next advances the epoch and returns the new value.
func (e *Epoch) Next() uint64 {
	return e.v.Add(1)
}
