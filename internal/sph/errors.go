package sph

import (
	"errors"
	"fmt"
)

// ErrDegenerateNeighborhood is returned when a search finds no pairs at all.
var ErrDegenerateNeighborhood = errors.New("sph: no neighbor pairs found")

// Quantity names the field a finiteness check failed on.
type Quantity string

const (
	QuantityVelocity     Quantity = "velocity"
	QuantityPosition     Quantity = "position"
	QuantityDensity      Quantity = "density"
	QuantityDivergence   Quantity = "divergence"
	QuantityAcceleration Quantity = "acceleration"
	QuantityStress       Quantity = "stress"
)

// CapacityError reports a request larger than a preallocated buffer.
type CapacityError struct {
	What      string
	Requested int
	Max       int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("sph: %s capacity exceeded: requested %d, max %d", e.What, e.Requested, e.Max)
}

// DivergenceError reports the first particle whose update produced a
// non-finite value. Axis is -1 for scalar and tensor quantities.
type DivergenceError struct {
	Quantity Quantity
	Index    int
	Axis     int
}

func (e *DivergenceError) Error() string {
	if e.Axis >= 0 {
		return fmt.Sprintf("sph: non-finite %s at particle %d (axis %d)", e.Quantity, e.Index, e.Axis)
	}
	return fmt.Sprintf("sph: non-finite %s at particle %d", e.Quantity, e.Index)
}
