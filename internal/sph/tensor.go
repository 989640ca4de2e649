package sph

import "gonum.org/v1/gonum/spatial/r3"

// Tensor is a 3x3 matrix in row-major order.
type Tensor [3][3]float64

// ScaledIdentity returns s*I.
func ScaledIdentity(s float64) Tensor {
	return Tensor{{s, 0, 0}, {0, s, 0}, {0, 0, s}}
}

func (t Tensor) Add(u Tensor) Tensor {
	for r := range t {
		for c := range t[r] {
			t[r][c] += u[r][c]
		}
	}
	return t
}

func (t Tensor) Sub(u Tensor) Tensor {
	for r := range t {
		for c := range t[r] {
			t[r][c] -= u[r][c]
		}
	}
	return t
}

func (t Tensor) Scale(s float64) Tensor {
	for r := range t {
		for c := range t[r] {
			t[r][c] *= s
		}
	}
	return t
}

// MulVec returns t*v.
func (t Tensor) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0][0]*v.X + t[0][1]*v.Y + t[0][2]*v.Z,
		Y: t[1][0]*v.X + t[1][1]*v.Y + t[1][2]*v.Z,
		Z: t[2][0]*v.X + t[2][1]*v.Y + t[2][2]*v.Z,
	}
}

// IsFinite reports whether every component is neither NaN nor infinite.
func (t Tensor) IsFinite() bool {
	for r := range t {
		for c := range t[r] {
			if !isFinite(t[r][c]) {
				return false
			}
		}
	}
	return true
}
