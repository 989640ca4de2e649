package sph

import (
	"math"
	"testing"
)

func TestCubicSpline(t *testing.T) {
	tests := []struct {
		q, w, dw float64
	}{
		{0, 1, 0},
		{0.5, 1 - 1.5*0.25 + 0.75*0.125, -1.5 + 2.25*0.25},
		{1, 0.25, -0.75},
		{1.5, 0.25 * 0.125, -0.75 * 0.25},
		{2, 0, 0},
		{3, 0, 0},
	}

	for _, tt := range tests {
		w, dw := CubicSpline(tt.q)
		if math.Abs(w-tt.w) > 1e-12 {
			t.Errorf("W(%v) = %v, want %v", tt.q, w, tt.w)
		}
		if math.Abs(dw-tt.dw) > 1e-12 {
			t.Errorf("dW/dq(%v) = %v, want %v", tt.q, dw, tt.dw)
		}
	}
}

func TestCubicSplineContinuousAtOne(t *testing.T) {
	const eps = 1e-9
	wl, dl := CubicSpline(1 - eps)
	wr, dr := CubicSpline(1 + eps)
	if math.Abs(wl-wr) > 1e-8 {
		t.Errorf("W jumps at q=1: %v vs %v", wl, wr)
	}
	if math.Abs(dl-dr) > 1e-8 {
		t.Errorf("dW/dq jumps at q=1: %v vs %v", dl, dr)
	}
}

func TestCubicSplineDerivative(t *testing.T) {
	const h = 1e-6
	for _, q := range []float64{0.1, 0.4, 0.9, 1.2, 1.7, 1.95} {
		_, dw := CubicSpline(q)
		wp, _ := CubicSpline(q + h)
		wm, _ := CubicSpline(q - h)
		fd := (wp - wm) / (2 * h)
		if math.Abs(dw-fd) > 1e-6 {
			t.Errorf("q=%v: dW/dq = %v, finite difference %v", q, dw, fd)
		}
	}
}

func TestCubicSplineNonIncreasing(t *testing.T) {
	prev, _ := CubicSpline(0)
	for q := 0.01; q <= 2.5; q += 0.01 {
		w, dw := CubicSpline(q)
		if w > prev+1e-15 {
			t.Fatalf("W increases at q=%v", q)
		}
		if dw > 0 {
			t.Fatalf("dW/dq positive at q=%v", q)
		}
		prev = w
	}
}
