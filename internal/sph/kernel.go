package sph

// KernelSupport is the kernel cutoff in units of the smoothing length.
const KernelSupport = 2.0

// CubicSpline evaluates the cubic B-spline kernel and its derivative with
// respect to q = r/h. Both are continuous at q = 1 and vanish for q >= 2.
func CubicSpline(q float64) (w, dwdq float64) {
	switch {
	case q <= 1:
		q2 := q * q
		return 1 - 1.5*q2 + 0.75*q2*q, -3*q + 2.25*q2
	case q <= KernelSupport:
		s := KernelSupport - q
		return 0.25 * s * s * s, -0.75 * s * s
	default:
		return 0, 0
	}
}
