package utils

import (
	"math"
)

// POW is an integer power with unrolled small exponents, used for the T^4
// radiative terms in the inner solve loops
func POW(x float64, pp int) (y float64) {
	var (
		p       = pp
		flipped bool
	)
	if pp > 4 || pp < -4 {
		return math.Pow(x, float64(pp))
	}
	if p < 0 {
		p = -pp
		flipped = true
	}
	switch p {
	case 0:
		y = 1
	case 1:
		y = x
	case 2:
		y = x * x
	case 3:
		y = x * x * x
	case 4:
		y = x * x
		y = y * y
	}
	if flipped {
		y = 1. / y
	}
	return
}

// Clamp limits an index to [lo, hi]
func Clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// SumInts returns the sum of a bucket slice
func SumInts(v []int) (sum int) {
	for _, x := range v {
		sum += x
	}
	return
}

// Fill sets every element of v to val
func Fill(v []float64, val float64) {
	for i := range v {
		v[i] = val
	}
}

func Abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
