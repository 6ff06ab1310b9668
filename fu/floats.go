package fu

import "math"

func Mean(a []float64) float64 {
	var c float64
	for _, x := range a {
		c += x
	}
	return c / float64(len(a))
}

/*
Mse is the mean of squared differences between a and b, b must be at least as long as a
*/
func Mse(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		q := x - b[i]
		c += q * q
	}
	return c / float64(len(a))
}

/*
Mae is the mean of absolute differences between a and b, b must be at least as long as a
*/
func Mae(a, b []float64) float64 {
	var c float64
	for i, x := range a {
		c += math.Abs(x - b[i])
	}
	return c / float64(len(a))
}

/*
Sst is the total sum of squares of a around its mean
*/
func Sst(a []float64) float64 {
	m := Mean(a)
	var c float64
	for _, x := range a {
		q := x - m
		c += q * q
	}
	return c
}

// Fnz returns the first non-zero value
func Fnz(a ...float64) float64 {
	for _, x := range a {
		if x != 0 {
			return x
		}
	}
	return 0
}

// Fnzi returns the first non-zero value
func Fnzi(a ...int) int {
	for _, x := range a {
		if x != 0 {
			return x
		}
	}
	return 0
}

// Finite reports whether all values are neither NaN nor infinite
func Finite(a []float64) bool {
	for _, x := range a {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
