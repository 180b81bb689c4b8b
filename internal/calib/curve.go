// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package calib maps compensated ambient brightness to backlight
// levels through a quadratic curve fitted over user calibration points.
package calib

import (
	"fmt"
	"math"
)

// MaxPoints bounds a calibration point set.
const MaxPoints = 50

// DefaultPoints is the factory calibration curve, tuned for a roughly
// perceptual backlight ramp.
var DefaultPoints = []float64{0.0, 0.15, 0.29, 0.45, 0.61, 0.74, 0.81, 0.88, 0.93, 0.97, 1.0}

// Curve holds one power source's calibration points and the quadratic
// coefficients fitted over them. The fit treats the point index as the
// abscissa: y = a0 + a1*x + a2*x^2 with x in [0, len(points)-1].
type Curve struct {
	points []float64
	coef   [3]float64
}

// NewCurve validates the points and fits a curve over them.
func NewCurve(points []float64) (*Curve, error) {
	c := &Curve{}
	if err := c.SetPoints(points); err != nil {
		return nil, err
	}
	return c, nil
}

// SetPoints replaces the calibration points and refits the curve. A nil
// slice keeps the current points and refits over them.
func (c *Curve) SetPoints(points []float64) error {
	if points == nil {
		points = c.points
	}
	if err := ValidatePoints(points); err != nil {
		return err
	}
	c.points = append(c.points[:0:0], points...)
	c.coef = fit(c.points)
	return nil
}

// Points returns a copy of the calibration points.
func (c *Curve) Points() []float64 {
	return append([]float64(nil), c.points...)
}

// Coefficients returns the fitted polynomial coefficients a0, a1, a2.
func (c *Curve) Coefficients() [3]float64 {
	return c.coef
}

// Eval evaluates the fitted polynomial at x and clamps the result to
// the valid backlight range.
func (c *Curve) Eval(x float64) float64 {
	y := c.coef[0] + c.coef[1]*x + c.coef[2]*x*x
	return Clamp(y, 0, 1)
}

// Map translates a compensated ambient brightness in [0, 1] to a
// backlight level by scaling it onto the point index range and
// evaluating the fitted curve.
func (c *Curve) Map(compensated float64) float64 {
	x := compensated * float64(len(c.points)-1)
	return c.Eval(x)
}

// ValidatePoints checks a calibration point set: between 2 and
// MaxPoints values, each in [0, 1].
func ValidatePoints(points []float64) error {
	if len(points) < 2 {
		return fmt.Errorf("calibration needs at least 2 points, got %d", len(points))
	}
	if len(points) > MaxPoints {
		return fmt.Errorf("calibration allows at most %d points, got %d", MaxPoints, len(points))
	}
	for i, p := range points {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("calibration point %d out of range: %v", i, p)
		}
	}
	return nil
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mean returns the arithmetic mean of samples, or 0 for an empty set.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// fit computes a degree-2 least squares fit over points with the index
// as abscissa. Two points are underdetermined for a quadratic, so they
// degenerate to the line through both.
func fit(points []float64) [3]float64 {
	n := len(points)
	if n == 2 {
		return [3]float64{points[0], points[1] - points[0], 0}
	}

	// Normal equations: for j in 0..2,
	//   sum_i x_i^(j+k) * a_k = sum_i x_i^j * y_i
	var m [3][4]float64
	for i := 0; i < n; i++ {
		x := float64(i)
		y := points[i]
		pow := [5]float64{1, x, x * x, x * x * x, x * x * x * x}
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				m[j][k] += pow[j+k]
			}
			m[j][3] += pow[j] * y
		}
	}

	// Gaussian elimination with partial pivoting. Distinct abscissae
	// keep the system nonsingular for n >= 3.
	for col := 0; col < 3; col++ {
		pivot := col
		for row := col + 1; row < 3; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := col + 1; row < 3; row++ {
			f := m[row][col] / m[col][col]
			for k := col; k < 4; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	var coef [3]float64
	for row := 2; row >= 0; row-- {
		sum := m[row][3]
		for k := row + 1; k < 3; k++ {
			sum -= m[row][k] * coef[k]
		}
		coef[row] = sum / m[row][row]
	}
	return coef
}
