package models

import (
	"fmt"
	"math"
)

// Vector is a two-axis magnitude in nanometres.
type Vector struct {
	X float64 `json:"x_nm"`
	Y float64 `json:"y_nm"`
}

// Negate returns the vector pointing the other way.
func (v Vector) Negate() Vector {
	return Vector{X: -v.X, Y: -v.Y}
}

func (v Vector) String() string {
	return fmt.Sprintf("(%.2fnm, %.2fnm)", v.X, v.Y)
}

// TemperatureFunc maps seconds since start to degrees Celsius.
type TemperatureFunc func(elapsed float64) float64

// DistortionFunc maps a temperature in degrees Celsius to a predicted distortion.
type DistortionFunc func(celsius float64) Vector

// CompensationFunc maps a distortion to the compensation that cancels it.
type CompensationFunc func(distortion Vector) Vector

// SineWave returns T(t) = base + amplitude * sin(2*pi*frequency*t).
func SineWave(base, amplitude, frequency float64) TemperatureFunc {
	return func(t float64) float64 {
		return base + amplitude*math.Sin(2*math.Pi*frequency*t)
	}
}

// Step returns a square wave alternating between base and base+delta every
// interval seconds, starting low.
func Step(base, delta, interval float64) TemperatureFunc {
	return func(t float64) float64 {
		if interval <= 0 {
			return base
		}
		if int64(math.Floor(t/interval))%2 != 0 {
			return base + delta
		}
		return base
	}
}

// ZeemanCoefficients parameterizes the quadratic thermal expansion model.
type ZeemanCoefficients struct {
	Reference float64 // degrees C
	AlphaX    float64 // nm per degree
	AlphaY    float64
	BetaX     float64 // nm per degree squared
	BetaY     float64
}

// DefaultZeeman returns the reference model coefficients.
func DefaultZeeman() ZeemanCoefficients {
	return ZeemanCoefficients{
		Reference: 25.0,
		AlphaX:    1.2,
		AlphaY:    0.9,
		BetaX:     0.05,
		BetaY:     0.03,
	}
}

// Zeeman predicts distortion as alpha*dT + beta*dT^2 per axis, with dT
// measured from the reference temperature.
func Zeeman(c ZeemanCoefficients) DistortionFunc {
	return func(celsius float64) Vector {
		dt := celsius - c.Reference
		return Vector{
			X: c.AlphaX*dt + c.BetaX*dt*dt,
			Y: c.AlphaY*dt + c.BetaY*dt*dt,
		}
	}
}

// Negation compensates a distortion by its negation.
func Negation(d Vector) Vector {
	return d.Negate()
}

// Pattern builds a named temperature pattern: "sine" or "step".
func Pattern(name string, base, amplitude, frequency, stepDelta, interval float64) (TemperatureFunc, error) {
	switch name {
	case "sine":
		return SineWave(base, amplitude, frequency), nil
	case "step":
		return Step(base, stepDelta, interval), nil
	default:
		return nil, fmt.Errorf("unknown temperature pattern %q (want sine or step)", name)
	}
}
