package scoring

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Magnitude is one suffix step of the volume formatter.
type Magnitude struct {
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
	Suffix    string  `mapstructure:"suffix" json:"suffix"`
}

// DefaultMagnitudes returns k/M/B/T at powers of 1000, ascending.
func DefaultMagnitudes() []Magnitude {
	return []Magnitude{
		{Threshold: 1e3, Suffix: "k"},
		{Threshold: 1e6, Suffix: "M"},
		{Threshold: 1e9, Suffix: "B"},
		{Threshold: 1e12, Suffix: "T"},
	}
}

// FormatVolume renders v with the default magnitudes.
//
//	999           -> "999.00"
//	1500          -> "1.5k"
//	2_500_000     -> "2.5M"
//	1_000_000_000 -> "1.0B"
func FormatVolume(v float64) string {
	return FormatVolumeWith(v, DefaultMagnitudes())
}

// FormatVolumeWith renders v scaled by the largest magnitude it reaches, with one
// decimal digit and the magnitude suffix, or with two decimal digits and no
// suffix below the smallest magnitude.
//
// The division and rounding run on the exact decimal value of v, so halves
// round away from zero even where the binary float sits just below the half:
// 1150 renders "1.2k", not the "1.1k" a float toFixed would give.
// mags must be sorted by ascending threshold.
func FormatVolumeWith(v float64, mags []Magnitude) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}

	d := decimal.NewFromFloat(v)
	for i := len(mags) - 1; i >= 0; i-- {
		m := mags[i]
		if m.Threshold > 0 && v >= m.Threshold {
			return d.Div(decimal.NewFromFloat(m.Threshold)).StringFixed(1) + m.Suffix
		}
	}
	return d.StringFixed(2)
}

// FormatPrice renders a price with 8 decimal digits.
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return strconv.FormatFloat(p, 'f', 8, 64)
	}
	return decimal.NewFromFloat(p).StringFixed(8)
}
