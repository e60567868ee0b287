package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/unicode/norm"
)

// maxExponent bounds the decimal exponent accepted by ParseMeasure. Anything
// beyond it does not survive conversion to a float64 anyway.
const maxExponent = 400

// Measure is a measured quantity: a decimal magnitude and its unit.
type Measure struct {
	magnitude *apd.Decimal
	unit      string
}

// NewMeasure returns a measure of v expressed in unit.
func NewMeasure(v float64, unit string) (Measure, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Measure{}, fmt.Errorf("measure magnitude %v is not finite", v)
	}
	d, err := new(apd.Decimal).SetFloat64(v)
	if err != nil {
		return Measure{}, fmt.Errorf("converting magnitude %v: %w", v, err)
	}
	return Measure{magnitude: d, unit: NormalizeUnit(unit)}, nil
}

// ParseMeasure parses the canonical "<magnitude> <unit>" form produced by
// String. The unit is optional.
func ParseMeasure(s string) (Measure, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Measure{}, fmt.Errorf("parsing measure: empty string")
	}
	num, unit, _ := strings.Cut(s, " ")
	d, _, err := apd.NewFromString(num)
	if err != nil {
		return Measure{}, fmt.Errorf("parsing measure %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Measure{}, fmt.Errorf("parsing measure %q: magnitude is not finite", s)
	}
	if d.Exponent > maxExponent || d.Exponent < -maxExponent {
		return Measure{}, fmt.Errorf("parsing measure %q: magnitude out of range", s)
	}
	return Measure{magnitude: d, unit: NormalizeUnit(unit)}, nil
}

// Unit returns the unit symbol of the measure.
func (m Measure) Unit() string { return m.unit }

// Float64 returns the magnitude as a 64-bit float.
func (m Measure) Float64() (float64, error) {
	if m.magnitude == nil {
		return 0, fmt.Errorf("measure has no magnitude")
	}
	return m.magnitude.Float64()
}

// String renders the canonical form of the measure, e.g. "3.5 °C".
func (m Measure) String() string {
	if m.magnitude == nil {
		return ""
	}
	num := m.magnitude.Text('f')
	if m.unit == "" {
		return num
	}
	return num + " " + m.unit
}

// NormalizeUnit trims the unit and puts it in Unicode NFC form so that the
// same symbol typed two ways ends up as the same stored string.
func NormalizeUnit(unit string) string {
	return norm.NFC.String(strings.TrimSpace(unit))
}

// FormatValue renders a stored continuous value the way gateway consumers
// expect it: shortest round-trip decimal, always with a fractional part.
// Magnitudes of at least 1e7 or below 1e-3 switch to exponent form, e.g.
// "1.0E21" or "2.5E-4".
func FormatValue(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if a := math.Abs(v); a != 0 && (a >= 1e7 || a < 1e-3) {
		s := strconv.FormatFloat(v, 'E', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "E")
		if !strings.ContainsRune(mantissa, '.') {
			mantissa += ".0"
		}
		e, _ := strconv.Atoi(exp)
		return mantissa + "E" + strconv.Itoa(e)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
