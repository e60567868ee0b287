package model

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeasure(t *testing.T) {
	m, err := NewMeasure(3.5, "°C")
	require.NoError(t, err)
	assert.Equal(t, "3.5 °C", m.String())
	assert.Equal(t, "°C", m.Unit())

	v, err := m.Float64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
}

func TestNewMeasure_ShortestDecimal(t *testing.T) {
	m, err := NewMeasure(0.1, "W")
	require.NoError(t, err)
	assert.Equal(t, "0.1 W", m.String())

	m, err = NewMeasure(20, "W")
	require.NoError(t, err)
	assert.Equal(t, "20 W", m.String())
}

func TestNewMeasure_NotFinite(t *testing.T) {
	_, err := NewMeasure(math.NaN(), "W")
	assert.Error(t, err)
	_, err = NewMeasure(math.Inf(1), "W")
	assert.Error(t, err)
}

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		in    string
		value float64
		unit  string
	}{
		{"3.5 °C", 3.5, "°C"},
		{"  230 V ", 230, "V"},
		{"-12.25 kWh", -12.25, "kWh"},
		{"42", 42, ""},
		{"1E+3 W", 1000, "W"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMeasure(tt.in)
			require.NoError(t, err)
			v, err := m.Float64()
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.unit, m.Unit())
		})
	}
}

func TestParseMeasure_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc W", "NaN W", "Infinity W", "1E+999999999 W"} {
		_, err := ParseMeasure(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestMeasure_RoundTrip(t *testing.T) {
	m, err := NewMeasure(1234.5678, "kWh")
	require.NoError(t, err)
	back, err := ParseMeasure(m.String())
	require.NoError(t, err)
	assert.Equal(t, m.String(), back.String())
}

func TestMeasure_Zero(t *testing.T) {
	var m Measure
	assert.Equal(t, "", m.String())
	_, err := m.Float64()
	assert.Error(t, err)
}

func TestNormalizeUnit(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "\u00e9", NormalizeUnit("e\u0301"))
	assert.Equal(t, "°C", NormalizeUnit(" °C "))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "3.5", FormatValue(3.5))
	assert.Equal(t, "20.0", FormatValue(20))
	assert.Equal(t, "-0.25", FormatValue(-0.25))
	assert.Equal(t, "0.1", FormatValue(0.1))
	assert.Equal(t, "1000000.0", FormatValue(1e6))
	assert.Equal(t, "9999999.0", FormatValue(9999999))
	assert.Equal(t, "0.0", FormatValue(0))
	assert.Equal(t, "0.001", FormatValue(0.001))
}

func TestFormatValue_ExponentForm(t *testing.T) {
	assert.Equal(t, "1.0E7", FormatValue(1e7))
	assert.Equal(t, "-1.0E7", FormatValue(-1e7))
	assert.Equal(t, "1.0E21", FormatValue(1e21))
	assert.Equal(t, "1.2345E8", FormatValue(123450000))
	assert.Equal(t, "2.5E-4", FormatValue(0.00025))
	assert.Equal(t, "1.0E-300", FormatValue(1e-300))
}

func TestContinuousNotification_Validate(t *testing.T) {
	n := ContinuousNotification{Unit: "°C", Name: "temp", DeviceURI: "d1"}
	assert.NoError(t, n.Validate())

	n.Unit = "°Ccccc"
	assert.ErrorIs(t, n.Validate(), ErrFieldTooLong)

	n.Unit = "W"
	n.Params = strings.Repeat("p", MaxParamsLen+1)
	assert.ErrorIs(t, n.Validate(), ErrFieldTooLong)

	assert.Error(t, ContinuousNotification{Name: "temp"}.Validate())
	assert.Error(t, ContinuousNotification{DeviceURI: "d1"}.Validate())
}

func TestDiscreteNotification_Validate(t *testing.T) {
	n := DiscreteNotification{Value: "on", Name: "state", DeviceURI: "d1"}
	assert.NoError(t, n.Validate())

	n.Value = strings.Repeat("v", MaxDiscreteValueLen+1)
	assert.ErrorIs(t, n.Validate(), ErrFieldTooLong)
}

func TestEventDataStreamSet(t *testing.T) {
	set := NewEventDataStreamSet("d1")
	assert.Equal(t, 0, set.Len())

	s := NewEventDataStream("temp", "", "d1")
	s.Add(EventDataPoint{Timestamp: time.Unix(1, 0), Value: "1.0", Unit: "°C"})
	set.Add(s)

	assert.Equal(t, 1, set.Len())
	assert.Equal(t, 1, set.Streams[0].Len())
}

func TestUnixMilli(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 123_000_000, time.UTC)
	assert.True(t, ts.Equal(UnixMilli(ts.UnixMilli())))
	assert.Equal(t, time.UTC, UnixMilli(0).Location())
}

func BenchmarkParseMeasure(b *testing.B) {
	for b.Loop() {
		_, _ = ParseMeasure("1234.5678 kWh")
	}
}

func FuzzParseMeasure(f *testing.F) {
	f.Add("3.5 °C")
	f.Add("230 V")
	f.Add("-1E+3")
	f.Add("NaN W")
	f.Add("")
	f.Fuzz(func(t *testing.T, s string) {
		m, err := ParseMeasure(s)
		if err != nil {
			return
		}
		again, err := ParseMeasure(m.String())
		if err != nil {
			t.Fatalf("canonical form %q of %q does not parse: %v", m.String(), s, err)
		}
		if again.String() != m.String() {
			t.Fatalf("canonical form not stable: %q then %q", m.String(), again.String())
		}
	})
}

func FuzzFormatValue(f *testing.F) {
	f.Add(3.5)
	f.Add(20.0)
	f.Add(-0.0)
	f.Add(1e21)
	f.Fuzz(func(t *testing.T, v float64) {
		s := FormatValue(v)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		if !strings.Contains(s, ".") {
			t.Fatalf("FormatValue(%v) = %q has no fractional part", v, s)
		}
	})
}
