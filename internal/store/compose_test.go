package store

import (
	"testing"
	"time"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(sec int64, v string) model.EventDataPoint {
	return model.EventDataPoint{Timestamp: time.Unix(sec, 0).UTC(), Value: v}
}

func TestStreamComposer_Empty(t *testing.T) {
	set := newStreamComposer("d1").result()
	assert.Equal(t, "d1", set.DeviceURI)
	assert.Equal(t, 0, set.Len())
	assert.NotNil(t, set.Streams)
}

func TestStreamComposer_AdjacentKeysOnly(t *testing.T) {
	c := newStreamComposer("d1")
	c.add("A", "", point(1, "1"))
	c.add("A", "", point(2, "2"))
	c.add("B", "", point(3, "3"))
	c.add("A", "", point(4, "4"))

	set := c.result()
	require.Equal(t, 3, set.Len())
	assert.Equal(t, "A", set.Streams[0].Name)
	assert.Equal(t, 2, set.Streams[0].Len())
	assert.Equal(t, "B", set.Streams[1].Name)
	assert.Equal(t, "A", set.Streams[2].Name)
	assert.Equal(t, "4", set.Streams[2].Points[0].Value)
}

func TestStreamComposer_ParamsSplitStreams(t *testing.T) {
	c := newStreamComposer("d1")
	c.add("temp", "ch=1", point(1, "1"))
	c.add("temp", "ch=2", point(2, "2"))
	c.add("temp", "ch=2", point(3, "3"))

	set := c.result()
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "ch=1", set.Streams[0].Params)
	assert.Equal(t, "ch=2", set.Streams[1].Params)
	assert.Equal(t, 2, set.Streams[1].Len())
	for _, s := range set.Streams {
		assert.Equal(t, "d1", s.DeviceURI)
	}
}

func TestContinuousRow_Point(t *testing.T) {
	r := continuousRow{Timestamp: 1500}
	r.Value.Float64, r.Value.Valid = 20, true
	r.Unit.String, r.Unit.Valid = "W", true

	p := r.point()
	assert.Equal(t, "20.0", p.Value)
	assert.Equal(t, "W", p.Unit)
	assert.True(t, time.UnixMilli(1500).Equal(p.Timestamp))
}

func TestDiscreteRow_NullValue(t *testing.T) {
	p := discreteRow{Timestamp: 0}.point()
	assert.Equal(t, "", p.Value)
	assert.Equal(t, "", p.Unit)
}

func BenchmarkStreamComposer(b *testing.B) {
	names := []string{"temp", "temp", "power", "power", "power", "voltage"}
	for b.Loop() {
		c := newStreamComposer("d1")
		for i := range 600 {
			c.add(names[i%len(names)], "", point(int64(i), "1.0"))
		}
		_ = c.result()
	}
}

func FuzzStreamComposer(f *testing.F) {
	f.Add([]byte("AABA"))
	f.Add([]byte(""))
	f.Add([]byte("ABCABC"))
	f.Fuzz(func(t *testing.T, keys []byte) {
		c := newStreamComposer("d1")
		for i, k := range keys {
			c.add(string(k), "", point(int64(i), "x"))
		}
		set := c.result()

		total := 0
		for i, s := range set.Streams {
			if s.Len() == 0 {
				t.Fatalf("stream %d is empty", i)
			}
			if i > 0 && set.Streams[i-1].Name == s.Name {
				t.Fatalf("adjacent streams %d and %d share name %q", i-1, i, s.Name)
			}
			total += s.Len()
		}
		if total != len(keys) {
			t.Fatalf("got %d points, want %d", total, len(keys))
		}
	})
}
