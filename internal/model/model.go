// Package model defines all shared domain types for evstore.
package model

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Column limits of the notification tables. Lengths are counted in runes.
const (
	MaxUnitLen          = 5
	MaxNameLen          = 100
	MaxParamsLen        = 255
	MaxDeviceURILen     = 255
	MaxDiscreteValueLen = 100
)

// AggregatedStreamName is the name of the single stream produced when all the
// discrete notifications of a device are merged together.
const AggregatedStreamName = "events"

// ErrFieldTooLong is returned by Validate when a field exceeds its column limit.
var ErrFieldTooLong = errors.New("field too long")

// ContinuousNotification is a numeric, unit-bearing measurement emitted by a device.
type ContinuousNotification struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Unit      string    `json:"unit"`
	Value     float64   `json:"value"`
	Name      string    `json:"name"`
	Params    string    `json:"params"` // k1=v1&k2=v2
	DeviceURI string    `json:"device_uri"`
}

// Validate checks the notification against the column limits.
func (n ContinuousNotification) Validate() error {
	if n.DeviceURI == "" {
		return errors.New("device uri is required")
	}
	if n.Name == "" {
		return errors.New("notification name is required")
	}
	return checkLengths(
		field{"unit", n.Unit, MaxUnitLen},
		field{"name", n.Name, MaxNameLen},
		field{"params", n.Params, MaxParamsLen},
		field{"device uri", n.DeviceURI, MaxDeviceURILen},
	)
}

// DiscreteNotification is a symbolic, string-valued event emitted by a device.
// It never carries a unit or parameters.
type DiscreteNotification struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Value     string    `json:"value"`
	Name      string    `json:"name"`
	DeviceURI string    `json:"device_uri"`
}

// Validate checks the notification against the column limits.
func (n DiscreteNotification) Validate() error {
	if n.DeviceURI == "" {
		return errors.New("device uri is required")
	}
	if n.Name == "" {
		return errors.New("notification name is required")
	}
	return checkLengths(
		field{"value", n.Value, MaxDiscreteValueLen},
		field{"name", n.Name, MaxNameLen},
		field{"device uri", n.DeviceURI, MaxDeviceURILen},
	)
}

type field struct {
	name  string
	value string
	max   int
}

func checkLengths(fields ...field) error {
	for _, f := range fields {
		if n := utf8.RuneCountInString(f.value); n > f.max {
			return fmt.Errorf("%w: %s has %d characters (max %d)", ErrFieldTooLong, f.name, n, f.max)
		}
	}
	return nil
}

// EventDataPoint is the read-side projection of one stored notification.
type EventDataPoint struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Value     string    `json:"value" yaml:"value"`
	Unit      string    `json:"unit" yaml:"unit"` // empty for discrete notifications
}

// EventDataStream is an ordered sequence of points sharing one
// (name, params, device) identity.
type EventDataStream struct {
	Name      string           `json:"name" yaml:"name"`
	Params    string           `json:"params" yaml:"params"`
	DeviceURI string           `json:"device_uri" yaml:"device_uri"`
	Points    []EventDataPoint `json:"points" yaml:"points"`
}

// NewEventDataStream returns an empty stream with the given identity.
func NewEventDataStream(name, params, deviceURI string) *EventDataStream {
	return &EventDataStream{
		Name:      name,
		Params:    params,
		DeviceURI: deviceURI,
		Points:    []EventDataPoint{},
	}
}

// Add appends a point to the stream, keeping query order.
func (s *EventDataStream) Add(p EventDataPoint) {
	s.Points = append(s.Points, p)
}

// Len returns the number of points in the stream.
func (s *EventDataStream) Len() int { return len(s.Points) }

// EventDataStreamSet is an ordered collection of streams produced by one query.
// Streams appear in the order they were discovered while scanning.
type EventDataStreamSet struct {
	DeviceURI string             `json:"device_uri,omitempty" yaml:"device_uri,omitempty"`
	Streams   []*EventDataStream `json:"streams" yaml:"streams"`
}

// NewEventDataStreamSet returns an empty stream set for the given device.
func NewEventDataStreamSet(deviceURI string) *EventDataStreamSet {
	return &EventDataStreamSet{
		DeviceURI: deviceURI,
		Streams:   []*EventDataStream{},
	}
}

// Add appends a stream to the set.
func (s *EventDataStreamSet) Add(stream *EventDataStream) {
	s.Streams = append(s.Streams, stream)
}

// Len returns the number of streams in the set.
func (s *EventDataStreamSet) Len() int { return len(s.Streams) }

// TimeWindow is an inclusive [Start, End] timestamp range.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Page selects a slice of the ordered rows of a query.
// A Limit <= 0 means no limit.
type Page struct {
	Offset int // startCount
	Limit  int // nResults
}

// Device is a device known to the registry.
type Device struct {
	URI       string    `json:"uri" yaml:"uri"`
	FirstSeen time.Time `json:"first_seen" yaml:"first_seen"`
}

// UnixMilli converts a stored millisecond timestamp back to a UTC time.
func UnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
