package store

import (
	"database/sql"

	"github.com/darshan-rambhia/evstore/internal/model"
)

// continuousRow is one ContinuousNotification row as selected by the reader.
type continuousRow struct {
	ID        int64           `db:"id"`
	Timestamp int64           `db:"timestamp"`
	Unit      sql.NullString  `db:"unit"`
	Value     sql.NullFloat64 `db:"value"`
	Name      sql.NullString  `db:"name"`
	Params    sql.NullString  `db:"params"`
	DeviceURI sql.NullString  `db:"deviceuri"`
}

func (r continuousRow) point() model.EventDataPoint {
	return model.EventDataPoint{
		Timestamp: model.UnixMilli(r.Timestamp),
		Value:     model.FormatValue(r.Value.Float64),
		Unit:      r.Unit.String,
	}
}

// discreteRow is one DiscreteNotification row as selected by the reader.
type discreteRow struct {
	ID        int64          `db:"id"`
	Timestamp int64          `db:"timestamp"`
	Value     sql.NullString `db:"value"`
	Name      sql.NullString `db:"name"`
	DeviceURI sql.NullString `db:"deviceuri"`
}

func (r discreteRow) point() model.EventDataPoint {
	return model.EventDataPoint{
		Timestamp: model.UnixMilli(r.Timestamp),
		Value:     r.Value.String,
	}
}

// streamComposer folds ordered rows into a stream set. A new stream starts
// whenever the (name, params) key differs from the previous row's key; equal
// keys that are not adjacent end up in separate streams.
type streamComposer struct {
	set     *model.EventDataStreamSet
	current *model.EventDataStream
	name    string
	params  string
}

func newStreamComposer(deviceURI string) *streamComposer {
	return &streamComposer{set: model.NewEventDataStreamSet(deviceURI)}
}

func (c *streamComposer) add(name, params string, p model.EventDataPoint) {
	if c.current == nil || name != c.name || params != c.params {
		c.current = model.NewEventDataStream(name, params, c.set.DeviceURI)
		c.set.Add(c.current)
		c.name = name
		c.params = params
	}
	c.current.Add(p)
}

func (c *streamComposer) result() *model.EventDataStreamSet {
	return c.set
}
