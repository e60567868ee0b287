package store

import (
	"fmt"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/jmoiron/sqlx"
)

const (
	selectContinuous = `SELECT id, timestamp, unit, value, name, params, deviceuri FROM ContinuousNotification`
	selectDiscrete   = `SELECT id, timestamp, value, name, deviceuri FROM DiscreteNotification`

	windowClause = ` AND timestamp >= ? AND timestamp <= ?`
	pageClause   = ` LIMIT ? OFFSET ?`
)

// Stream grouping only compares a row with the one before it, so every query
// feeding the composer must order by the grouping key first.
const (
	queryAllContinuous = selectContinuous +
		` WHERE deviceuri = ?` + windowClause +
		` ORDER BY name ASC, params ASC, timestamp ASC, id ASC` + pageClause

	queryAllDiscreteByName = selectDiscrete +
		` WHERE deviceuri = ?` + windowClause +
		` ORDER BY name ASC, timestamp ASC, id ASC` + pageClause

	queryAllDiscreteAggregated = selectDiscrete +
		` WHERE deviceuri = ?` + windowClause +
		` ORDER BY timestamp ASC, id ASC` + pageClause

	queryContinuousStream = selectContinuous +
		` WHERE deviceuri = ? AND name = ? AND params = ?` + windowClause +
		` ORDER BY timestamp ASC, id ASC` + pageClause

	queryDiscreteStream = selectDiscrete +
		` WHERE deviceuri = ? AND name = ?` + windowClause +
		` ORDER BY timestamp ASC, id ASC` + pageClause

	queryDiscreteNames = selectDiscrete +
		` WHERE deviceuri = ? AND name IN (?)` + windowClause +
		` ORDER BY timestamp ASC, id ASC` + pageClause
)

// windowArgs returns the bind values of windowClause.
func windowArgs(w model.TimeWindow) []any {
	return []any{w.Start.UnixMilli(), w.End.UnixMilli()}
}

// pageArgs returns the bind values of pageClause. SQLite reads a negative
// LIMIT as "no limit".
func pageArgs(p model.Page) []any {
	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return []any{limit, offset}
}

// discreteNamesQuery expands the IN (?) of queryDiscreteNames to one
// placeholder per name. Names are bound in slice order.
func discreteNamesQuery(deviceURI string, names []string, w model.TimeWindow, p model.Page) (string, []any, error) {
	if len(names) == 0 {
		return "", nil, fmt.Errorf("at least one notification name is required")
	}
	args := []any{deviceURI, names}
	args = append(args, windowArgs(w)...)
	args = append(args, pageArgs(p)...)
	query, bound, err := sqlx.In(queryDiscreteNames, args...)
	if err != nil {
		return "", nil, fmt.Errorf("expanding name list: %w", err)
	}
	return query, bound, nil
}

// uniqueNames drops empty and repeated names, keeping first-seen order.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
