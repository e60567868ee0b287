package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/darshan-rambhia/evstore/internal/model"
	"golang.org/x/sync/errgroup"
)

// AllContinuous returns every measurement of a device in the window, one
// stream per contiguous (name, params) run. The page applies to rows, so a
// page boundary may split a stream.
func (n *Notifications) AllContinuous(ctx context.Context, deviceURI string, w model.TimeWindow, p model.Page) (*model.EventDataStreamSet, error) {
	args := append([]any{deviceURI}, windowArgs(w)...)
	args = append(args, pageArgs(p)...)

	c := newStreamComposer(deviceURI)
	err := scan(ctx, n.store, queryAllContinuous, args, func(r continuousRow) {
		c.add(r.Name.String, r.Params.String, r.point())
	})
	if err != nil {
		return nil, n.fail("querying continuous notifications", deviceURI, err)
	}
	return c.result(), nil
}

// AllDiscrete returns every discrete notification of a device in the window.
// When aggregated is set all rows are merged, in time order, into a single
// stream named "events"; otherwise there is one stream per notification name.
func (n *Notifications) AllDiscrete(ctx context.Context, deviceURI string, w model.TimeWindow, p model.Page, aggregated bool) (*model.EventDataStreamSet, error) {
	query := queryAllDiscreteByName
	if aggregated {
		query = queryAllDiscreteAggregated
	}
	args := append([]any{deviceURI}, windowArgs(w)...)
	args = append(args, pageArgs(p)...)

	c := newStreamComposer(deviceURI)
	err := scan(ctx, n.store, query, args, func(r discreteRow) {
		name := r.Name.String
		if aggregated {
			name = model.AggregatedStreamName
		}
		c.add(name, "", r.point())
	})
	if err != nil {
		return nil, n.fail("querying discrete notifications", deviceURI, err)
	}
	return c.result(), nil
}

// Continuous returns the measurements exactly matching (name, params).
// params is compared as a plain string.
func (n *Notifications) Continuous(ctx context.Context, deviceURI, name, params string, w model.TimeWindow, p model.Page) (*model.EventDataStream, error) {
	args := append([]any{deviceURI, name, params}, windowArgs(w)...)
	args = append(args, pageArgs(p)...)

	stream := model.NewEventDataStream(name, params, deviceURI)
	err := scan(ctx, n.store, queryContinuousStream, args, func(r continuousRow) {
		stream.Add(r.point())
	})
	if err != nil {
		return nil, n.fail("querying continuous stream", deviceURI, err)
	}
	return stream, nil
}

// Discrete returns the discrete notifications named name.
func (n *Notifications) Discrete(ctx context.Context, deviceURI, name string, w model.TimeWindow, p model.Page) (*model.EventDataStream, error) {
	args := append([]any{deviceURI, name}, windowArgs(w)...)
	args = append(args, pageArgs(p)...)

	stream := model.NewEventDataStream(name, "", deviceURI)
	err := scan(ctx, n.store, queryDiscreteStream, args, func(r discreteRow) {
		stream.Add(r.point())
	})
	if err != nil {
		return nil, n.fail("querying discrete stream", deviceURI, err)
	}
	return stream, nil
}

// DiscreteNames merges the discrete notifications carrying any of names into
// one time-ordered stream called streamName. No names yields an empty stream.
func (n *Notifications) DiscreteNames(ctx context.Context, deviceURI string, names []string, streamName string, w model.TimeWindow, p model.Page) (*model.EventDataStream, error) {
	stream := model.NewEventDataStream(streamName, "", deviceURI)

	names = uniqueNames(names)
	if len(names) == 0 {
		return stream, nil
	}

	query, args, err := discreteNamesQuery(deviceURI, names, w, p)
	if err != nil {
		return nil, n.fail("building discrete name query", deviceURI, err)
	}
	err = scan(ctx, n.store, query, args, func(r discreteRow) {
		stream.Add(r.point())
	})
	if err != nil {
		return nil, n.fail("querying discrete streams", deviceURI, err)
	}
	return stream, nil
}

// DiscreteStreams builds one merged stream per entry of streams, which maps an
// output stream name to the notification names it collects. The queries run
// concurrently; streams are returned sorted by name.
func (n *Notifications) DiscreteStreams(ctx context.Context, deviceURI string, streams map[string][]string, w model.TimeWindow, p model.Page) (*model.EventDataStreamSet, error) {
	names := slices.Sorted(maps.Keys(streams))
	results := make([]*model.EventDataStream, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.fanout)
	for i, streamName := range names {
		g.Go(func() error {
			s, err := n.DiscreteNames(gctx, deviceURI, streams[streamName], streamName, w, p)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := model.NewEventDataStreamSet(deviceURI)
	for _, s := range results {
		set.Add(s)
	}
	return set, nil
}

// Counts returns the number of stored continuous and discrete notifications.
func (n *Notifications) Counts(ctx context.Context) (continuous, discrete int64, err error) {
	db, err := n.store.DB(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := db.GetContext(ctx, &continuous, `SELECT COUNT(*) FROM ContinuousNotification`); err != nil {
		return 0, 0, fmt.Errorf("%w: counting continuous notifications: %w", ErrExecution, err)
	}
	if err := db.GetContext(ctx, &discrete, `SELECT COUNT(*) FROM DiscreteNotification`); err != nil {
		return 0, 0, fmt.Errorf("%w: counting discrete notifications: %w", ErrExecution, err)
	}
	return continuous, discrete, nil
}

// scan runs query and hands each row, decoded into a T, to fn in order.
func scan[T any](ctx context.Context, st *Store, query string, args []any, fn func(T)) error {
	db, err := st.DB(ctx)
	if err != nil {
		return err
	}
	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r T
		if err := rows.StructScan(&r); err != nil {
			return fmt.Errorf("%w: scanning row: %w", ErrExecution, err)
		}
		fn(r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return nil
}
