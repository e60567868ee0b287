package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/darshan-rambhia/evstore/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	StopOnError bool
}

// ingestRecord is one line of ingest input.
type ingestRecord struct {
	Kind      string     `json:"kind"` // "continuous" or "discrete"
	Device    string     `json:"device"`
	Name      string     `json:"name"`
	Params    string     `json:"params,omitempty"`
	Value     string     `json:"value"` // "<magnitude> <unit>" for continuous
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type ingestResult struct {
	Run    string `json:"run" yaml:"run"`
	Read   int    `json:"read" yaml:"read"`
	Stored int    `json:"stored" yaml:"stored"`
	Failed int    `json:"failed" yaml:"failed"`
}

func (r ingestResult) String() string {
	return fmt.Sprintf("run %s: read %d, stored %d, failed %d", r.Run, r.Read, r.Stored, r.Failed)
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store notifications read as JSON from stdin",
		Long: `Store a stream of notifications read as JSON objects from stdin, one per
line. Database maintenance runs alongside until the input ends or the
process is interrupted.

Each object has the fields kind ("continuous" or "discrete"), device,
name, value and optionally params and timestamp (RFC 3339, default now).
Continuous values carry their unit: "21.5 °C".

Example:
  gateway-bridge | evstore ingest
  echo '{"kind":"discrete","device":"frontdoor","name":"state","value":"open"}' | evstore ingest`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "stop at the first notification that cannot be stored")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *IngestOptions) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	maintainer := store.NewMaintainer(a.store, a.cfg.MaintenanceInterval.Duration)
	run, err := uuid.NewV7()
	if err != nil {
		return WrapExitError(ExitFailure, "generating run id", err)
	}
	log := slog.With("run", run.String())
	log.Info("ingest started")

	g, gctx := errgroup.WithContext(ctx)
	maintCtx, stopMaintenance := context.WithCancel(gctx)
	defer stopMaintenance()

	var res ingestResult
	g.Go(func() error {
		if err := maintainer.Run(maintCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopMaintenance()
		var err error
		res, err = ingest(gctx, log, a.notifs, cmd.InOrStdin(), opts.StopOnError)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("ingest interrupted", "stored", res.Stored)
		} else {
			var exitErr *ExitError
			if errors.As(err, &exitErr) {
				return exitErr
			}
			return storeError("ingesting", err)
		}
	}
	log.Info("ingest finished", "read", res.Read, "stored", res.Stored, "failed", res.Failed)
	res.Run = run.String()
	return opts.formatter(cmd).Success(res)
}

// ingest decodes records from r until EOF and stores each of them. A record
// that cannot be stored is counted and skipped unless stopOnError is set;
// malformed JSON always stops the stream.
func ingest(ctx context.Context, log *slog.Logger, n *store.Notifications, r io.Reader, stopOnError bool) (ingestResult, error) {
	var res ingestResult
	dec := json.NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		var rec ingestRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, WrapExitError(ExitUsage, fmt.Sprintf("decoding record %d", res.Read+1), err)
		}
		res.Read++

		if err := storeRecord(ctx, n, rec); err != nil {
			res.Failed++
			log.Warn("skipping notification", "record", res.Read, "device", rec.Device, "name", rec.Name, "error", err)
			if stopOnError {
				return res, storeError(fmt.Sprintf("storing record %d", res.Read), err)
			}
			continue
		}
		res.Stored++
	}
}

func storeRecord(ctx context.Context, n *store.Notifications, rec ingestRecord) error {
	ts := time.Now()
	if rec.Timestamp != nil {
		ts = *rec.Timestamp
	}
	switch rec.Kind {
	case "continuous":
		m, err := model.ParseMeasure(rec.Value)
		if err != nil {
			return fmt.Errorf("%w: %w", store.ErrInvalidNotification, err)
		}
		return n.InsertContinuous(ctx, rec.Device, ts, m, rec.Name, rec.Params)
	case "discrete":
		if rec.Params != "" {
			return fmt.Errorf("%w: discrete notifications carry no params", store.ErrInvalidNotification)
		}
		return n.InsertDiscrete(ctx, rec.Device, ts, rec.Value, rec.Name)
	default:
		return fmt.Errorf("%w: unknown kind %q", store.ErrInvalidNotification, rec.Kind)
	}
}
