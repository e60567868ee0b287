package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/darshan-rambhia/evstore/internal/model"
	"github.com/spf13/cobra"
)

// GetOptions holds flags for the get commands.
type GetOptions struct {
	*RootOptions
	From       string
	To         string
	Offset     int
	Limit      int
	Name       string
	Params     string
	Names      []string
	Stream     string
	Groups     []string
	Aggregated bool
}

// NewGetCommand creates the get command and its subcommands.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Read notifications back as event streams",
	}
	cmd.PersistentFlags().StringVar(&opts.From, "from", "", "window start, inclusive (RFC 3339 or unix milliseconds)")
	cmd.PersistentFlags().StringVar(&opts.To, "to", "", "window end, inclusive (RFC 3339 or unix milliseconds)")
	cmd.PersistentFlags().IntVar(&opts.Offset, "offset", 0, "rows to skip")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", 0, "maximum rows, 0 for no limit (default from config)")

	continuous := &cobra.Command{
		Use:   "continuous <device>",
		Short: "Read measurements",
		Long: `Read the measurements of a device.

Without --name every measurement is returned, one stream per (name, params).
With --name only the stream matching --name and --params exactly is returned.

Example:
  evstore get continuous MeteringPowerOutlet_1
  evstore get continuous thermostat --name temp --params zone=living --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getContinuous(cmd, opts, args[0])
		},
	}
	continuous.Flags().StringVar(&opts.Name, "name", "", "notification name")
	continuous.Flags().StringVar(&opts.Params, "params", "", "notification parameters, matched exactly")

	discrete := &cobra.Command{
		Use:   "discrete <device>",
		Short: "Read symbolic values",
		Long: `Read the symbolic values of a device.

  no flags         one stream per notification name
  --aggregated     every value merged into a single "events" stream
  --name N         the values named N; repeat to merge several names into
                   one stream called --stream
  --group S=N1,N2  one merged stream S per group; repeatable

Example:
  evstore get discrete frontdoor --aggregated
  evstore get discrete alarmpanel --name door --name window --stream openings
  evstore get discrete alarmpanel --group security=door,alarm --group power=mains`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return getDiscrete(cmd, opts, args[0])
		},
	}
	discrete.Flags().StringArrayVar(&opts.Names, "name", nil, "notification name (repeatable)")
	discrete.Flags().StringVar(&opts.Stream, "stream", "", "name of the merged stream when several --name are given")
	discrete.Flags().StringArrayVar(&opts.Groups, "group", nil, "merged stream definition stream=name1,name2 (repeatable)")
	discrete.Flags().BoolVar(&opts.Aggregated, "aggregated", false, "merge every value into one stream")

	cmd.AddCommand(continuous, discrete)
	return cmd
}

// window builds the time window and page from the flags. The page limit
// falls back to defaultLimit when --limit is not given.
func (o *GetOptions) window(cmd *cobra.Command, defaultLimit int) (model.TimeWindow, model.Page, error) {
	from, err := parseTimeOr(o.From, time.UnixMilli(0).UTC())
	if err != nil {
		return model.TimeWindow{}, model.Page{}, WrapExitError(ExitUsage, "invalid --from", err)
	}
	to, err := parseTimeOr(o.To, endOfTime)
	if err != nil {
		return model.TimeWindow{}, model.Page{}, WrapExitError(ExitUsage, "invalid --to", err)
	}
	if to.Before(from) {
		return model.TimeWindow{}, model.Page{}, NewExitError(ExitUsage, "--to is before --from")
	}

	limit := o.Limit
	if !cmd.Flags().Changed("limit") {
		limit = defaultLimit
	}
	return model.TimeWindow{Start: from, End: to}, model.Page{Offset: o.Offset, Limit: limit}, nil
}

func getContinuous(cmd *cobra.Command, opts *GetOptions, device string) error {
	ctx := cmd.Context()
	if opts.Name == "" && opts.Params != "" {
		return NewExitError(ExitUsage, "--params requires --name")
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	w, p, err := opts.window(cmd, a.cfg.DefaultLimit)
	if err != nil {
		return err
	}

	out := opts.formatter(cmd)
	if opts.Name != "" {
		stream, err := a.notifs.Continuous(ctx, device, opts.Name, opts.Params, w, p)
		if err != nil {
			return storeError("reading measurements", err)
		}
		return out.Success(stream)
	}
	set, err := a.notifs.AllContinuous(ctx, device, w, p)
	if err != nil {
		return storeError("reading measurements", err)
	}
	return out.Success(set)
}

func getDiscrete(cmd *cobra.Command, opts *GetOptions, device string) error {
	ctx := cmd.Context()

	selectors := 0
	for _, set := range []bool{len(opts.Names) > 0, len(opts.Groups) > 0, opts.Aggregated} {
		if set {
			selectors++
		}
	}
	if selectors > 1 {
		return NewExitError(ExitUsage, "--name, --group and --aggregated are mutually exclusive")
	}
	groups := make(map[string][]string, len(opts.Groups))
	for _, g := range opts.Groups {
		stream, names, err := parseGroup(g)
		if err != nil {
			return WrapExitError(ExitUsage, "invalid --group", err)
		}
		if _, dup := groups[stream]; dup {
			return NewExitError(ExitUsage, fmt.Sprintf("stream %q defined twice", stream))
		}
		groups[stream] = names
	}

	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	w, p, err := opts.window(cmd, a.cfg.DefaultLimit)
	if err != nil {
		return err
	}

	out := opts.formatter(cmd)
	switch {
	case len(groups) > 0:
		set, err := a.notifs.DiscreteStreams(ctx, device, groups, w, p)
		if err != nil {
			return storeError("reading values", err)
		}
		return out.Success(set)

	case len(opts.Names) == 1 && opts.Stream == "":
		stream, err := a.notifs.Discrete(ctx, device, opts.Names[0], w, p)
		if err != nil {
			return storeError("reading values", err)
		}
		return out.Success(stream)

	case len(opts.Names) > 0:
		streamName := opts.Stream
		if streamName == "" {
			streamName = strings.Join(opts.Names, "+")
		}
		stream, err := a.notifs.DiscreteNames(ctx, device, opts.Names, streamName, w, p)
		if err != nil {
			return storeError("reading values", err)
		}
		return out.Success(stream)
	}

	set, err := a.notifs.AllDiscrete(ctx, device, w, p, opts.Aggregated)
	if err != nil {
		return storeError("reading values", err)
	}
	return out.Success(set)
}
