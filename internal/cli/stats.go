package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statsResult struct {
	Database   string `json:"database" yaml:"database"`
	Devices    int    `json:"devices" yaml:"devices"`
	Continuous int64  `json:"continuous" yaml:"continuous"`
	Discrete   int64  `json:"discrete" yaml:"discrete"`
}

func (r statsResult) String() string {
	return fmt.Sprintf("%s: %d devices, %d continuous, %d discrete notifications",
		r.Database, r.Devices, r.Continuous, r.Discrete)
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "stats",
		Short:         "Count stored devices and notifications",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			devices, err := a.registry.List(ctx)
			if err != nil {
				return storeError("listing devices", err)
			}
			continuous, discrete, err := a.notifs.Counts(ctx)
			if err != nil {
				return storeError("counting notifications", err)
			}
			return rootOpts.formatter(cmd).Success(statsResult{
				Database:   a.cfg.DBURL,
				Devices:    len(devices),
				Continuous: continuous,
				Discrete:   discrete,
			})
		},
	}
}
