package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type removeResult struct {
	Device  string `json:"device" yaml:"device"`
	Removed bool   `json:"removed" yaml:"removed"`
}

func (r removeResult) String() string {
	if !r.Removed {
		return fmt.Sprintf("%s is not registered", r.Device)
	}
	return fmt.Sprintf("removed %s and its notifications", r.Device)
}

// NewDeviceCommand creates the device command and its subcommands.
func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Inspect and remove registered devices",
	}

	ls := &cobra.Command{
		Use:           "ls",
		Short:         "List registered devices",
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
			return rootOpts.formatter(cmd).Success(devices)
		},
	}

	rm := &cobra.Command{
		Use:   "rm <device>",
		Short: "Remove a device and every notification it emitted",
		Long: `Remove a device from the registry. Its continuous and discrete
notifications are deleted with it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			removed, err := a.registry.Delete(ctx, args[0])
			if err != nil {
				return storeError("removing device", err)
			}
			a.devices.Forget(args[0])
			if !removed {
				return WrapExitError(ExitFailure, "removing device", fmt.Errorf("%s is not registered", args[0]))
			}
			return rootOpts.formatter(cmd).Success(removeResult{Device: args[0], Removed: removed})
		},
	}

	cmd.AddCommand(ls, rm)
	return cmd
}
