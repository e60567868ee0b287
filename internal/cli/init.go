package cli

import (
	"strings"

	"github.com/darshan-rambhia/evstore/internal/store"
	"github.com/spf13/cobra"
)

type initResult struct {
	Database string   `json:"database" yaml:"database"`
	Created  []string `json:"created" yaml:"created"`
}

func (r initResult) String() string {
	if len(r.Created) == 0 {
		return "schema already present in " + r.Database
	}
	return "created " + strings.Join(r.Created, ", ") + " in " + r.Database
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the notification tables if they do not exist",
		Long: `Create the device and notification tables if they do not exist.

Existing tables are never altered, so init is safe to run on every start.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, rootOpts)
		},
	}
}

func runInit(cmd *cobra.Command, opts *RootOptions) error {
	ctx := cmd.Context()
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	// Provisioning already ran in openApp, which only logs failures. Running
	// it again turns them into an exit code.
	db, err := a.store.DB(ctx)
	if err != nil {
		return storeError("connecting", err)
	}
	more, err := store.EnsureSchema(ctx, db)
	if err != nil {
		return storeError("provisioning schema", err)
	}
	created := append(a.notifs.Created(), more...)
	if created == nil {
		created = []string{}
	}
	return opts.formatter(cmd).Success(initResult{Database: a.cfg.DBURL, Created: created})
}
