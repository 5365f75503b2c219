// Package mediactl implements the operator CLI: sizing and running storage
// migrations and probing backends without going through the HTTP API.
package mediactl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/config"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/dmitrijs2005/mediavault/internal/storage"
	"github.com/spf13/cobra"
)

// Migrator is the part of services.MigrationService the CLI drives.
type Migrator interface {
	Estimate(ctx context.Context, tenantID, direction string) (*models.MigrationEstimate, error)
	Run(ctx context.Context, tenantID string, opts services.MigrationOptions) (*models.MigrationProgress, error)
}

// Deps are the constructors the commands use; tests replace them.
type Deps struct {
	LoadConfig func() *config.Config
	// OpenMigrator connects to the metadata store and both backends. The
	// returned func releases them.
	OpenMigrator func(ctx context.Context, cfg *config.Config, logger logging.Logger) (Migrator, func() error, error)
	NewAdapter   func(ctx context.Context, kind string, cfg storage.Config) (storage.Adapter, error)
	Logger       logging.Logger
}

// NewRootCommand builds the mediactl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Logger == nil {
		deps.Logger = logging.Nop{}
	}
	if deps.NewAdapter == nil {
		deps.NewAdapter = storage.New
	}

	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "MediaVault storage operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// read by config.LoadConfig from os.Args; declared so cobra accepts it
	root.PersistentFlags().StringP("config", "c", "", "path to JSON config file")

	root.AddCommand(newEstimateCommand(deps), newMigrateCommand(deps), newTestConnectionCommand(deps))
	return root
}

func newEstimateCommand(deps Deps) *cobra.Command {
	var tenant, direction string
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the size and duration of a tenant migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := deps.OpenMigrator(cmd.Context(), deps.LoadConfig(), deps.Logger)
			if err != nil {
				return err
			}
			defer closeFn()

			est, err := m.Estimate(cmd.Context(), tenant, direction)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), est)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&direction, "direction", "", "local-to-s3 or s3-to-local (default: away from the tenant's backend)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newMigrateCommand(deps Deps) *cobra.Command {
	var (
		tenant       string
		direction    string
		deleteSource bool
		skipExisting bool
		workers      int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every asset of a tenant to the other backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeFn, err := deps.OpenMigrator(cmd.Context(), deps.LoadConfig(), deps.Logger)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			report, err := m.Run(cmd.Context(), tenant, services.MigrationOptions{
				Direction:    direction,
				DeleteSource: deleteSource,
				SkipExisting: skipExisting,
				Workers:      workers,
				Observer: func(p models.MigrationProgress) {
					fmt.Fprintf(out, "[%s] %d/%d done, %d failed, %d skipped %s\n",
						p.Status, p.Completed+p.Failed, p.Total, p.Failed, p.Skipped, p.Current)
				},
			})
			if report != nil {
				if werr := writeJSON(out, report); werr != nil && err == nil {
					err = werr
				}
			}
			if err != nil {
				return err
			}
			if report != nil && report.Failed > 0 {
				return fmt.Errorf("%d of %d files failed to migrate", report.Failed, report.Total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id")
	cmd.Flags().StringVar(&direction, "direction", "", "local-to-s3 or s3-to-local")
	cmd.Flags().BoolVar(&deleteSource, "delete-source", false, "remove objects from the source after copying")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip objects the target already holds with the same size")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel transfers (0 uses the configured value)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("direction")
	return cmd
}

func newTestConnectionCommand(deps Deps) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Write, read back and delete a healthcheck object on a backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := deps.NewAdapter(cmd.Context(), backend, deps.LoadConfig().StorageConfig())
			if err != nil {
				return err
			}
			res := a.TestConnection(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("%s backend connection test failed: %s", backend, res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", storage.KindLocal, "local or s3")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
