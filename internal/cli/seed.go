package cli

import (
	"context"
	"errors"

	"github.com/smallbiznis/invoicedesk/internal/migration"
	"github.com/smallbiznis/invoicedesk/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newSeedCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load customers, users and invoices from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return errors.New("--file is required")
			}
			file, err := seed.Load(path)
			if err != nil {
				return err
			}

			var seeder *seed.Seeder
			app := fx.New(
				infrastructure(),
				migration.Module,
				domains(),
				seed.Module,
				fx.Populate(&seeder),
			)
			return runOnce(cmd.Context(), app, func(ctx context.Context) error {
				summary, err := seeder.Apply(ctx, file)
				if err != nil {
					return err
				}
				cmd.Printf("seeded %d customers, %d users, %d invoices\n", summary.Customers, summary.Users, summary.Invoices)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "path to the seed YAML file")
	return cmd
}
