package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/flashq/internal/datasync"
)

func newSeedCommand() *cobra.Command {
	var dryRun bool
	var updateExisting bool

	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Import confs, decks, models and notes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := datasync.ReadSeedFile(args[0])
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := cmd.OutOrStdout()
			importer := datasync.NewImporter(a.store, out)
			opts := datasync.ImportOptions{
				DryRun:         dryRun,
				UpdateExisting: updateExisting,
			}
			result, err := importer.ImportSeed(ctx, seed, time.Now(), opts)
			if err != nil {
				return fmt.Errorf("import seed: %w", err)
			}
			result.WriteSummary(out, opts.DryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without modifying the store")
	cmd.Flags().BoolVar(&updateExisting, "update-existing", false, "Update existing confs and models with new data")
	return cmd
}
