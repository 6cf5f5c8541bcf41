package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
)

var (
	batchesStatus string
	batchesLimit  int
	batchesOffset int
	batchesDelete bool
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect extraction batch records",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("batches")
	},
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.BatchStatus(batchesStatus)
		if status != "" && !status.IsValid() {
			return eris.Errorf("unknown status %q", batchesStatus)
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		batches, err := st.ListBatches(cmd.Context(), model.BatchFilter{
			Status: status,
			Limit:  batchesLimit,
			Offset: batchesOffset,
		})
		if err != nil {
			return err
		}
		if batches == nil {
			batches = []model.Batch{}
		}
		return writeJSON(cmd.OutOrStdout(), batches)
	},
}

var batchesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one batch record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := st.GetBatch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if b == nil {
			return eris.Wrapf(pipeline.ErrBatchNotFound, "batch %s", args[0])
		}
		return writeJSON(cmd.OutOrStdout(), b)
	},
}

var batchesWaitCmd = &cobra.Command{
	Use:   "wait <id>",
	Short: "Poll a batch until it completes or fails",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		b, err := pipeline.WaitForBatch(cmd.Context(), st, args[0],
			pipeline.WithPollInterval(cfg.Server.PollInterval),
			pipeline.WithDeleteOnDone(batchesDelete),
			pipeline.WithOnProgress(func(b *model.Batch) {
				zap.L().Info("batch progress",
					zap.String("batch_id", b.ID),
					zap.String("status", string(b.Status)),
					zap.Int("processed_chunks", b.ProcessedChunks),
					zap.Int("total_chunks", b.TotalChunks),
				)
			}),
		)
		if err != nil {
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), b); err != nil {
			return err
		}
		if b.Status == model.BatchStatusFailed {
			return eris.Errorf("batch %s failed: %s", b.ID, b.ErrorMessage)
		}
		return nil
	},
}

var batchesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a batch record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteBatch(cmd.Context(), args[0]); err != nil {
			return err
		}
		zap.L().Info("batch deleted", zap.String("batch_id", args[0]))
		return nil
	},
}

func init() {
	batchesListCmd.Flags().StringVar(&batchesStatus, "status", "", "filter by status (pending, processing, completed, failed)")
	batchesListCmd.Flags().IntVar(&batchesLimit, "limit", 100, "max number of batches")
	batchesListCmd.Flags().IntVar(&batchesOffset, "offset", 0, "number of batches to skip")
	batchesWaitCmd.Flags().BoolVar(&batchesDelete, "delete", false, "delete the record once it is terminal")

	batchesCmd.AddCommand(batchesListCmd, batchesShowCmd, batchesWaitCmd, batchesDeleteCmd)
	rootCmd.AddCommand(batchesCmd)
}
