package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/store"
)

var (
	extractBackground   bool
	extractRequirePhone bool
	extractWaveSize     int
	extractOut          string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file|-]",
	Short: "Extract leads from a conversation file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := "extract"
		if extractBackground {
			mode = "background"
		}
		if cmd.Flags().Changed("require-phone") {
			cfg.Extract.RequirePhoneNumber = extractRequirePhone
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		text, err := readConversation(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		ex, err := extract.FromConfig(ctx, cfg)
		if err != nil {
			return err
		}
		dedupe, err := pipeline.ParseDedupeKey(cfg.Extract.Dedupe)
		if err != nil {
			return err
		}

		waveSize := cfg.Extract.SyncWaveSize
		if extractBackground {
			waveSize = cfg.Extract.BackgroundWaveSize
		}
		if extractWaveSize > 0 {
			waveSize = extractWaveSize
		}
		orch := pipeline.NewOrchestrator(ex,
			pipeline.WithWaveSize(waveSize),
			pipeline.WithMaxChunkTokens(cfg.Extract.MaxChunkTokens),
			pipeline.WithDedupeKey(dedupe),
		)

		var leads []model.Lead
		if extractBackground {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			leads, err = runTracked(ctx, st, orch, text)
			if err != nil {
				return err
			}
		} else {
			leads, err = orch.Run(ctx, text, nil)
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if extractOut != "" && extractOut != "-" {
			f, err := os.Create(extractOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", extractOut)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeJSON(out, leads)
	},
}

// runTracked runs orch against a new batch record and consumes the result
// through the poller, which deletes the record once it is terminal.
func runTracked(ctx context.Context, st store.BatchStore, orch *pipeline.Orchestrator, text string) ([]model.Lead, error) {
	b, err := st.CreateBatch(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "create batch")
	}
	log := zap.L().With(zap.String("batch_id", b.ID))
	log.Info("batch created")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := orch.Run(ctx, text, pipeline.NewTracker(st, b.ID)); err != nil {
			log.Warn("tracked run failed", zap.Error(err))
		}
	}()

	result, err := pipeline.WaitForBatch(ctx, st, b.ID,
		pipeline.WithPollInterval(cfg.Server.PollInterval),
		pipeline.WithDeleteOnDone(true),
		pipeline.WithOnProgress(func(b *model.Batch) {
			log.Info("batch progress",
				zap.String("status", string(b.Status)),
				zap.Int("processed_chunks", b.ProcessedChunks),
				zap.Int("total_chunks", b.TotalChunks),
			)
		}),
	)
	<-done
	if err != nil {
		return nil, err
	}
	if result.Status == model.BatchStatusFailed {
		return nil, eris.Errorf("batch %s failed: %s", b.ID, result.ErrorMessage)
	}
	return result.LeadsData, nil
}

// readConversation reads the conversation from the named file, or from r
// when no file or "-" is given.
func readConversation(r io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", eris.Wrap(err, "read conversation")
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", eris.New("conversation is empty")
	}
	return text, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write output")
}

func init() {
	extractCmd.Flags().BoolVar(&extractBackground, "background", false, "track progress in a batch record and poll it to completion")
	extractCmd.Flags().BoolVar(&extractRequirePhone, "require-phone", false, "keep only leads with a phone number (default from config)")
	extractCmd.Flags().IntVar(&extractWaveSize, "wave-size", 0, "chunks extracted concurrently (default from config)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "write leads JSON to file instead of stdout")
	rootCmd.AddCommand(extractCmd)
}
