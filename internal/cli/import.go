package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shandysiswandi/simtrack/internal/app"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkglog"
	"github.com/shandysiswandi/simtrack/internal/sim"
	"github.com/shandysiswandi/simtrack/internal/sim/bulk"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

var errImportFailed = errors.New("import failed")

type importOptions struct {
	file      string
	chunkSize int
	batchID   string
}

type importOutput struct {
	OK      bool     `json:"ok"`
	BatchID string   `json:"batch_id,omitempty"`
	State   string   `json:"state,omitempty"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func newImportCommand(configPath *string) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Insert the SIM cards of a CSV file as one batch",
		Long: "Reads every row of the CSV file, then inserts the cards in chunks. " +
			"If a chunk fails, the cards already stored for the batch are removed again.",
		Example: "  simtrack import --file cards.csv --chunk-size 100 --batch-id 2024-03-lot7",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, *configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "CSV file with a serial_number header column")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 0, "records per insert (default from modules.sim.chunk_size)")
	cmd.Flags().StringVar(&opts.batchID, "batch-id", "", "batch id to store the cards under (generated when empty)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, configPath string, opts importOptions) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer cfg.Close()

	pkglog.InitLogging(cfg.GetString("log.level"))

	f, err := os.Open(opts.file)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := cmd.Context()
	uc, closer, err := sim.Open(sim.Dependency{Config: cfg, Context: ctx})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = closer(closeCtx)
	}()

	stderr := cmd.ErrOrStderr()
	res, err := uc.ImportCSV(ctx, f, usecase.BulkInsertInput{
		BatchID:   opts.batchID,
		ChunkSize: opts.chunkSize,
		OnProgress: func(_ context.Context, p bulk.Progress) {
			fmt.Fprintf(stderr, "progress %3d%% (%d/%d)\n", p.Percent, p.Inserted, p.Total)
		},
	})

	out := importOutput{Errors: []string{}}
	switch {
	case err != nil:
		out.Error = err.Error()
	default:
		out = importOutput{
			OK:      res.OK,
			BatchID: res.BatchID,
			State:   string(res.State),
			Success: res.Success,
			Failed:  res.Failed,
			Errors:  res.Errors,
			Message: res.Message,
		}
		if !res.OK {
			out.Error = res.Message
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		return encErr
	}

	if err != nil {
		return err
	}
	if !res.OK {
		return errImportFailed
	}
	return nil
}
