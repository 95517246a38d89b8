package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jobfoundry/apply-cli/internal/model"
)

var (
	runURL          string
	runForceBrowser bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a single job posting URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.JobRequest{
			URL:          runURL,
			ForcePrimary: runForceBrowser,
			SubmittedAt:  time.Now().UTC(),
		}

		report := func(stage model.Stage) {
			zap.L().Info("stage",
				zap.String("name", stage.Name),
				zap.Int("progress", stage.Progress),
			)
		}

		result, err := env.runAndArchive(ctx, uuid.New().String(), req, report)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("job processed",
			zap.String("url", req.URL),
			zap.String("status", string(result.Status)),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "job posting URL (required)")
	runCmd.Flags().BoolVar(&runForceBrowser, "force-browser", false, "skip the reader path and extract via headless browser")
	_ = runCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(runCmd)
}
