package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobfoundry/apply-cli/internal/model"
)

var (
	batchFile        string
	batchLimit       int
	batchConcurrency int
	batchForce       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process job posting URLs from a file",
	Long:  "Reads one URL per line (blank lines and # comments skipped) and processes each through the full pipeline.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls, err := readURLFile(batchFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			zap.L().Info("no urls found", zap.String("file", batchFile))
			return nil
		}
		if batchLimit > 0 && len(urls) > batchLimit {
			urls = urls[:batchLimit]
		}

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("processing batch",
			zap.Int("urls", len(urls)),
			zap.Int("concurrency", batchConcurrency),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(batchConcurrency)

		var succeeded, failed atomic.Int64

		for _, u := range urls {
			g.Go(func() error {
				log := zap.L().With(zap.String("url", u))

				req := model.JobRequest{
					URL:          u,
					ForcePrimary: batchForce,
					SubmittedAt:  time.Now().UTC(),
				}
				result, err := env.runAndArchive(gctx, uuid.New().String(), req, nil)
				if err != nil {
					failed.Add(1)
					log.Error("job failed", zap.Error(err))
					return nil // don't abort batch on individual failure
				}

				succeeded.Add(1)
				log.Info("job processed", zap.String("status", string(result.Status)))
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch processing")
		}

		zap.L().Info("batch complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "path to a file with one job URL per line (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of urls to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "number of jobs processed in parallel")
	batchCmd.Flags().BoolVar(&batchForce, "force-browser", false, "skip the reader path for every url")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// readURLFile parses one URL per line, skipping blanks and # comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open url file")
	}
	defer f.Close() //nolint:errcheck

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read url file")
	}
	return urls, nil
}
