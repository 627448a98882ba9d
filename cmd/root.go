package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"amv-gen/internal/logging"
	"amv-gen/internal/model"
	"amv-gen/internal/pipeline"
	"amv-gen/internal/scheduler"
)

func newRootCommand() *cobra.Command {
	var errorsPath string

	rootCmd := &cobra.Command{
		Use:           "amvgen",
		Short:         "Cut a video to a music track and burn a caption over it",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&errorsPath, "errors-log", "errors.log", "File that receives warnings and errors (empty for stdout only)")

	rootCmd.AddCommand(newRenderCommand(&errorsPath))
	rootCmd.AddCommand(newBatchCommand(&errorsPath))
	rootCmd.AddCommand(newJanitorCommand(&errorsPath))
	rootCmd.AddCommand(newErrorsCommand(&errorsPath))

	return rootCmd
}

func newRenderCommand(errorsPath *string) *cobra.Command {
	var text, style string
	var noText bool

	cmd := &cobra.Command{
		Use:   "render <video> <music>",
		Short: "Render one AMV from a local video and a music reference",
		Long: "music may be a local path, a YouTube link, an http(s) URL to an audio file or to a page " +
			"embedding one, or s3://bucket/key.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *errorsPath)
			if err != nil {
				return err
			}
			defer a.Close()

			req := model.NewPipelineRequest(args[0], args[1])
			req.OverlayText = text
			if noText {
				req.OverlayText = ""
			}
			req.Style = style

			res := a.runner.Run(cmd.Context(), req)
			if err := writeResults(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Failure != nil {
				return res.Failure
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", model.DefaultOverlayText, "Overlay text")
	cmd.Flags().BoolVar(&noText, "no-text", false, "Render without an overlay")
	cmd.Flags().StringVar(&style, "style", model.DefaultStyle, "Edit style")
	return cmd
}

func newBatchCommand(errorsPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <jobs.json>",
		Short: "Render every job of a JSON array concurrently",
		Long: `jobs.json holds an array of {"video", "music", "text", "style"} objects. ` +
			`A job without "text" gets the default overlay; "text": "" disables it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read jobs: %w", err)
			}
			reqs, err := parseJobs(data)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *errorsPath)
			if err != nil {
				return err
			}
			defer a.Close()

			mon := scheduler.NewResourceMonitor(a.log)
			mon.Start(cmd.Context())
			results := runBatch(cmd, pipeline.NewWorker(a.runner, a.cfg.MaxConcurrentRuns), reqs)
			mon.Stop()
			if err := writeResults(cmd.OutOrStdout(), results...); err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Failure != nil {
					failed++
				}
			}
			a.log.Infof("batch: %d/%d run(s) succeeded", len(results)-failed, len(results))
			if failed > 0 {
				return fmt.Errorf("%d of %d run(s) failed", failed, len(results))
			}
			return nil
		},
	}
}

func runBatch(cmd *cobra.Command, w *pipeline.Worker, reqs []model.PipelineRequest) []model.PipelineResult {
	defer w.Close()

	chans := make([]<-chan model.PipelineResult, len(reqs))
	for i, req := range reqs {
		chans[i] = w.Submit(cmd.Context(), req)
	}
	results := make([]model.PipelineResult, len(reqs))
	for i, ch := range chans {
		results[i] = <-ch
	}
	return results
}

func newJanitorCommand(errorsPath *string) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Remove stale run workspaces and expired results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *errorsPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if once {
				_, err := a.janitor().Sweep(cmd.Context(), time.Now())
				return err
			}

			svc, err := scheduler.NewService(a.janitor(), a.cfg.JanitorSchedule, a.log)
			if err != nil {
				return err
			}
			mon := scheduler.NewResourceMonitor(a.log)
			mon.Start(cmd.Context())
			defer mon.Stop()

			a.log.Infof("janitor: running on %q", a.cfg.JanitorSchedule)
			return svc.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Sweep once and exit")
	return cmd
}

func newErrorsCommand(errorsPath *string) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Print the last warnings and errors of the previous run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if *errorsPath == "" {
				return fmt.Errorf("errors log is disabled")
			}
			lines, err := logging.Tail(*errorsPath, n)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "no errors recorded")
					return nil
				}
				return err
			}
			if len(lines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no errors recorded")
			}
			for _, l := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 50, "Number of lines to show")
	return cmd
}

func writeResults(w io.Writer, results ...model.PipelineResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
