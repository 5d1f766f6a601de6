package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"libreplexity/internal/inference"
	"libreplexity/internal/pipeline"
	"libreplexity/pkg/types"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:     "ask <query>",
		Short:   "Run one search and print the cited summary",
		Example: "  libreplexity ask why is the sky blue",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.session.Start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !quiet {
				go printLoad(ctx, cmd.ErrOrStderr(), a.session)
				go printProgress(ctx, cmd.ErrOrStderr(), a.pipeline)
			}
			run, err := a.pipeline.Do(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printAnswer(out, pipeline.View(run, a.pipeline.Resolve(run)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress to stderr")
	return cmd
}

// printProgress echoes status changes while a run is in flight.
func printProgress(ctx context.Context, w io.Writer, p *pipeline.Pipeline) {
	last := ""
	for r := range p.Subscribe(ctx) {
		if r.StatusText != "" && r.StatusText != last {
			fmt.Fprintf(w, "%s...\n", r.StatusText)
		}
		last = r.StatusText
	}
}

// printLoad echoes model load progress until the first load settles.
func printLoad(ctx context.Context, w io.Writer, s *inference.Session) {
	last := ""
	for st := range s.Subscribe(ctx) {
		if st.Error != "" {
			fmt.Fprintf(w, "model load failed: %s\n", st.Error)
			return
		}
		if !st.Loading {
			if st.State != string(inference.StateReady) {
				continue
			}
			if last != "" {
				fmt.Fprintf(w, "model %s ready\n", st.ActiveModel)
			}
			return
		}
		line := st.StepName
		if st.ProgressDenominator > 0 {
			line = fmt.Sprintf("%s %d/%d", st.StepName, st.ProgressNumerator, st.ProgressDenominator)
		}
		if line != "" && line != last {
			fmt.Fprintf(w, "loading %s: %s\n", st.DesiredModel, line)
			last = line
		}
	}
}

func printAnswer(w io.Writer, v types.RunView) {
	fmt.Fprintln(w, strings.TrimSpace(v.Summary))
	if len(v.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, s := range v.Sources {
		title := s.Title
		if title == "" {
			title = s.Origin
		}
		fmt.Fprintf(w, "[%d] %s - %s\n", s.DisplayIndex, title, s.URL)
	}
}
