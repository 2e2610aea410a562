package app

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
	"github.com/roman-kulish/spectrum-monitor/internal/storage"
)

func newSweepCommand(config *Config, logger *slog.Logger) *cobra.Command {
	var (
		start      float64
		stop       float64
		step       float64
		settle     time.Duration
		outPath    string
		appendFile bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Log mean power across a frequency range",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			plan := scan.Plan{Start: start, Stop: stop, Step: step}
			if err := plan.Validate(); err != nil {
				return err
			}

			if cmd.Flags().Changed("out") {
				config.Storage.CSVPath = outPath
			}
			if cmd.Flags().Changed("append") {
				config.Storage.Append = appendFile
			}

			session, cleanup, err := openSession(ctx, config, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			sinks, closeSinks, err := buildSinks(ctx, config)
			if err != nil {
				return err
			}
			defer closeSinks()

			out := make(chan scan.Measurement)
			done := make(chan error, 1)
			go func() {
				done <- storage.Drain(ctx, sinks, out)
			}()

			err = session.RunSweep(ctx, plan, settle, out)
			close(out)
			if drainErr := <-done; err == nil {
				err = drainErr
			}
			return err
		},
	}

	cmd.Flags().Float64Var(&start, "f-start", 88e6, "sweep start frequency (Hz)")
	cmd.Flags().Float64Var(&stop, "f-stop", 108e6, "sweep stop frequency (Hz)")
	cmd.Flags().Float64Var(&step, "f-step", 1e6, "sweep step (Hz)")
	cmd.Flags().DurationVar(&settle, "settle", 50*time.Millisecond, "wait after each retune")
	cmd.Flags().StringVarP(&outPath, "out", "o", "sweep_log.csv", "CSV output path")
	cmd.Flags().BoolVarP(&appendFile, "append", "a", false, "append to an existing CSV file")

	return cmd
}
