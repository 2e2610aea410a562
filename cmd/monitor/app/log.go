package app

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-monitor/internal/scan"
	"github.com/roman-kulish/spectrum-monitor/internal/storage"
)

func newLogCommand(config *Config, logger *slog.Logger) *cobra.Command {
	var (
		freq       float64
		interval   time.Duration
		outPath    string
		appendFile bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Log mean power at a fixed frequency",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

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

			logger.Info("logging started",
				slog.Float64("freq", freq),
				slog.String("file", config.Storage.CSVPath))

			err = session.RunFixed(ctx, freq, interval, out)
			close(out)
			if drainErr := <-done; err == nil {
				err = drainErr
			}
			return err
		},
	}

	cmd.Flags().Float64VarP(&freq, "freq", "f", 100e6, "center frequency (Hz)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Second, "time between measurements")
	cmd.Flags().StringVarP(&outPath, "out", "o", "power_log.csv", "CSV output path")
	cmd.Flags().BoolVarP(&appendFile, "append", "a", false, "append to an existing CSV file")

	return cmd
}
