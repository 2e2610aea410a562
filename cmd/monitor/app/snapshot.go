package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-monitor/internal/dsp"
	"github.com/roman-kulish/spectrum-monitor/internal/render"
)

func newSnapshotCommand(config *Config, logger *slog.Logger) *cobra.Command {
	var (
		freq    float64
		settle  time.Duration
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture one spectrum and plot it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			session, cleanup, err := openSession(ctx, config, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			frame, axis, err := session.Snapshot(ctx, freq, settle)
			if err != nil {
				return err
			}

			peak := dsp.PeakBin(frame.Power)
			logger.Info("spectrum captured",
				slog.Int("bins", len(frame.Power)),
				slog.Float64("peak_freq", axis[peak]),
				slog.Float64("peak_db", frame.Power[peak]))

			img, err := render.RenderSpectrum(frame.Power, render.SpectrumOptions{
				Annotate: true,
				MinHz:    axis[0],
				MaxHz:    axis[len(axis)-1],
			})
			if err != nil {
				return fmt.Errorf("rendering spectrum: %w", err)
			}

			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", outPath, err)
			}
			if err = render.WritePNG(out, img); err != nil {
				_ = out.Close()
				return err
			}
			if err = out.Close(); err != nil {
				return err
			}

			logger.Info("snapshot written", slog.String("path", outPath))
			return nil
		},
	}

	cmd.Flags().Float64VarP(&freq, "freq", "f", 100e6, "center frequency (Hz)")
	cmd.Flags().DurationVar(&settle, "settle", 50*time.Millisecond, "wait after tuning")
	cmd.Flags().StringVarP(&outPath, "out", "o", "spectrum.png", "output image path")

	return cmd
}
