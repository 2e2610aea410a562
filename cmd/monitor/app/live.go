package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roman-kulish/spectrum-monitor/internal/render"
	"github.com/roman-kulish/spectrum-monitor/internal/scan"
	"github.com/roman-kulish/spectrum-monitor/internal/storage"
)

// liveSink feeds live frames into the scrolling waterfall, periodically
// refreshes the output image and optionally records each frame.
type liveSink struct {
	ctx       context.Context
	waterfall *render.Waterfall
	outPath   string
	theme     render.ColorTheme
	interval  time.Duration
	last      time.Time

	store     *storage.SqliteStore
	sessionID int64

	frames int
	logger *slog.Logger
}

func (s *liveSink) HandleFrame(f scan.Frame) error {
	s.waterfall.Push(render.Row{Timestamp: f.Timestamp, Power: f.Power})
	s.frames++

	if s.store != nil {
		if err := s.store.StoreFrame(s.ctx, s.sessionID, f); err != nil {
			return fmt.Errorf("recording frame: %w", err)
		}
	}

	if s.outPath != "" && time.Since(s.last) >= s.interval {
		if err := s.writeImage(f); err != nil {
			return err
		}
		s.last = time.Now()
		s.logger.Debug("waterfall updated",
			slog.Int("frames", s.frames),
			slog.String("path", s.outPath))
	}
	return nil
}

func (s *liveSink) writeImage(f scan.Frame) error {
	img, err := render.RenderWaterfall(s.waterfall.Rows(), render.WaterfallOptions{
		Theme:    s.theme,
		Annotate: true,
		MinHz:    f.Center - f.SampleRate/2,
		MaxHz:    f.Center + f.SampleRate/2,
	})
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	out, err := os.Create(s.outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", s.outPath, err)
	}
	if err = render.WritePNG(out, img); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func newLiveCommand(config *Config, logger *slog.Logger) *cobra.Command {
	var (
		freq    float64
		rows    int
		outPath string
		theme   string
		refresh time.Duration
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Stream spectra into a scrolling waterfall",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			waterfall, err := render.NewWaterfall(rows)
			if err != nil {
				return err
			}

			session, cleanup, err := openSession(ctx, config, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			store, sessionID, err := openStore(ctx, config)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			sink := &liveSink{
				ctx:       ctx,
				waterfall: waterfall,
				outPath:   outPath,
				theme:     render.ColorTheme(theme),
				interval:  refresh,
				store:     store,
				sessionID: sessionID,
				logger:    logger,
			}

			if err = session.RunLive(ctx, freq, sink); err != nil {
				return err
			}

			// Final image covers whatever the buffer holds at shutdown.
			if outPath != "" && sink.frames > 0 {
				if err = sink.writeImage(scan.Frame{Center: freq, SampleRate: config.Device.SampleRate}); err != nil {
					return err
				}
			}
			logger.Info("live capture finished", slog.Int("frames", sink.frames))
			return nil
		},
	}

	cmd.Flags().Float64VarP(&freq, "freq", "f", 100e6, "center frequency (Hz)")
	cmd.Flags().IntVarP(&rows, "waterfall", "w", 100, "waterfall depth in rows")
	cmd.Flags().StringVarP(&outPath, "out", "o", "waterfall.png", "output image path, empty disables rendering")
	cmd.Flags().StringVar(&theme, "theme", string(render.DefaultTheme), "color theme (classic, grayscale, thermal, marine, default)")
	cmd.Flags().DurationVar(&refresh, "refresh", 2*time.Second, "minimum interval between image refreshes")

	return cmd
}
