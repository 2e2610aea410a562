// Package app renders a waterfall image from a recorded session.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/roman-kulish/spectrum-monitor/internal/render"
	"github.com/roman-kulish/spectrum-monitor/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}
	logger.Info("session loaded",
		slog.Int64("id", session.ID),
		slog.String("device", session.DeviceType),
		slog.Time("started", session.StartTime))

	frames, err := store.Frames(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("reading frames: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("session %d has no spectrum data", config.SessionID)
	}

	rows := make([]render.Row, len(frames))
	for i, f := range frames {
		rows[i] = render.Row{Timestamp: f.Timestamp, Power: f.Power}
	}

	opts := render.WaterfallOptions{
		Theme:    config.Theme,
		RowScale: config.RowScale,
		Annotate: !config.NoAnnotations,
		MinHz:    frames[0].Frequencies[0],
		MaxHz:    frames[0].Frequencies[len(frames[0].Frequencies)-1],
	}
	if config.MinPower != nil && config.MaxPower != nil {
		opts.Bounds = &render.PowerBounds{Min: *config.MinPower, Max: *config.MaxPower}
	}

	img, err := render.RenderWaterfall(rows, opts)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", config.OutputFile, err)
	}
	if err = render.WritePNG(out, img); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}

	logger.Info("waterfall written",
		slog.String("path", config.OutputFile),
		slog.Int("rows", len(rows)))
	return nil
}
