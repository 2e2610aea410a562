package app

import (
	"errors"
	"flag"
	"fmt"

	"github.com/roman-kulish/spectrum-monitor/internal/render"
)

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Theme         render.ColorTheme
	MinPower      *float64
	MaxPower      *float64
	RowScale      int
	NoAnnotations bool
}

var validThemes = map[render.ColorTheme]struct{}{
	render.ClassicTheme:   {},
	render.GrayscaleTheme: {},
	render.ThermalTheme:   {},
	render.MarineTheme:    {},
	render.DefaultTheme:   {},
}

func NewConfigFromCLI() (*Config, error) {
	c := Config{}

	var theme string
	var minPower, maxPower float64
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.SessionID, "s", 1, "Session ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output PNG file")
	flag.StringVar(&theme, "theme", string(render.DefaultTheme), "Color theme [classic, grayscale, thermal, marine, default]")
	flag.Float64Var(&minPower, "min-power", 0, "Define a manual minimum power (format nn.n)")
	flag.Float64Var(&maxPower, "max-power", 0, "Define a manual maximum power (format nn.n)")
	flag.IntVar(&c.RowScale, "scale", 1, "Vertical pixels per spectrum row")
	flag.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "min-power" {
			c.MinPower = &minPower
		}
		if f.Name == "max-power" {
			c.MaxPower = &maxPower
		}
	})

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if c.SessionID <= 0 {
		err = errors.New("session id is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validThemes[render.ColorTheme(theme)]; !ok {
		err = fmt.Errorf("invalid theme: %s", theme)
	} else if c.RowScale < 1 {
		err = fmt.Errorf("invalid row scale: %d", c.RowScale)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Theme = render.ColorTheme(theme)
	return &c, nil
}
