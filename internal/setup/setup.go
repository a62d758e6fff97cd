// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package setup opens a MAX6675 the way the commands in cmd/ are configured to: on a periph
// SPI port or an embd SPI channel, optionally with a gpio pin as chip select.
package setup

import (
	"flag"
	"io"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	devices "github.com/tve/thermo"
	"github.com/tve/thermo/max6675"
	"github.com/tve/thermo/spics"
)

// Backends.
const (
	Periph = "periph"
	Embd   = "embd"
)

// Config describes how the MAX6675 is attached.
type Config struct {
	Backend string `yaml:"backend"` // Periph (default) or Embd
	Port    string `yaml:"port"`    // periph SPI port name, empty for the first one
	Channel int    `yaml:"channel"` // embd SPI channel
	CS      string `yaml:"cs"`      // gpio pin used as chip select, periph only
	Hz      int64  `yaml:"hz"`      // SCK frequency, 0 for the driver default
}

// RegisterFlags adds flags for all the fields to fs, using the current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	if c.Backend == "" {
		c.Backend = Periph
	}
	fs.StringVar(&c.Backend, "backend", c.Backend, "SPI library to use: periph or embd")
	fs.StringVar(&c.Port, "spi", c.Port, "periph SPI port name or number, empty for the first")
	fs.IntVar(&c.Channel, "channel", c.Channel, "embd SPI channel (chip select)")
	fs.StringVar(&c.CS, "cs", c.CS, "gpio pin to drive as chip select instead of the SPI controller")
	fs.Int64Var(&c.Hz, "hz", c.Hz, "SPI clock frequency in Hz, 0 for the default")
}

// Validate checks that the combination of settings makes sense.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", Periph:
	case Embd:
		if c.CS != "" {
			return errors.New("a gpio chip select is only supported with the periph backend")
		}
		if c.Channel < 0 || c.Channel > 255 {
			return errors.Errorf("invalid SPI channel %d", c.Channel)
		}
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.Hz < 0 {
		return errors.Errorf("invalid SPI frequency %d", c.Hz)
	}
	return nil
}

// NewLogger returns the logger used by the commands, with debug output if requested.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open initializes the selected library and returns the device plus a closer that releases the bus.
func Open(c Config, logger *zap.Logger) (*max6675.Dev, io.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	opts := &max6675.Opts{
		Freq:   physic.Frequency(c.Hz) * physic.Hertz,
		Logger: logger.Sugar().Debugf,
	}
	if c.Backend == Embd {
		return openEmbd(c, opts, logger)
	}
	return openPeriph(c, opts, logger)
}

func openPeriph(c Config, opts *max6675.Opts, logger *zap.Logger) (*max6675.Dev, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, errors.Wrap(err, "periph init")
	}
	p, err := spireg.Open(c.Port)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot open SPI port %q", c.Port)
	}
	if c.CS == "" {
		d, err := max6675.New(p, opts)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		logger.Info("opened", zap.Stringer("dev", d))
		return d, p, nil
	}

	d, err := withChipSelect(p, c.CS, opts)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	logger.Info("opened", zap.Stringer("port", p), zap.String("cs", c.CS))
	return d, p, nil
}

func withChipSelect(p spi.Port, csName string, opts *max6675.Opts) (*max6675.Dev, error) {
	pin := gpioreg.ByName(csName)
	if pin == nil {
		return nil, errors.Errorf("cannot open pin %s", csName)
	}
	conn, err := max6675.Connect(p, opts)
	if err != nil {
		return nil, err
	}
	cs, err := spics.New(conn, pin)
	if err != nil {
		return nil, err
	}
	return max6675.NewConn(cs, opts), nil
}

// embdSpeed returns the SCK frequency in Hz for embd, defaulted and clamped like max6675.Connect.
func embdSpeed(hz int64) int {
	f := physic.Frequency(hz) * physic.Hertz
	if f == 0 {
		f = 4 * physic.MegaHertz
	}
	if f > max6675.MaxFreq {
		f = max6675.MaxFreq
	}
	return int(f / physic.Hertz)
}

func openEmbd(c Config, opts *max6675.Opts, logger *zap.Logger) (*max6675.Dev, io.Closer, error) {
	if err := embd.InitSPI(); err != nil {
		return nil, nil, errors.Wrap(err, "embd init")
	}
	hz := embdSpeed(c.Hz)
	s := devices.NewSPI(byte(c.Channel), hz)
	logger.Info("opened", zap.Int("channel", c.Channel), zap.Int("hz", hz))
	closer := closerFunc(func() error {
		err := s.Close()
		if e := embd.CloseSPI(); err == nil {
			err = e
		}
		return err
	})
	return max6675.NewConn(s, opts), closer, nil
}
