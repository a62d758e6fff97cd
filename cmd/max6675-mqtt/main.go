// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Command max6675-mqtt periodically reads a MAX6675 and publishes the readings to an MQTT broker.
//
// Each reading is published as a JSON object, either {"temp":23.75,"at":...} or, when no
// thermocouple is attached, {"fault":"open","at":...}. Bus errors are logged and skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tve/thermo/internal/setup"
	"github.com/tve/thermo/max6675"
)

// reader is the part of max6675.Dev used here.
type reader interface {
	Temperature() (max6675.Temperature, error)
}

// publisher is the part of mq used here.
type publisher interface {
	Publish(topic string, payload interface{}) error
}

// reading is the JSON payload published for each sample.
type reading struct {
	Temp  *float64 `json:"temp,omitempty"`  // degrees Celsius
	Fault string   `json:"fault,omitempty"` // "open" when no thermocouple is attached
	At    int64    `json:"at"`              // unix time in milliseconds
}

// sample reads the device once and turns the outcome into a payload. It returns false
// if the bus failed and there is nothing to publish.
func sample(d reader, now time.Time, logger *zap.Logger) (reading, bool) {
	r := reading{At: now.UnixNano() / int64(time.Millisecond)}
	t, err := d.Temperature()
	switch {
	case err == max6675.ErrOpenCircuit:
		r.Fault = "open"
	case err != nil:
		logger.Warn("cannot read thermocouple", zap.Error(err))
		return r, false
	default:
		c := t.Celsius()
		r.Temp = &c
	}
	return r, true
}

// run reads and publishes every interval until the context is canceled. It returns the
// number of bus errors encountered.
func run(ctx context.Context, d reader, pub publisher, conf Config, logger *zap.Logger) int {
	tick := time.NewTicker(conf.Interval)
	defer tick.Stop()

	var nErr int
	for ctx.Err() == nil {
		r, ok := sample(d, time.Now(), logger)
		if !ok {
			nErr++
		} else if err := pub.Publish(conf.Mqtt.Topic, r); err != nil {
			logger.Warn("cannot publish", zap.Error(err))
		} else {
			logger.Debug("published", zap.String("topic", conf.Mqtt.Topic), zap.Any("reading", r))
		}

		select {
		case <-ctx.Done():
			return nErr
		case <-tick.C:
		}
	}
	return nErr
}

func mainImpl(args []string) error {
	fs := flag.NewFlagSet("max6675-mqtt", flag.ContinueOnError)
	configFile := fs.String("config", "max6675-mqtt.yaml", "path to the config file")
	debug := fs.Bool("debug", false, "enable debug output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errors.New("unexpected arguments")
	}

	logger, err := setup.NewLogger(*debug)
	if err != nil {
		return errors.Wrap(err, "cannot create logger")
	}
	defer logger.Sync()

	conf, err := readConfig(*configFile)
	if err != nil {
		return errors.Wrap(err, *configFile)
	}

	mq, err := newMQ(conf.Mqtt, logger)
	if err != nil {
		return err
	}
	defer mq.Close()

	d, closer, err := setup.Open(conf.Sensor, logger)
	if err != nil {
		logger.Error("Cannot open MAX6675", zap.Error(err))
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Publishing", zap.String("topic", conf.Mqtt.Topic), zap.Duration("interval", conf.Interval))
	nErr := run(ctx, d, mq, conf, logger)
	logger.Info("Exiting", zap.Int("bus-errors", nErr))
	return nil
}

func main() {
	if err := mainImpl(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "max6675-mqtt: %s.\n", err)
		os.Exit(1)
	}
}
