// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tve/thermo/internal/setup"
	"github.com/tve/thermo/max6675"
)

func mainImpl() error {
	var cfg setup.Config
	cfg.RegisterFlags(flag.CommandLine)
	n := flag.Int("n", 3, "number of samples to take, the median is printed")
	debug := flag.Bool("debug", false, "enable debug output")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected arguments")
	}
	if *n < 1 {
		return errors.New("-n must be at least 1")
	}

	logger, err := setup.NewLogger(*debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	d, closer, err := setup.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	// Loop to collect multiple samples and choose the median value. This loop iterates until
	// it got 3 bus errors or n measurements. It sleeps 250ms between readings to give the
	// max6675 time to complete a fresh conversion. An open thermocouple is not worth retrying.
	temps := make([]float64, 0, *n)
	var nErr int
	for len(temps) < *n {
		t, err := d.Temperature()
		switch {
		case err == max6675.ErrOpenCircuit:
			return err
		case err != nil:
			nErr++
			logger.Debug("read failed", zap.Error(err), zap.Int("errors", nErr))
			if nErr == 3 {
				return err
			}
		default:
			logger.Debug("read", zap.Stringer("temp", t))
			temps = append(temps, t.Celsius())
		}
		if len(temps) < *n {
			time.Sleep(250 * time.Millisecond)
		}
	}
	sort.Float64s(temps)

	fmt.Printf("Thermocouple: %.2f°C\n", temps[len(temps)/2])
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "max6675: %s.\n", err)
		os.Exit(1)
	}
}
