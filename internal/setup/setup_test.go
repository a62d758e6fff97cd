// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package setup

import (
	"flag"
	"testing"

	"github.com/kidoman/embd"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/tve/thermo/max6675"
)

func TestValidate(t *testing.T) {
	for n, tc := range map[string]struct {
		c  Config
		ok bool
	}{
		"default":     {Config{}, true},
		"periph-cs":   {Config{Backend: Periph, CS: "GPIO8"}, true},
		"embd":        {Config{Backend: Embd, Channel: 1}, true},
		"embd-cs":     {Config{Backend: Embd, CS: "GPIO8"}, false},
		"embd-chan":   {Config{Backend: Embd, Channel: 300}, false},
		"bad-backend": {Config{Backend: "wiringpi"}, false},
		"bad-hz":      {Config{Hz: -1}, false},
	} {
		err := tc.c.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("%s: got %v", n, err)
		}
	}
}

func TestRegisterFlags(t *testing.T) {
	c := Config{Port: "SPI0.1"}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-cs", "GPIO25", "-hz", "1000000"}); err != nil {
		t.Fatal(err)
	}
	want := Config{Backend: Periph, Port: "SPI0.1", CS: "GPIO25", Hz: 1000000}
	if c != want {
		t.Fatalf("got %+v expected %+v", c, want)
	}
}

func TestWithChipSelect(t *testing.T) {
	pin := &gpiotest.Pin{N: "MAX6675_CS", L: gpio.Low}
	if err := gpioreg.Register(pin); err != nil {
		t.Fatal(err)
	}
	defer gpioreg.Unregister(pin.N)

	p := &spitest.Playback{Playback: conntest.Playback{
		Ops: []conntest.IO{{W: []byte{0, 0}, R: []byte{0x0c, 0x80}}},
	}}
	d, err := withChipSelect(p, pin.N, &max6675.Opts{})
	if err != nil {
		t.Fatal(err)
	}
	temp, err := d.Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if temp.Celsius() != 100 {
		t.Errorf("got %v expected 100°C", temp)
	}
	if pin.L != gpio.High {
		t.Error("chip select not released")
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}

	if _, err := withChipSelect(p, "NO_SUCH_PIN", &max6675.Opts{}); err == nil {
		t.Error("expected an error for an unknown pin")
	}
}

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		l, err := NewLogger(debug)
		if err != nil {
			t.Fatal(err)
		}
		l.Sugar().Debugf("debug %v", debug)
	}
}

func TestEmbdSpeed(t *testing.T) {
	for _, tc := range []struct {
		hz   int64
		want int
	}{
		{0, 4000000},
		{1000000, 1000000},
		{4300000, 4300000},
		{10000000, 4300000},
	} {
		if got := embdSpeed(tc.hz); got != tc.want {
			t.Errorf("%d: got %d expected %d", tc.hz, got, tc.want)
		}
	}
}

func TestOpenEmbd(t *testing.T) {
	// Pretend to run on a Raspberry Pi; the spidev device is only opened on the first Tx.
	embd.SetHost(embd.HostRPi, 2)
	d, closer, err := Open(Config{Backend: Embd, Channel: 0, Hz: 10000000}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || closer == nil {
		t.Fatal("no device returned")
	}
	closer.Close()
}
