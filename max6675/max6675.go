// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The max6675 package interfaces with the Maxim Integrated MAX6675 cold-junction-compensated
// K-type thermocouple to digital converter.
//
// The MAX6675 converts the thermocouple voltage to a 12-bit reading with a resolution of 0.25°C
// covering 0°C..1023.75°C. The reading is clocked out MSB-first as a single 16-bit word on a
// read-only SPI interface; there is no command byte. Bit 2 of the word is set when the
// thermocouple input is open, i.e., no probe is attached.
//
// The chip needs about 220ms to complete a conversion and pulling CS low aborts any conversion
// in progress, so reading the device faster than ~4Hz returns the previous value. Pacing the
// reads is left to the caller.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/MAX6675.pdf
package max6675

import (
	"fmt"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// MaxFreq is the fastest SCK the MAX6675 supports.
const MaxFreq = 4300 * physic.KiloHertz

// ErrOpenCircuit is returned when the device reports that the thermocouple input is open.
// It is not a bus failure: the probe may get reconnected and subsequent reads succeed.
var ErrOpenCircuit = errors.New("max6675: thermocouple open circuit")

// TxError is returned when the SPI transaction itself fails. Err is the error returned by
// the bus, unchanged.
type TxError struct {
	Err error
}

func (e *TxError) Error() string { return "max6675: txn error: " + e.Err.Error() }

// Unwrap returns the underlying bus error.
func (e *TxError) Unwrap() error { return e.Err }

// Cause supports errors.Cause from github.com/pkg/errors.
func (e *TxError) Cause() error { return e.Err }

// Conn is the part of an SPI connection the driver needs. spi.Conn satisfies it, as do
// devices.SPI and spics.Conn.
type Conn interface {
	Tx(w, r []byte) error
}

// LogPrintf is a function used by the driver to print debug output.
type LogPrintf func(format string, v ...interface{})

// Opts contains options for New and NewConn. A nil *Opts uses the defaults.
type Opts struct {
	Freq   physic.Frequency // SCK frequency, defaults to 4MHz, clamped to MaxFreq
	Logger LogPrintf        // function to use for debug output, nil for none
}

// Dev represents a MAX6675 device.
type Dev struct {
	c    Conn
	name string
	log  LogPrintf
}

// New connects to a MAX6675 on the provided SPI port.
func New(p spi.Port, opts *Opts) (*Dev, error) {
	c, err := Connect(p, opts)
	if err != nil {
		return nil, err
	}
	d := NewConn(c, opts)
	d.name = fmt.Sprintf("max6675{%s}", c)
	return d, nil
}

// Connect configures the SPI port the way the MAX6675 needs it. The device is read-only
// and its data is valid on the rising edge of SCK, so SPI mode 0 with 8-bit words is used.
func Connect(p spi.Port, opts *Opts) (spi.Conn, error) {
	f := 4 * physic.MegaHertz
	if opts != nil && opts.Freq != 0 {
		f = opts.Freq
	}
	if f > MaxFreq {
		f = MaxFreq
	}
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrap(err, "max6675: connect error")
	}
	return c, nil
}

// NewConn returns a device using an already configured connection.
func NewConn(c Conn, opts *Opts) *Dev {
	d := &Dev{c: c, name: "max6675", log: func(string, ...interface{}) {}}
	if opts != nil && opts.Logger != nil {
		d.log = opts.Logger
	}
	return d
}

// ReadSample performs one 16-bit read of the device and returns the raw word.
func (d *Dev) ReadSample() (Sample, error) {
	var wBuf, rBuf [2]byte
	if err := d.c.Tx(wBuf[:], rBuf[:]); err != nil {
		return 0, &TxError{Err: err}
	}
	s := SampleFromBytes(rBuf)
	d.log("max6675: read %#04x", uint16(s))
	return s, nil
}

// Temperature reads the device and returns the thermocouple temperature. It returns
// ErrOpenCircuit if no thermocouple is attached and a *TxError if the bus failed.
func (d *Dev) Temperature() (Temperature, error) {
	s, err := d.ReadSample()
	if err != nil {
		return 0, err
	}
	return s.Decode()
}

// Sense implements the periph environmental sensor convention: it fills in
// env.Temperature and leaves the other fields alone.
func (d *Dev) Sense(env *physic.Env) error {
	t, err := d.Temperature()
	if err != nil {
		return err
	}
	env.Temperature = t.Physic()
	return nil
}

// Precision reports the resolution of the measurements returned by Sense.
func (d *Dev) Precision(env *physic.Env) {
	env.Temperature = Resolution
}

// String implements conn.Resource.
func (d *Dev) String() string { return d.name }

// Halt implements conn.Resource. The MAX6675 has nothing to halt.
func (d *Dev) Halt() error { return nil }
