// Copyright 2017 by Thorsten von Eicken, see LICENSE file

package spics

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
)

// Tx is the transaction function of the underlying SPI connection.
type Tx interface {
	Tx(w, r []byte) error
}

// Pin is the part of a gpio.PinOut used to drive a chip select.
type Pin interface {
	Out(l gpio.Level) error
}

// Conn represents a connection to a device on an SPI bus whose chip select is driven by a
// gpio pin instead of the SPI controller.
//
// This is needed when more devices hang off a bus than the controller has hardware chip
// selects, or when the device has to be wired to an arbitrary pin. Each Tx pulls the pin
// low, performs the transaction on the underlying connection (which must not toggle the
// device's CS itself) and pulls the pin back high, even if the transaction failed.
//
// Conns created by NewShared share a mutex so that transactions to different devices on
// the same bus do not interleave. Note that the speed and configuration of the underlying
// connection are shared between all devices.
type Conn struct {
	mu *sync.Mutex // serializes access to the shared SPI bus
	c  Tx          // the underlying SPI connection
	cs Pin         // active-low chip select for this device
}

// New returns a connection using cs as chip select. The pin is deasserted immediately.
func New(c Tx, cs Pin) (*Conn, error) {
	conns, err := NewShared(c, cs)
	if err != nil {
		return nil, err
	}
	return conns[0], nil
}

// NewShared returns one connection per chip select pin, all using the same SPI connection.
func NewShared(c Tx, pins ...Pin) ([]*Conn, error) {
	mu := &sync.Mutex{}
	conns := make([]*Conn, len(pins))
	for i, p := range pins {
		if err := p.Out(gpio.High); err != nil {
			return nil, errors.Wrapf(err, "spics: cannot deassert chip select %d", i)
		}
		conns[i] = &Conn{mu: mu, c: c, cs: p}
	}
	return conns, nil
}

// Tx asserts the chip select, calls the underlying Tx and deasserts the chip select.
func (c *Conn) Tx(w, r []byte) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cs.Out(gpio.Low); err != nil {
		return errors.Wrap(err, "spics: cannot assert chip select")
	}
	defer func() {
		if e := c.cs.Out(gpio.High); e != nil && err == nil {
			err = errors.Wrap(e, "spics: cannot deassert chip select")
		}
	}()
	return c.c.Tx(w, r)
}
