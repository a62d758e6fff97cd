package devices

// stuff in here lets the drivers run on boards that embd supports and periph doesn't.

import (
	"github.com/kidoman/embd"
	"github.com/pkg/errors"
)

// Bus is the subset of embd.SPIBus used by SPI.
type Bus interface {
	TransferAndReceiveData(dataBuffer []uint8) error
	Close() error
}

// SPI adapts an embd SPI bus to the Tx(w, r) convention used by periph and by the drivers
// in this repo. embd must have been initialized with embd.InitSPI.
type SPI struct {
	bus Bus
}

// NewSPI opens SPI channel (chip select) ch in mode 0 with 8-bit words at the given speed.
func NewSPI(ch byte, speedHz int) *SPI {
	return &SPI{embd.NewSPIBus(embd.SPIMode0, ch, speedHz, 8, 0)}
}

// NewSPIBus wraps an already open bus.
func NewSPIBus(b Bus) *SPI {
	return &SPI{b}
}

// Tx performs a full-duplex transaction. embd transfers in place, so w is copied into r
// first and r must be at least as long as w.
func (s *SPI) Tx(w, r []byte) error {
	if len(r) < len(w) {
		return errors.Errorf("SPI: read buffer (%d bytes) shorter than write buffer (%d bytes)",
			len(r), len(w))
	}
	copy(r, w)
	return s.bus.TransferAndReceiveData(r)
}

// Close closes the underlying bus.
func (s *SPI) Close() error {
	return s.bus.Close()
}
