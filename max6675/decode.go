// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package max6675

import (
	"strconv"

	"periph.io/x/conn/v3/physic"
)

// Layout of the 16-bit word, MSB first. Bit 15 is a dummy sign bit and bit 0 is tri-stated.
const (
	magShift = 3 // bits 14..3: temperature in 0.25°C units
	magMask  = 0xfff
	openBit  = 2 // thermocouple input open
	idBit    = 1 // device ID, always 0
)

// Resolution is the size of one LSB of the temperature reading.
const Resolution = 250 * physic.MilliKelvin

// Temperature is a MAX6675 reading in units of 0.25°C. Valid readings are 0..4095,
// i.e. 0°C..1023.75°C.
type Temperature uint16

// Celsius returns the temperature in degrees Celsius.
func (t Temperature) Celsius() float64 { return float64(t) * 0.25 }

// Physic converts the temperature to periph's representation.
func (t Temperature) Physic() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(t)*Resolution
}

func (t Temperature) String() string {
	return strconv.FormatFloat(t.Celsius(), 'f', 2, 64) + "°C"
}

// Sample is one raw 16-bit word as clocked out of the device.
type Sample uint16

// SampleFromBytes assembles a sample from the two bytes received, first byte most significant.
func SampleFromBytes(b [2]byte) Sample {
	return Sample(uint16(b[0])<<8 | uint16(b[1]))
}

// Magnitude returns the 12-bit temperature field. It reads as all ones when the
// thermocouple is open and must not be used in that case.
func (s Sample) Magnitude() uint16 { return uint16(s>>magShift) & magMask }

// Open returns true if the device reports an open thermocouple input.
func (s Sample) Open() bool { return (s>>openBit)&1 == 1 }

// DeviceID returns the device ID bit, which the MAX6675 always sends as 0.
func (s Sample) DeviceID() uint8 { return uint8(s>>idBit) & 1 }

// Decode converts the sample, see Decode.
func (s Sample) Decode() (Temperature, error) { return Decode(uint16(s)) }

// Decode converts a raw 16-bit word into a temperature. The open-circuit bit takes
// precedence over the temperature field: if it is set ErrOpenCircuit is returned and the
// field is ignored. Every other word decodes to a temperature; bits 15, 1 and 0 are ignored.
func Decode(raw uint16) (Temperature, error) {
	s := Sample(raw)
	if s.Open() {
		return 0, ErrOpenCircuit
	}
	return Temperature(s.Magnitude()), nil
}
