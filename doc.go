// github.com/tve/thermo contains a driver for the MAX6675 thermocouple converter plus the bits
// needed to hook it up to an SPI bus. It uses periph for the low level access to the hardware and
// can fall back to embd on boards periph doesn't support. Simple commands to test the device can
// be found in the cmd directory tree.
package devices
