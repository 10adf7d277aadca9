// Package driver defines the bus interface shared by the sink controller
// drivers.
//
// The interface is TinyGo's drivers.I2C, so the same driver works with the
// I2C peripherals of µControllers under TinyGo and with periph.io buses on
// Linux hosts.
package driver

import "tinygo.org/x/drivers"

// I2C performs a write and then a read transfer placing the result in r, as a
// single bus transaction:
//
//	i2c.Tx(addr, w, r)
//
// Passing a nil value for w or r skips the corresponding transfer. Drivers
// never call Tx concurrently; callers sharing a bus must serialize access.
type I2C = drivers.I2C
