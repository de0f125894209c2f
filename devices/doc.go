// Package devices contains the device-level interfaces shared by this
// module's concrete drivers.
//
// Subpackages contain the concrete implementations:
//
//   - devices/vga is the scan-out engine: frame timing, clock planning,
//     the framebuffer, the sync generator, line DMA and the engine state
//     machine.
//   - devices/edid reads and validates a monitor's EDID block over I²C.
//   - devices/sdcard reads SD card blocks over SPI, including CSD/CID
//     register validation.
//   - devices/devicestest contains fake implementations for testing.
package devices
