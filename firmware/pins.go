//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_RATE_HZ = 860 // Output rate, matches acquisition.sample_rate on the host
	OVERSAMPLE     = 4   // ADC conversions averaged into one output sample

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Electrode amplifier output
	PIN_ADC = machine.A1

	// Serial configuration
	// Line format: "<volts>\n" with 6 decimals, e.g. "0.128345\n" = 9 bytes
	// 860 lines/sec * 9 bytes/line = 7,740 bytes/sec
	// UART 8N1: 10 bits/byte = 77,400 baud minimum
	// 115200 provides ~1.5x headroom (11,520 bytes/sec max / 7,740 bytes/sec required)
	UART_BAUD_RATE = 115200
)
