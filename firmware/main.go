//go:build tinygo

//go:generate tinygo flash -target=xiao

// ADC bridge firmware: samples the electrode amplifier at SAMPLE_RATE_HZ and
// streams one voltage per line over the UART for the host's serial ADC source.
package main

import (
	"machine"
	"strconv"
	"time"
)

var (
	adcElectrode machine.ADC
	uart         = machine.UART0

	// Output line buffer
	lineBuffer [24]byte
)

func main() {
	// Configure ADC pin and set up ADC with highest resolution
	PIN_ADC.Configure(machine.PinConfig{Mode: machine.PinInput})

	adcElectrode = machine.ADC{Pin: PIN_ADC}
	adcElectrode.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	period := time.Second / SAMPLE_RATE_HZ
	start := time.Now()

	// Main loop. Deadlines are absolute so a slow UART write does not shift
	// later samples.
	for n := int64(0); ; n++ {
		deadline := start.Add(time.Duration(n) * period)
		if wait := time.Until(deadline); wait > 0 {
			time.Sleep(wait)
		}

		writeSample(readVolts())
	}
}

// readVolts averages OVERSAMPLE conversions. machine.ADC.Get scales every
// resolution to the full uint16 range.
func readVolts() float64 {
	var sum uint32
	for range OVERSAMPLE {
		sum += uint32(adcElectrode.Get())
	}
	avg := float64(sum) / OVERSAMPLE

	return avg / 65536 * ADC_REFERENCE_MV / 1000
}

// writeSample outputs "<volts>\n", e.g. "0.128345\n".
func writeSample(v float64) {
	line := strconv.AppendFloat(lineBuffer[:0], v, 'f', 6, 64)
	line = append(line, '\n')
	uart.Write(line)
}
