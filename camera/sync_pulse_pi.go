//go:build withpi
// +build withpi

/*
DESCRIPTION
  sync_pulse_pi.go drives a GPIO sync pulse on a Raspberry Pi via embd,
  coincident with each captured frame, for external hardware (e.g. a trigger
  LED visible to the camera, or a photodiode) that lets downstream analysis
  confirm camera/stimulus alignment independent of software timestamps.

AUTHORS
  Kim Lab ISI Core Team

LICENSE
  Copyright (C) 2026 Kim Lab. All Rights Reserved.
*/

package camera

import (
	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi"
)

// GPIOPulse fires a brief GPIO pulse on the named pin on every Fire call.
type GPIOPulse struct {
	pin embd.DigitalPin
}

// NewGPIOPulse opens pinName (e.g. "GPIO17") as a digital output.
func NewGPIOPulse(pinName string) (*GPIOPulse, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, err
	}
	pin, err := embd.NewDigitalPin(pinName)
	if err != nil {
		return nil, err
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		return nil, err
	}
	return &GPIOPulse{pin: pin}, nil
}

// Fire drives the pin high then immediately low, a minimal pulse the
// capture loop calls once per frame.
func (g *GPIOPulse) Fire() {
	g.pin.Write(embd.High)
	g.pin.Write(embd.Low)
}

// Close releases the GPIO pin and the embd host.
func (g *GPIOPulse) Close() error {
	err := g.pin.Close()
	embd.CloseGPIO()
	return err
}
