// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Opts holds the configuration options for the device.
type Opts struct {
	// ResponseTimeout is how long to wait for the first byte of a response.
	// Default is 1s.
	ResponseTimeout time.Duration
	// PollInterval is the wait between two checks for received bytes. Default
	// is 100ms.
	PollInterval time.Duration
	// PulseTimeout bounds a single PWM pulse measurement. Default is one PWM
	// cycle, 1004ms.
	PulseTimeout time.Duration
	// PWMMaxAttempts limits the number of pulse measurements done by
	// ReadCO2PWM. 0 means no limit.
	PWMMaxAttempts int
	// PowerOn is when the sensor was powered. The preheat time is counted from
	// it. Defaults to the time New is called.
	PowerOn time.Time
	// Recorder receives diagnostics events. Can be nil.
	Recorder Recorder
}

// DefaultOpts holds the default configuration options for the device.
var DefaultOpts = Opts{
	ResponseTimeout: time.Second,
	PollInterval:    100 * time.Millisecond,
	PulseTimeout:    PWMCycle,
}

// Env is a sensor reading.
type Env struct {
	CO2         PPM
	Temperature physic.Temperature
	Status      byte
}

func (e *Env) String() string {
	return fmt.Sprintf("CO2: %s Temperature: %s", e.CO2, e.Temperature)
}

// Dev represents an MH-Z14A or MH-Z19B sensor.
type Dev struct {
	s       Stream
	pulser  Pulser
	variant Variant
	opts    Opts
	rec     Recorder
	clock   clockwork.Clock
	powerOn time.Time

	// mu serializes UART exchanges and guards the fields below.
	mu          sync.Mutex
	lastRequest time.Time
	last        Response
	tempErr     error

	pwmMu sync.Mutex

	haltMu sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
}

// New returns a driver for a sensor of the given variant. s is the stream the
// sensor UART is connected to, see OpenSerial. pulser measures the sensor's
// PWM output, see NewPinPulser. Either can be nil if that channel is not
// wired, but not both. The Opts can be nil.
func New(s Stream, pulser Pulser, v Variant, opts *Opts) (*Dev, error) {
	return newDev(s, pulser, v, opts, clockwork.NewRealClock())
}

func newDev(s Stream, pulser Pulser, v Variant, opts *Opts, clock clockwork.Clock) (*Dev, error) {
	if !v.valid() {
		return nil, fmt.Errorf("mhz: invalid variant %s", v)
	}
	if s == nil && pulser == nil {
		return nil, errors.New("mhz: neither a stream nor a pulser was supplied")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	d := &Dev{
		s:       s,
		pulser:  pulser,
		variant: v,
		opts:    *opts,
		rec:     opts.Recorder,
		clock:   clock,
		powerOn: opts.PowerOn,
		tempErr: ErrNotReady,
	}
	if d.opts.ResponseTimeout <= 0 {
		d.opts.ResponseTimeout = DefaultOpts.ResponseTimeout
	}
	if d.opts.PollInterval <= 0 {
		d.opts.PollInterval = DefaultOpts.PollInterval
	}
	if d.opts.PulseTimeout <= 0 {
		d.opts.PulseTimeout = DefaultOpts.PulseTimeout
	}
	if d.rec == nil {
		d.rec = nopRecorder{}
	}
	if d.powerOn.IsZero() {
		d.powerOn = clock.Now()
	}
	return d, nil
}

// SetDebug enables or disables verbose diagnostics on the Recorder, if it
// supports it.
func (d *Dev) SetDebug(enable bool) {
	if v, ok := d.rec.(Verbosity); ok {
		v.SetVerbose(enable)
	}
	if enable {
		d.rec.Record("debug mode enabled", nil)
	} else {
		d.rec.Record("debug mode disabled", nil)
	}
}

// Variant returns the sensor model.
func (d *Dev) Variant() Variant {
	return d.variant
}

// IsPreHeating reports whether the sensor is still in its 3 minute warm up.
func (d *Dev) IsPreHeating() bool {
	return isPreHeating(d.clock.Since(d.powerOn))
}

// IsReady reports whether the minimum interval since the last UART request
// has elapsed.
func (d *Dev) IsReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return isReady(d.clock.Now(), d.lastRequest, d.variant)
}

// LastTemperature returns the temperature decoded by the last successful UART
// reading, however old. It returns ErrNotReady while preheating or before any
// reading, and ErrChecksumMismatch if the last exchange failed its checksum.
func (d *Dev) LastTemperature() (physic.Temperature, error) {
	if d.IsPreHeating() {
		return 0, ErrNotReady
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tempErr != nil {
		return 0, d.tempErr
	}
	return d.last.Temperature, nil
}

// LastStatus returns the status byte of the last successful UART reading.
func (d *Dev) LastStatus() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last.Status
}

// Sense reads the sensor over the UART. While the sensor is preheating, or if
// called faster than the minimum request interval, it returns ErrNotReady.
func (d *Dev) Sense(env *Env) error {
	env.CO2 = 0
	env.Temperature = 0
	env.Status = 0
	if d.IsPreHeating() {
		return ErrNotReady
	}
	r, err := d.ReadResponse()
	if err != nil {
		return err
	}
	env.CO2 = r.CO2
	env.Temperature = r.Temperature
	env.Status = r.Status
	return nil
}

// SenseContinuous reads the sensor every interval and writes readings to the
// returned channel. Failed readings are skipped. To terminate a continuous
// sense, call Halt().
func (d *Dev) SenseContinuous(interval time.Duration) (<-chan Env, error) {
	if interval < d.variant.MinRequestInterval() {
		return nil, fmt.Errorf("mhz: interval %s shorter than %s", interval, d.variant.MinRequestInterval())
	}
	d.haltMu.Lock()
	defer d.haltMu.Unlock()
	if d.stop != nil {
		return nil, errors.New("mhz: SenseContinuous() running already")
	}
	d.stop = make(chan struct{})
	stop := d.stop
	channel := make(chan Env, 16)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(channel)
		ticker := d.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				e := Env{}
				if err := d.Sense(&e); err != nil {
					continue
				}
				select {
				case channel <- e:
				case <-stop:
					return
				}
			}
		}
	}()
	return channel, nil
}

// Precision returns the resolution of the readings.
func (d *Dev) Precision(env *Env) {
	env.CO2 = 1
	env.Temperature = physic.Celsius
}

// Halt stops a SenseContinuous operation in progress. If the stream
// implements io.Closer, it is left open; call Close to release it.
func (d *Dev) Halt() error {
	d.haltMu.Lock()
	defer d.haltMu.Unlock()
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.wg.Wait()
	d.stop = nil
	return nil
}

// Close halts the device and closes the stream if it implements io.Closer.
func (d *Dev) Close() error {
	err := d.Halt()
	if cl, ok := d.s.(io.Closer); ok {
		err = errors.Join(err, cl.Close())
	}
	return err
}

func (d *Dev) String() string {
	if st, ok := d.s.(fmt.Stringer); ok {
		return fmt.Sprintf("mhz: %s on %s", d.variant, st)
	}
	return fmt.Sprintf("mhz: %s", d.variant)
}

var _ conn.Resource = &Dev{}
