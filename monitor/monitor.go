// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package monitor polls an MH-Z sensor at a fixed interval and fans each
// reading out to logs, Prometheus gauges, an MQTT topic and a terminal meter.
package monitor

import (
	"context"
	"time"

	"github.com/GermanBionicSystems/co2/mhz"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// Sensor is the part of *mhz.Dev used by the Monitor.
type Sensor interface {
	Sense(env *mhz.Env) error
	ReadCO2PWM() (mhz.PPM, error)
	IsPreHeating() bool
	String() string
}

// Meter displays a concentration, see co2meter.
type Meter interface {
	Show(ppm mhz.PPM) error
}

// Source selects the channel read by the Monitor.
type Source string

const (
	UART Source = "uart"
	PWM  Source = "pwm"
)

// Opts configures a Monitor. Only Interval is required.
type Opts struct {
	Interval time.Duration
	Source   Source
	Metrics  *Metrics
	// Publisher and Topic are used together.
	Publisher Publisher
	Topic     string
	Meter     Meter
	Logger    log.FieldLogger
}

// Monitor reads the sensor every Interval.
type Monitor struct {
	s     Sensor
	opts  Opts
	name  string
	log   log.FieldLogger
	clock clockwork.Clock
}

// New returns a Monitor reading s.
func New(s Sensor, opts *Opts) (*Monitor, error) {
	return newMonitor(s, opts, clockwork.NewRealClock())
}

func newMonitor(s Sensor, opts *Opts, clock clockwork.Clock) (*Monitor, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("monitor: interval must be positive")
	}
	m := &Monitor{s: s, opts: *opts, name: s.String(), log: opts.Logger, clock: clock}
	if m.opts.Source == "" {
		m.opts.Source = UART
	}
	if m.opts.Source != UART && m.opts.Source != PWM {
		return nil, errors.Errorf("monitor: unknown source %q", m.opts.Source)
	}
	if m.log == nil {
		m.log = log.StandardLogger()
	}
	m.log = m.log.WithField("sensor", m.name)
	return m, nil
}

// Poll does a single reading and reports it. Read errors are counted and
// returned; export errors are only logged.
func (m *Monitor) Poll() (mhz.Env, error) {
	env, err := m.read()
	if err != nil {
		if m.opts.Metrics != nil {
			m.opts.Metrics.Errors.WithLabelValues(m.name, Reason(err)).Inc()
		}
		if errors.Is(err, mhz.ErrNotReady) {
			m.log.Debugf("not ready: %s", err)
		} else {
			m.log.Errorf("failed to read: %s", err)
		}
		return env, err
	}
	m.log.WithField("source", m.opts.Source).Infof("Received: %s", &env)
	m.export(&env)
	return env, nil
}

func (m *Monitor) read() (mhz.Env, error) {
	env := mhz.Env{}
	if m.opts.Source == PWM {
		ppm, err := m.s.ReadCO2PWM()
		env.CO2 = ppm
		return env, err
	}
	err := m.s.Sense(&env)
	return env, err
}

func (m *Monitor) export(env *mhz.Env) {
	uart := m.opts.Source == UART
	if mt := m.opts.Metrics; mt != nil {
		mt.CO2.WithLabelValues(m.name).Set(float64(env.CO2))
		if uart {
			mt.Temperature.WithLabelValues(m.name).Set(celsius(env.Temperature))
			mt.Status.WithLabelValues(m.name).Set(float64(env.Status))
		}
	}
	if m.opts.Publisher != nil && m.opts.Topic != "" {
		msg := Message{
			Sensor:    m.name,
			Timestamp: m.clock.Now().UTC(),
			Source:    string(m.opts.Source),
			CO2:       int(env.CO2),
		}
		if uart {
			t := celsius(env.Temperature)
			s := env.Status
			msg.Temperature = &t
			msg.Status = &s
		}
		payload, err := msg.Marshal()
		if err != nil {
			m.log.Errorf("failed to marshal reading: %s", err)
		} else if err := m.opts.Publisher.Publish(m.opts.Topic, payload); err != nil {
			m.log.Errorf("failed to publish: %s", err)
		}
	}
	if m.opts.Meter != nil {
		if err := m.opts.Meter.Show(env.CO2); err != nil {
			m.log.Errorf("failed to show: %s", err)
		}
	}
}

// Run polls once immediately, then every Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if m.s.IsPreHeating() {
		m.log.Info("sensor is preheating, UART readings are not available yet")
	}
	ticker := m.clock.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	_, _ = m.Poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			_, _ = m.Poll()
		}
	}
}

func celsius(t physic.Temperature) float64 {
	return float64(t-physic.ZeroCelsius) / float64(physic.Celsius)
}
