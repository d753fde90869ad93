// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package monitor

import (
	"github.com/GermanBionicSystems/co2/mhz"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors updated by the Monitor. All of them
// are labelled by "sensor", the sensor String().
type Metrics struct {
	CO2         *prometheus.GaugeVec
	Temperature *prometheus.GaugeVec
	Status      *prometheus.GaugeVec
	Errors      *prometheus.CounterVec
}

// NewMetrics returns the collectors registered on reg. The default registerer
// is used if reg is nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		CO2:         newGauge("air_co2_level", "Air Carbon Dioxide level (units: ppm)"),
		Temperature: newGauge("air_temperature", "Sensor Temperature (units: degrees Celsius)"),
		Status:      newGauge("mhz_status", "Status byte of the last UART response"),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mhz_read_errors_total",
				Help: "Failed sensor reads, by reason",
			},
			[]string{"sensor", "reason"},
		),
	}
	for _, c := range []prometheus.Collector{m.CO2, m.Temperature, m.Status, m.Errors} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "monitor: registering metrics")
		}
	}
	return m, nil
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"sensor"},
	)
}

// Reason returns the "reason" label value for a read error.
func Reason(err error) string {
	switch {
	case errors.Is(err, mhz.ErrNotReady):
		return "not_ready"
	case errors.Is(err, mhz.ErrNoResponse):
		return "no_response"
	case errors.Is(err, mhz.ErrIncomplete):
		return "incomplete"
	case errors.Is(err, mhz.ErrChecksumMismatch):
		return "checksum"
	case errors.Is(err, mhz.ErrNotConnected):
		return "not_connected"
	default:
		return "io"
	}
}
