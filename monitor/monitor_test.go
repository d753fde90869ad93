// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GermanBionicSystems/co2/mhz"
	"github.com/GermanBionicSystems/co2/mhz/mhztest"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

type fakeSensor struct {
	mu    sync.Mutex
	env   mhz.Env
	err   error
	ppm   mhz.PPM
	heat  bool
	calls int
}

func (f *fakeSensor) Sense(env *mhz.Env) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	*env = f.env
	return f.err
}

func (f *fakeSensor) ReadCO2PWM() (mhz.PPM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.ppm, f.err
}

func (f *fakeSensor) IsPreHeating() bool { return f.heat }

func (f *fakeSensor) String() string { return "fake" }

func (f *fakeSensor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

type fakeMeter struct {
	shown []mhz.PPM
}

func (m *fakeMeter) Show(ppm mhz.PPM) error {
	m.shown = append(m.shown, ppm)
	return nil
}

func newLogger() (*log.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := log.New()
	logger.SetOutput(buf)
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return logger, buf
}

func newMetrics(t *testing.T) *Metrics {
	m, err := NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func reading(ppm mhz.PPM, c int) mhz.Env {
	return mhz.Env{CO2: ppm, Temperature: physic.ZeroCelsius + physic.Temperature(c)*physic.Celsius}
}

func TestPollUART(t *testing.T) {
	s := &fakeSensor{env: reading(812, 23)}
	metrics := newMetrics(t)
	pub := &fakePublisher{}
	meter := &fakeMeter{}
	logger, buf := newLogger()
	m, err := newMonitor(s, &Opts{
		Interval:  time.Second,
		Metrics:   metrics,
		Publisher: pub,
		Topic:     "home/co2",
		Meter:     meter,
		Logger:    logger,
	}, clockwork.NewFakeClock())
	if err != nil {
		t.Fatal(err)
	}
	env, err := m.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if env.CO2 != 812 {
		t.Errorf("unexpected reading %s", &env)
	}
	if v := testutil.ToFloat64(metrics.CO2.WithLabelValues("fake")); v != 812 {
		t.Errorf("co2 gauge %g", v)
	}
	if v := testutil.ToFloat64(metrics.Temperature.WithLabelValues("fake")); v != 23 {
		t.Errorf("temperature gauge %g", v)
	}
	if len(pub.payloads) != 1 || pub.topics[0] != "home/co2" {
		t.Fatalf("unexpected publications %q", pub.topics)
	}
	msg := Message{}
	if err := json.Unmarshal(pub.payloads[0], &msg); err != nil {
		t.Fatal(err)
	}
	if msg.CO2 != 812 || msg.Sensor != "fake" || msg.Source != "uart" || msg.Temperature == nil || *msg.Temperature != 23 {
		t.Errorf("unexpected message %s", pub.payloads[0])
	}
	if len(meter.shown) != 1 || meter.shown[0] != 812 {
		t.Errorf("meter showed %v", meter.shown)
	}
	if !strings.Contains(buf.String(), "sensor=fake") || !strings.Contains(buf.String(), "812 PPM") {
		t.Errorf("unexpected log %q", buf.String())
	}
}

func TestPollPWM(t *testing.T) {
	s := &fakeSensor{ppm: 1500}
	metrics := newMetrics(t)
	pub := &fakePublisher{}
	logger, _ := newLogger()
	m, err := newMonitor(s, &Opts{Interval: time.Second, Source: PWM, Metrics: metrics, Publisher: pub, Topic: "co2", Logger: logger}, clockwork.NewFakeClock())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	if v := testutil.ToFloat64(metrics.CO2.WithLabelValues("fake")); v != 1500 {
		t.Errorf("co2 gauge %g", v)
	}
	if n := testutil.CollectAndCount(metrics.Temperature); n != 0 {
		t.Errorf("temperature exported from PWM: %d series", n)
	}
	if bytes.Contains(pub.payloads[0], []byte("temperature_c")) {
		t.Errorf("temperature published from PWM: %s", pub.payloads[0])
	}
}

func TestPollErrors(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{err: mhz.ErrNotReady, reason: "not_ready"},
		{err: mhz.ErrNoResponse, reason: "no_response"},
		{err: mhz.ErrIncomplete, reason: "incomplete"},
		{err: &mhz.ChecksumError{Received: 0x28, Expected: 0x29}, reason: "checksum"},
		{err: fmt.Errorf("wrapped: %w", mhz.ErrNotConnected), reason: "not_connected"},
		{err: errors.New("write failed"), reason: "io"},
	}
	for _, test := range tests {
		t.Run(test.reason, func(t *testing.T) {
			s := &fakeSensor{err: test.err}
			metrics := newMetrics(t)
			pub := &fakePublisher{}
			logger, _ := newLogger()
			m, err := newMonitor(s, &Opts{Interval: time.Second, Metrics: metrics, Publisher: pub, Topic: "co2", Logger: logger}, clockwork.NewFakeClock())
			if err != nil {
				t.Fatal(err)
			}
			if _, err := m.Poll(); !errors.Is(err, test.err) {
				t.Fatalf("expected %v, got %v", test.err, err)
			}
			if v := testutil.ToFloat64(metrics.Errors.WithLabelValues("fake", test.reason)); v != 1 {
				t.Errorf("error counter %g", v)
			}
			if len(pub.payloads) != 0 {
				t.Error("failed reading published")
			}
		})
	}
}

func TestPublishErrorLogged(t *testing.T) {
	s := &fakeSensor{env: reading(600, 20)}
	logger, buf := newLogger()
	m, err := newMonitor(s, &Opts{Interval: time.Second, Publisher: &fakePublisher{err: errors.New("broker down")}, Topic: "co2", Logger: logger}, clockwork.NewFakeClock())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "broker down") {
		t.Errorf("publish error not logged: %q", buf.String())
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(&fakeSensor{}, &Opts{}); err == nil {
		t.Error("expected error on zero interval")
	}
	if _, err := New(&fakeSensor{}, &Opts{Interval: time.Second, Source: "i2c"}); err == nil {
		t.Error("expected error on unknown source")
	}
}

func TestRun(t *testing.T) {
	s := &fakeSensor{env: reading(420, 21), heat: true}
	clock := clockwork.NewFakeClock()
	logger, _ := newLogger()
	m, err := newMonitor(s, &Opts{Interval: 5 * time.Second, Logger: logger}, clock)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- m.Run(ctx)
	}()
	clock.BlockUntil(1)
	for s.count() != 1 {
		time.Sleep(time.Millisecond)
	}
	clock.Advance(5 * time.Second)
	for s.count() != 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestMonitorDevice(t *testing.T) {
	pb := &mhztest.Playback{Ops: []mhztest.IO{{W: mhz.RequestFrame(), R: mhztest.Frame(950, 26, 0)}}}
	dev, err := mhz.New(pb, nil, mhz.MHZ14A, &mhz.Opts{
		ResponseTimeout: 20 * time.Millisecond,
		PollInterval:    time.Millisecond,
		PowerOn:         time.Now().Add(-mhz.PreheatDuration),
	})
	if err != nil {
		t.Fatal(err)
	}
	metrics := newMetrics(t)
	logger, _ := newLogger()
	m, err := New(dev, &Opts{Interval: time.Second, Metrics: metrics, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Poll(); err != nil {
		t.Fatal(err)
	}
	name := dev.String()
	if v := testutil.ToFloat64(metrics.CO2.WithLabelValues(name)); v != 950 {
		t.Errorf("co2 gauge %g", v)
	}
	if v := testutil.ToFloat64(metrics.Temperature.WithLabelValues(name)); v != 26 {
		t.Errorf("temperature gauge %g", v)
	}
	if pb.Count != 1 {
		t.Errorf("expected 1 exchange, got %d", pb.Count)
	}
}
