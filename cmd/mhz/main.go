// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mhz reads an MH-Z14A or MH-Z19B CO2 sensor and exports its readings.
//
// The readings are logged, served to Prometheus on /metrics, and optionally
// published to an MQTT topic and drawn as a bar in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/co2/co2meter"
	"github.com/GermanBionicSystems/co2/diag"
	"github.com/GermanBionicSystems/co2/mhz"
	"github.com/GermanBionicSystems/co2/monitor"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// CLI args
var (
	port         = flag.String("port", "/dev/serial0", "serial port the sensor UART is wired to, empty to disable")
	pwmPin       = flag.String("pwm", "", "GPIO the sensor PWM output is wired to, e.g. GPIO18")
	variant      = flag.Int("variant", 19, "sensor model: 14 for MH-Z14A, 19 for MH-Z19B")
	readInterval = flag.Duration("interval", 30*time.Second, "time interval between sensor reads")
	listenAddr   = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests, empty to disable.")
	mqttBroker   = flag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	mqttTopic    = flag.String("mqtt-topic", "sensors/co2", "MQTT topic readings are published to")
	meterCells   = flag.Int("meter", 0, "width of the terminal bar graph, 0 to disable")
	debug        = flag.Bool("debug", false, "log every exchange with the sensor")
)

func init() {
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", flag.Args())
		os.Exit(2)
	}
	if err := mainImpl(); err != nil {
		log.Fatal(err)
	}
}

func mainImpl() error {
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "couldn't initialize host drivers")
	}

	var s mhz.Stream
	if *port != "" {
		ss, err := mhz.OpenSerial(*port)
		if err != nil {
			return errors.Wrap(err, "couldn't open the sensor UART")
		}
		s = ss
	}
	var pulser mhz.Pulser
	source := monitor.UART
	if *pwmPin != "" {
		pin := gpioreg.ByName(*pwmPin)
		if pin == nil {
			return errors.Errorf("unknown pin %q", *pwmPin)
		}
		p, err := mhz.NewPinPulser(pin)
		if err != nil {
			return err
		}
		pulser = p
		if s == nil {
			source = monitor.PWM
		}
	}

	rec := diag.NewLogrus(log.StandardLogger(), *port)
	dev, err := mhz.New(s, pulser, mhz.Variant(*variant), &mhz.Opts{PWMMaxAttempts: 3, Recorder: rec})
	if err != nil {
		return err
	}
	defer dev.Close()
	dev.SetDebug(*debug)
	log.Printf("Opened %s", dev)

	metrics, err := monitor.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	opts := &monitor.Opts{
		Interval: *readInterval,
		Source:   source,
		Metrics:  metrics,
		Logger:   log.StandardLogger(),
	}
	if *mqttBroker != "" {
		pub, err := monitor.NewMQTTPublisher(*mqttBroker, "mhz-"+hostname())
		if err != nil {
			return err
		}
		defer pub.Close()
		opts.Publisher = pub
		opts.Topic = *mqttTopic
	}
	if *meterCells > 0 {
		meter := co2meter.New(&co2meter.Opts{Cells: *meterCells})
		defer meter.Halt()
		opts.Meter = meter
	}
	m, err := monitor.New(dev, opts)
	if err != nil {
		return err
	}

	if *listenAddr != "" {
		go func() {
			// Expose the registered metrics via HTTP.
			http.Handle("/metrics", promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{
					// Opt into OpenMetrics to support exemplars.
					EnableOpenMetrics: true,
				},
			))
			log.Panic(http.ListenAndServe(*listenAddr, nil))
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
