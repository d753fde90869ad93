// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package monitor

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// Publisher sends a reading payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Message is the JSON payload published for every successful reading.
type Message struct {
	Sensor      string    `json:"sensor"`
	Timestamp   time.Time `json:"timestamp"`
	Source      string    `json:"source"`
	CO2         int       `json:"co2_ppm"`
	Temperature *float64  `json:"temperature_c,omitempty"`
	Status      *byte     `json:"status,omitempty"`
}

// Marshal returns the JSON encoding of m.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// MQTTPublisher publishes on an MQTT broker.
type MQTTPublisher struct {
	Client mqtt.Client
	// QoS of the published messages.
	QoS      byte
	Retained bool
	// Timeout bounds the wait for the broker acknowledgement. 0 means wait
	// forever.
	Timeout time.Duration
}

// NewMQTTPublisher connects to broker, for example "tcp://localhost:1883".
func NewMQTTPublisher(broker, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID).SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "monitor: connecting to %s", broker)
	}
	return &MQTTPublisher{Client: c, Timeout: 5 * time.Second}, nil
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.Client.Publish(topic, p.QoS, p.Retained, payload)
	if p.Timeout > 0 {
		if !token.WaitTimeout(p.Timeout) {
			return errors.Errorf("monitor: publishing to %s: timed out after %s", topic, p.Timeout)
		}
	} else {
		token.Wait()
	}
	return errors.Wrapf(token.Error(), "monitor: publishing to %s", topic)
}

// Close disconnects from the broker, waiting up to 250ms for in flight
// messages.
func (p *MQTTPublisher) Close() error {
	p.Client.Disconnect(250)
	return nil
}

var _ Publisher = &MQTTPublisher{}
