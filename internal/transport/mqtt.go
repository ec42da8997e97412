package transport

import (
	"bytes"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds configuration for the MQTT mirror.
type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientID string `yaml:"client_id" json:"clientId"`
	Topic    string `yaml:"topic" json:"topic"`
	Retain   bool   `yaml:"retain" json:"retain"`
}

// publisher is the part of mqtt.Client we use.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink mirrors every sentence to "<topic>/<type>", e.g.
// "nmeacast/GPGGA", without the CRLF.
type MQTTSink struct {
	client  publisher
	topic   string
	retain  bool
	timeout time.Duration
}

// NewMQTT connects to the broker.
func NewMQTT(cfg MQTTConfig) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, token.Error())
	}
	log.Printf("[mqtt] connected to %s, publishing under %s/", cfg.Broker, cfg.Topic)
	return &MQTTSink{client: client, topic: cfg.Topic, retain: cfg.Retain, timeout: 2 * time.Second}, nil
}

func (m *MQTTSink) Write(p []byte) (int, error) {
	line := bytes.TrimRight(p, "\r\n")
	topic := m.topic
	if len(line) > 1 && line[0] == '$' {
		if i := bytes.IndexAny(line, ",*"); i > 1 {
			topic += "/" + string(line[1:i])
		}
	}
	token := m.client.Publish(topic, 0, m.retain, string(line))
	if !token.WaitTimeout(m.timeout) {
		return 0, fmt.Errorf("mqtt: publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return 0, fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return len(p), nil
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
