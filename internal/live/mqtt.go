package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
	"github.com/vzahanych/view-guard-meta/portal/internal/service"
)

// MQTTConfig locates the OpenGate event broker
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// TrackedObject is one side of an OpenGate event message
type TrackedObject struct {
	ID          string   `json:"id"`
	Camera      string   `json:"camera"`
	Label       string   `json:"label"`
	TopScore    float64  `json:"top_score"`
	StartTime   float64  `json:"start_time"`
	EndTime     *float64 `json:"end_time,omitempty"`
	HasSnapshot bool     `json:"has_snapshot"`
}

// TrackingMessage is the payload OpenGate publishes for new, update and end events
type TrackingMessage struct {
	Type   string         `json:"type"`
	Before *TrackedObject `json:"before"`
	After  *TrackedObject `json:"after"`
}

// Object returns the most recent state carried by the message
func (m TrackingMessage) Object() *TrackedObject {
	if m.After != nil {
		return m.After
	}
	return m.Before
}

// Subscriber relays OpenGate tracking events from MQTT onto the event bus
type Subscriber struct {
	*service.ServiceBase
	config    MQTTConfig
	client    mqtt.Client
	connected atomic.Bool
}

// NewSubscriber creates the MQTT subscriber service
func NewSubscriber(cfg MQTTConfig, log *logger.Logger) *Subscriber {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Subscriber{
		ServiceBase: service.NewServiceBase("mqtt", log),
		config:      cfg,
	}
	s.client = mqtt.NewClient(s.clientOptions())
	return s
}

func (s *Subscriber) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
		opts.SetPassword(s.config.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	// Subscriptions are not kept across clean sessions, so subscribe on every connect
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.connected.Store(true)
		s.LogInfo("Connected to MQTT broker", "broker", s.config.Broker)
		s.PublishEvent(service.EventTypeBrokerConnected, map[string]interface{}{"broker": s.config.Broker})

		token := c.Subscribe(s.config.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			s.handleMessage(msg.Payload())
		})
		go func() {
			if token.WaitTimeout(10*time.Second) && token.Error() != nil {
				s.LogError("Failed to subscribe", token.Error(), "topic", s.config.Topic)
				return
			}
			s.LogInfo("Subscribed to topic", "topic", s.config.Topic)
		}()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.connected.Store(false)
		s.LogWarn("Lost connection to MQTT broker", "error", err)
		s.PublishEvent(service.EventTypeBrokerDisconnected, map[string]interface{}{"broker": s.config.Broker})
	})
	return opts
}

// Start connects in the background; the client keeps retrying until Stop
func (s *Subscriber) Start(ctx context.Context) error {
	if s.config.Broker == "" {
		return fmt.Errorf("mqtt broker not configured")
	}
	token := s.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			s.LogError("MQTT connect failed", err, "broker", s.config.Broker)
		}
	}()
	return nil
}

// Stop disconnects from the broker
func (s *Subscriber) Stop(ctx context.Context) error {
	s.client.Disconnect(250)
	s.connected.Store(false)
	s.LogInfo("MQTT subscriber stopped")
	return nil
}

// IsConnected reports broker connectivity
func (s *Subscriber) IsConnected() bool {
	return s.connected.Load()
}

// handleMessage decodes a tracking message and publishes it as a tracking event
func (s *Subscriber) handleMessage(payload []byte) {
	var msg TrackingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.LogWarn("Failed to decode tracking message", "error", err)
		return
	}
	obj := msg.Object()
	if obj == nil || obj.Camera == "" {
		s.LogDebug("Ignoring tracking message without camera", "type", msg.Type)
		return
	}

	s.PublishEvent(service.EventTypeTrackingEvent, map[string]interface{}{
		"type":     msg.Type,
		"camera":   obj.Camera,
		"event_id": obj.ID,
		"label":    obj.Label,
	})
}
