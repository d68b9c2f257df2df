// Package mqtt ingests device measurements published over MQTT.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"measurements-service/internal/api/payload"
	"measurements-service/internal/domain"
	"measurements-service/internal/infra"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	handleTimeout  = 5 * time.Second
)

// Result labels for mqtt_messages_total.
const (
	resultStored   = "stored"
	resultRejected = "rejected"
	resultFailed   = "failed"
)

// Config describes the broker connection.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
}

// Subscriber feeds MQTT messages into the measurement service.
type Subscriber struct {
	cfg     Config
	service domain.MeasurementService
	logger  *infra.Logger
	client  paho.Client
}

// NewSubscriber prepares a subscriber. Start connects it.
func NewSubscriber(cfg Config, service domain.MeasurementService, logger *infra.Logger) (*Subscriber, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt: topic is required")
	}
	return &Subscriber{cfg: cfg, service: service, logger: logger}, nil
}

// Start connects to the broker and subscribes to the configured topic. The
// subscription is restored on reconnect.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(s.cfg.Topic, qos, s.onMessage)
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				s.logger.Errorf(ctx, "mqtt subscribe %s: %v", s.cfg.Topic, token.Error())
				return
			}
			s.logger.Printf(ctx, "mqtt subscribed to %s", s.cfg.Topic)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			s.logger.Errorf(ctx, "mqtt connection lost: %v", err)
		})

	s.client = paho.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt: connect to %s timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", s.cfg.Broker, err)
	}
	return nil
}

// Close unsubscribes and disconnects from the broker.
func (s *Subscriber) Close() error {
	if s.client == nil || !s.client.IsConnected() {
		return nil
	}
	s.client.Unsubscribe(s.cfg.Topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
	return nil
}

func (s *Subscriber) onMessage(_ paho.Client, msg paho.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	s.Handle(ctx, msg.Topic(), msg.Payload())
}

// Handle validates a single payload and stores it. Invalid payloads are
// logged and dropped.
func (s *Subscriber) Handle(ctx context.Context, topic string, body []byte) {
	input, err := payload.Parse(body)
	if err != nil {
		infra.IncMQTTMessages(resultRejected)
		s.logger.Printf(ctx, "mqtt drop message on %s: %v", topic, err)
		return
	}

	created, err := s.service.Create(ctx, input)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			infra.IncMQTTMessages(resultRejected)
			s.logger.Printf(ctx, "mqtt drop message on %s: %v", topic, err)
			return
		}
		infra.IncMQTTMessages(resultFailed)
		s.logger.Errorf(ctx, "mqtt store message on %s: %v", topic, err)
		return
	}

	infra.IncMQTTMessages(resultStored)
	s.logger.Debugf(ctx, "mqtt stored measurement %d from %s", created.ID, topic)
}
