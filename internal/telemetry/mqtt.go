// Package telemetry publishes lobby lifecycle, relay traffic and health
// events to an optional MQTT broker. The publisher is entirely
// passive: it subscribes to the event bus and never feeds anything
// back into lobby state.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/internal/config"
	"github.com/ringleader-project/ringleader/internal/events"
	"github.com/ringleader-project/ringleader/internal/util"
)

// Topic suffixes under the configured prefix.
const (
	topicClients   = "lobby/clients"
	topicLifecycle = "games/lifecycle"
	topicStats     = "games/stats"
	topicHealth    = "health"
)

// Publisher forwards bus events to an MQTT broker.
type Publisher struct {
	cfg    *config.Config
	bus    *events.EventBus
	client mqtt.Client

	// Metadata included in every message.
	metadata map[string]interface{}
}

// NewPublisher creates the MQTT publisher. The broker URL comes from
// mqtt_broker; an empty value means telemetry is disabled and the
// caller should not construct a publisher at all.
func NewPublisher(cfg *config.Config, bus *events.EventBus) (*Publisher, error) {
	if cfg.MQTTBroker == "" {
		return nil, fmt.Errorf("mqtt_broker is not configured")
	}

	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname":  sysInfo.Hostname,
		"os":        sysInfo.OS,
		"cpu_cores": sysInfo.CPUCores,
		"memory_mb": sysInfo.TotalMemory,
		"lobby":     cfg.HostName,
	}

	p := &Publisher{
		cfg:      cfg,
		bus:      bus,
		metadata: metadata,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(fmt.Sprintf("ringleader-%s", sysInfo.Hostname))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	p.client = mqtt.NewClient(opts)

	return p, nil
}

// Start connects to the broker, subscribes to the bus and blocks until
// ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	log.Info().
		Str("broker", p.cfg.MQTTBroker).
		Str("prefix", p.cfg.MQTTTopicPrefix).
		Msg("connecting to MQTT broker")

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	p.subscribeEvents()

	<-ctx.Done()

	p.publishShutdown()
	p.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// subscribeEvents registers event handlers for MQTT publishing.
func (p *Publisher) subscribeEvents() {
	p.bus.Subscribe(events.EventClientRegistered, "mqtt.clients", p.onClientEvent)
	p.bus.Subscribe(events.EventClientExpired, "mqtt.clients", p.onClientEvent)
	p.bus.Subscribe(events.EventGameCreated, "mqtt.lifecycle", p.onLifecycleEvent)
	p.bus.Subscribe(events.EventGameActivated, "mqtt.lifecycle", p.onLifecycleEvent)
	p.bus.Subscribe(events.EventGameExpired, "mqtt.lifecycle", p.onLifecycleEvent)
	p.bus.Subscribe(events.EventGameEnded, "mqtt.lifecycle", p.onLifecycleEvent)
	p.bus.Subscribe(events.EventRelayReady, "mqtt.lifecycle", p.onLifecycleEvent)
	p.bus.Subscribe(events.EventRelayStats, "mqtt.stats", p.onStatsEvent)
	p.bus.Subscribe(events.EventHealthAlert, "mqtt.health", p.onHealthEvent)
}

// topic joins the configured prefix with a suffix.
func (p *Publisher) topic(suffix string) string {
	return p.cfg.MQTTTopicPrefix + "/" + suffix
}

// publish sends a JSON message to an MQTT topic at QoS 1.
func (p *Publisher) publish(topic string, payload interface{}) {
	if !p.client.IsConnected() {
		return
	}

	msg := p.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := p.client.Publish(topic, 1, false, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines metadata with the event payload.
func (p *Publisher) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})

	for k, v := range p.metadata {
		msg[k] = v
	}

	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	return msg
}

func (p *Publisher) onClientEvent(ctx context.Context, event events.Event) error {
	p.publish(p.topic(topicClients), map[string]interface{}{
		"event":   string(event.Type),
		"payload": event.Payload,
	})
	return nil
}

func (p *Publisher) onLifecycleEvent(ctx context.Context, event events.Event) error {
	p.publish(p.topic(topicLifecycle), map[string]interface{}{
		"event":   string(event.Type),
		"payload": event.Payload,
	})
	return nil
}

func (p *Publisher) onStatsEvent(ctx context.Context, event events.Event) error {
	p.publish(p.topic(topicStats), event.Payload)
	return nil
}

func (p *Publisher) onHealthEvent(ctx context.Context, event events.Event) error {
	p.publish(p.topic(topicHealth), event.Payload)
	return nil
}

// publishShutdown announces an orderly stop before disconnecting.
func (p *Publisher) publishShutdown() {
	p.publish(p.topic(topicHealth), map[string]interface{}{
		"event":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
