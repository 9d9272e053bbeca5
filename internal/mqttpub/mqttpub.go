// Package mqttpub mirrors PCMAdded/PCMRemoved/PropertiesChanged events onto
// an MQTT broker, gated by config's mqtt.enable, grounded on the teacher's
// MQTTPublisher (mqtt_publisher.go): paho.mqtt.golang client, auto-reconnect,
// one JSON payload per publish.
package mqttpub

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cwsl/btaudiod/internal/logging"
)

// Config is the subset of config.MQTTConfig mqttpub needs; kept separate
// from internal/config to avoid an import cycle (config does not need to
// know about mqtt.Client).
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Retain      bool
}

// Publisher mirrors btaudiod's bus events onto MQTT topics shaped
// "<prefix>/<adapter>/<device>/<profile>/<event>".
type Publisher struct {
	client mqtt.Client
	cfg    Config
}

// New connects to cfg.Broker and returns a ready Publisher. The connection
// auto-reconnects on loss, matching the teacher's NewMQTTPublisher.
func New(cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(generateClientID())
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logging.Infof("mqttpub: connected to %s", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logging.Warnf("mqttpub: connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttpub: connect to %s: %w", cfg.Broker, token.Error())
	}
	return &Publisher{client: client, cfg: cfg}, nil
}

func generateClientID() string {
	return "btaudiod_" + uuid.NewString()
}

// eventPayload is the JSON body published for every event.
type eventPayload struct {
	Timestamp  int64             `json:"timestamp"`
	Event      string            `json:"event"`
	ObjectPath string            `json:"object_path"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (p *Publisher) publish(topic string, payload eventPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Errorf("mqttpub: marshal payload for %s: %v", topic, err)
		return
	}
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, body)
	go func() {
		if token.Wait() && token.Error() != nil {
			logging.Warnf("mqttpub: publish to %s failed: %v", topic, token.Error())
		}
	}()
}

func (p *Publisher) topic(adapter, device, profile, event string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", p.cfg.TopicPrefix, adapter, device, profile, event)
}

// PublishPCMAdded mirrors a Manager.PCMAdded signal.
func (p *Publisher) PublishPCMAdded(adapter, device, profile, path string, props map[string]string) {
	p.publish(p.topic(adapter, device, profile, "added"), eventPayload{
		Timestamp: time.Now().Unix(), Event: "PCMAdded", ObjectPath: path, Properties: props,
	})
}

// PublishPCMRemoved mirrors a Manager.PCMRemoved signal.
func (p *Publisher) PublishPCMRemoved(adapter, device, profile, path string) {
	p.publish(p.topic(adapter, device, profile, "removed"), eventPayload{
		Timestamp: time.Now().Unix(), Event: "PCMRemoved", ObjectPath: path,
	})
}

// PublishPropertiesChanged mirrors a PCM object's PropertiesChanged signal.
func (p *Publisher) PublishPropertiesChanged(adapter, device, profile, path string, changed map[string]string) {
	p.publish(p.topic(adapter, device, profile, "properties"), eventPayload{
		Timestamp: time.Now().Unix(), Event: "PropertiesChanged", ObjectPath: path, Properties: changed,
	})
}

// Close disconnects the MQTT client, waiting up to 250ms for in-flight
// publishes to flush.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
