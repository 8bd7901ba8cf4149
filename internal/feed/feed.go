// Package feed relays card change notifications between processes that share
// one store through an MQTT broker.
package feed

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"hemo-board/internal/config"
	"hemo-board/internal/logger"
	"hemo-board/internal/model"
)

const publishTimeout = 5 * time.Second

// retryDelay is the pause after a failed publish before the pending change is
// tried again.
var retryDelay = time.Second

// Source is the local change stream the bridge relays.
type Source interface {
	Subscribe(fn func(model.Change)) (unsubscribe func())
	Publish(model.Change)
	Origin() string
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Topic returns the topic changes are exchanged on.
func Topic(prefix string) string { return prefix + "/cards/changes" }

// Bridge publishes local changes and injects changes published by other
// origins into the local stream.
type Bridge struct {
	cli    pahoClient
	src    Source
	topic  string
	qos    byte
	log    logger.Logger
	origin string

	mu    sync.Mutex
	unsub func()

	// pending holds the newest local change not yet on the broker. Receivers
	// reload everything on any change, so only the newest one matters.
	pendMu  sync.Mutex
	pending *model.Change
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// Connect dials the broker and starts relaying. The remote subscription is
// renewed on every (re)connect.
func Connect(cfg config.MQTTConfig, src Source, log logger.Logger) (*Bridge, error) {
	if log == nil {
		log = logger.Nop{}
	}
	b := &Bridge{
		src:    src,
		topic:  Topic(cfg.TopicPrefix),
		qos:    cfg.QoS,
		log:    log,
		origin: src.Origin(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "hemoboard-" + uuid.NewString()[:8]
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
		if err := b.subscribeRemote(); err != nil {
			log.Errorf("subscribe %s: %v", b.topic, err)
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	b.cli = newMQTTClient(opts)
	if token := b.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, token.Error())
	}
	go b.relay()
	b.forwardLocal()
	return b, nil
}

func (b *Bridge) subscribeRemote() error {
	token := b.cli.Subscribe(b.topic, b.qos, b.onMessage)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timed out")
	}
	return token.Error()
}

func (b *Bridge) forwardLocal() {
	unsub := b.src.Subscribe(func(c model.Change) {
		// Only relay writes made here. External changes were seen by polling
		// the shared database and their writer relays them itself.
		if c.Origin != b.origin || c.Kind == model.ChangeExternal {
			return
		}
		b.queue(c)
	})
	b.mu.Lock()
	b.unsub = unsub
	b.mu.Unlock()
}

// queue records c as the change to relay and wakes the relay goroutine. It
// never blocks, so a slow broker cannot stall the local change stream.
func (b *Bridge) queue(c model.Change) {
	b.pendMu.Lock()
	b.pending = &c
	b.pendMu.Unlock()
	b.signal()
}

// requeue puts c back unless a newer change arrived meanwhile.
func (b *Bridge) requeue(c model.Change) {
	b.pendMu.Lock()
	if b.pending == nil {
		b.pending = &c
	}
	b.pendMu.Unlock()
}

func (b *Bridge) take() (model.Change, bool) {
	b.pendMu.Lock()
	defer b.pendMu.Unlock()
	if b.pending == nil {
		return model.Change{}, false
	}
	c := *b.pending
	b.pending = nil
	return c, true
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) relay() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.wake:
		}
		c, ok := b.take()
		if !ok {
			continue
		}
		if err := b.publish(c); err != nil {
			b.log.Warnf("publish change %s: %v", c.ID, err)
			b.requeue(c)
			select {
			case <-b.stop:
				return
			case <-time.After(retryDelay):
			}
			b.signal()
		}
	}
}

func (b *Bridge) publish(c model.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	token := b.cli.Publish(b.topic, b.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timed out")
	}
	return token.Error()
}

func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	var c model.Change
	if err := json.Unmarshal(msg.Payload(), &c); err != nil {
		b.log.Errorf("invalid change message: %v", err)
		return
	}
	if c.Origin == b.origin {
		return
	}
	b.log.Debugw("remote change", map[string]any{"id": c.ID, "kind": string(c.Kind), "card": c.CardID, "origin": c.Origin})
	b.src.Publish(c)
}

// Close stops relaying and disconnects. A change still pending is dropped.
func (b *Bridge) Close() {
	b.mu.Lock()
	unsub := b.unsub
	b.unsub = nil
	b.mu.Unlock()
	if unsub == nil {
		return
	}
	unsub()
	close(b.stop)
	<-b.done
	if b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}
