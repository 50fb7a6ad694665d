// Package bus is the in-process pub/sub fabric wiring the pipeline service
// to configuration and commands. Topics are string-segment paths; retained
// messages let late subscribers (services starting in any order) see the
// last configuration and status immediately.
package bus

import (
	"sync"
)

// Topic is a sequence of path segments, e.g. {"config", "pipeline"}.
type Topic []string

// T builds a topic from segments.
func T(segments ...string) Topic { return Topic(segments) }

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }

type node struct {
	children map[string]*node
	subs     []*Subscription
	retained *Message
}

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int
}

// NewBus creates a bus with the given per-subscription queue length.
func NewBus(queueLen int) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{root: &node{}, qLen: queueLen}
}

func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, seg := range topic {
		if n.children == nil {
			n.children = make(map[string]*node)
		}
		child, ok := n.children[seg]
		if !ok {
			child = &node{}
			n.children[seg] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	if n.retained != nil {
		select {
		case sub.ch <- n.retained:
		default:
		}
	}
}

// Publish delivers msg to every subscriber of its exact topic. A full
// subscriber queue drops the oldest message rather than blocking the
// publisher: the pipeline loop must never stall on a slow consumer.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, seg := range msg.Topic {
		if n.children == nil {
			if !msg.Retained {
				return
			}
			n.children = make(map[string]*node)
		}
		child, ok := n.children[seg]
		if !ok {
			if !msg.Retained {
				return
			}
			child = &node{}
			n.children[seg] = child
		}
		n = child
	}

	for _, sub := range n.subs {
		select {
		case sub.ch <- msg:
		default:
			<-sub.ch
			sub.ch <- msg
		}
	}

	if msg.Retained {
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}
}

func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var path []*node
	for _, seg := range topic {
		child, ok := n.children[seg]
		if !ok {
			return
		}
		path = append(path, n)
		n = child
	}

	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	for i := len(topic) - 1; i >= 0; i-- {
		parent := path[i]
		child := parent.children[topic[i]]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, topic[i])
		} else {
			break
		}
	}
}

// Connection owns a set of subscriptions for one service.
type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// PublishRetained is shorthand for the retained status/config pattern.
func (c *Connection) PublishRetained(topic Topic, payload any) {
	c.bus.Publish(&Message{Topic: topic, Payload: payload, Retained: true})
}

func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{topic: topic, ch: make(chan *Message, c.bus.qLen), conn: c}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions owned by this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}
