package notify

import (
	"sync"
	"time"

	"inkflow-backend/internal/model"
)

const subscriberBuffer = 64

// Bus hands out named broadcast channels. A name maps to one live Channel;
// once that channel closes, the next lookup under the same name creates a
// fresh one, so a fixed well-known name spans any number of runs.
type Bus struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

func NewBus() *Bus {
	return &Bus{channels: make(map[string]*Channel)}
}

func (b *Bus) Channel(name string) *Channel {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.channels[name]; ok && ch.isLive() {
		return ch
	}
	ch := &Channel{
		name: name,
		bus:  b,
		subs: make(map[*Subscriber]struct{}),
	}
	b.channels[name] = ch
	return ch
}

// Channel fans one publisher's messages out to every subscriber. Publishing
// never blocks on, nor requires, any listener: a subscriber that cannot keep
// up has messages dropped, which is safe because every message carries full
// content rather than a diff.
type Channel struct {
	name string
	bus  *Bus

	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	closing bool
	closed  bool
}

// Subscriber receives broadcast messages on C until the channel closes.
type Subscriber struct {
	C chan model.ChannelMessage
}

func (c *Channel) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan model.ChannelMessage, subscriberBuffer)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(sub.C)
		return sub
	}
	c.subs[sub] = struct{}{}
	return sub
}

func (c *Channel) Unsubscribe(sub *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[sub]; !ok {
		return
	}
	delete(c.subs, sub)
	close(sub.C)
}

// Publish delivers msg to every current subscriber in FIFO order relative to
// this publisher's other messages. Full subscriber buffers drop the message.
func (c *Channel) Publish(msg model.ChannelMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for sub := range c.subs {
		select {
		case sub.C <- msg:
		default:
		}
	}
}

// CloseAfter closes the channel once d has elapsed, leaving time for queued
// messages to drain after a terminal publish. The channel stops representing
// its name immediately: the next Bus lookup hands out a fresh channel, so a
// run starting inside the linger window never inherits the pending close.
func (c *Channel) CloseAfter(d time.Duration) {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	time.AfterFunc(d, c.Close)
}

func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for sub := range c.subs {
		delete(c.subs, sub)
		close(sub.C)
	}
	c.mu.Unlock()

	c.bus.mu.Lock()
	if c.bus.channels[c.name] == c {
		delete(c.bus.channels, c.name)
	}
	c.bus.mu.Unlock()
}

func (c *Channel) isLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.closing
}
