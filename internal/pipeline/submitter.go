//file: internal/pipeline/submitter.go

package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"relp-ingest/internal/logger"
	"relp-ingest/internal/metrics"
)

// ErrSubmitterClosed is returned by Submit after Close.
var ErrSubmitterClosed = errors.New("pipeline: submitter closed")

// Submitter is the downstream pipeline boundary. Submit is called once per
// received event; on success the pipeline owns the message.
type Submitter interface {
	Submit(msg *Message) error
	Close() error
}

// Overflow policies for the channel submitter.
const (
	OverflowDrop  = "drop"
	OverflowBlock = "block"
)

// ChannelSubmitter hands messages to an in-process consumer over a bounded
// queue. The overflow policy decides whether a full queue drops the message
// (best effort, counted) or blocks the submitting receive loop.
//
// Submit and Close may race: sends hold the read side of the mutex, Close
// closes the queue under the write side, and the done channel wakes any
// Submit still parked on a full queue so the write lock can be acquired.
type ChannelSubmitter struct {
	ch       chan *Message
	overflow string
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	doneOnce sync.Once
	dropped  atomic.Uint64
}

// NewChannelSubmitter builds a channel submitter with the given queue depth
// and overflow policy. metrics may be nil.
func NewChannelSubmitter(size int, overflow string, log *logger.Logger, m *metrics.Metrics) (*ChannelSubmitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pipeline: queue size must be positive")
	}
	switch overflow {
	case OverflowDrop, OverflowBlock:
	default:
		return nil, fmt.Errorf("pipeline: invalid overflow policy %q", overflow)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ChannelSubmitter{
		ch:       make(chan *Message, size),
		overflow: overflow,
		log:      log,
		metrics:  m,
		done:     make(chan struct{}),
	}, nil
}

// Messages exposes the consumer side of the queue.
func (c *ChannelSubmitter) Messages() <-chan *Message {
	return c.ch
}

// Dropped reports how many messages were discarded under the drop policy.
func (c *ChannelSubmitter) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *ChannelSubmitter) Submit(msg *Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrSubmitterClosed
	}

	if c.overflow == OverflowBlock {
		select {
		case c.ch <- msg:
			return nil
		case <-c.done:
			return ErrSubmitterClosed
		}
	}

	select {
	case c.ch <- msg:
		return nil
	case <-c.done:
		return ErrSubmitterClosed
	default:
		c.dropped.Add(1)
		if c.metrics != nil {
			c.metrics.IncEventsDropped()
		}
		c.log.Warn("pipeline queue full, dropping event",
			"input", msg.InputName,
			"from", msg.ReceivedFromIP)
		return nil
	}
}

// Close shuts the queue down. A Submit blocked on a full queue is woken and
// returns ErrSubmitterClosed; the queue channel is closed only once no send
// can be in flight, so the consumer sees a clean end of stream.
func (c *ChannelSubmitter) Close() error {
	c.doneOnce.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.ch)
	return nil
}
