// Package ipc implements the master<->slave message client: a reader
// goroutine, a writer goroutine draining a buffered outbound queue, and a
// bounded flush-then-close shutdown sequence (spec §4.2, §6).
package ipc

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/lscobe16/SimpleCodeTester/internal/wire"
	"github.com/lscobe16/SimpleCodeTester/pkg/errors"
	"go.uber.org/zap"
)

// FlushTimeout bounds how long Stop waits for the outbound queue to drain
// before closing the connection regardless.
const FlushTimeout = 2 * time.Second

// outboundFrame is one queued, not-yet-serialized message.
type outboundFrame struct {
	kind    wire.Kind
	payload interface{}
}

// Client owns one net.Conn to the master and serializes all writes to it
// through a single writer goroutine. The outbound queue is a channel
// buffered to 256 frames; it is not unbounded.
type Client struct {
	conn   net.Conn
	log    *zap.Logger
	inbox  chan wire.Envelope
	outbox chan outboundFrame

	mu       sync.Mutex
	draining bool
	drained  chan struct{}

	writerDone chan struct{}
	readerDone chan struct{}
}

// NewClient starts the reader and writer goroutines over conn. Inbound
// envelopes are available from Inbox(); outbound messages are enqueued
// with QueueMessage.
func NewClient(conn net.Conn, log *zap.Logger) *Client {
	c := &Client{
		conn:       conn,
		log:        log,
		inbox:      make(chan wire.Envelope, 16),
		outbox:     make(chan outboundFrame, 256),
		drained:    make(chan struct{}),
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// Inbox returns the channel of envelopes received from the master. It is
// closed when the connection is closed or the reader encounters an error.
func (c *Client) Inbox() <-chan wire.Envelope {
	return c.inbox
}

// QueueMessage enqueues a message for delivery. It returns immediately
// while fewer than 256 frames are waiting; once the buffer is full it
// blocks until the writer has sent a frame. Queued messages are delivered
// strictly in the order they were queued.
func (c *Client) QueueMessage(kind wire.Kind, payload interface{}) {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.outbox <- outboundFrame{kind: kind, payload: payload}
}

// Stop drains the outbound queue (waiting up to FlushTimeout) and then
// closes the connection. It returns an error if the queue did not fully
// flush in time, or if closing the connection failed.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		<-c.drained
		return nil
	}
	c.draining = true
	c.mu.Unlock()

	close(c.outbox)

	var flushErr error
	select {
	case <-c.writerDone:
	case <-time.After(FlushTimeout):
		flushErr = errors.New(errors.SlaveMalformedMessage).WithMessage("outbound queue did not flush within the bounded shutdown window")
	}

	closeErr := c.conn.Close()
	<-c.readerDone
	close(c.drained)

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (c *Client) writeLoop() {
	defer close(c.writerDone)
	for frame := range c.outbox {
		if err := wire.WriteFrame(c.conn, frame.kind, frame.payload); err != nil {
			if c.log != nil {
				c.log.Warn("failed to write outbound frame", zap.String("kind", string(frame.kind)), zap.Error(err))
			}
			return
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.readerDone)
	defer close(c.inbox)
	r := bufio.NewReader(c.conn)
	for {
		env, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		c.inbox <- env
	}
}
