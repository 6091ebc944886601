package i3ipc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type subscribeReply struct {
	Success bool `json:"success"`
}

// Subscribe asks the peer to push the named events ("window", "workspace",
// ...) on this connection. Events are then read with Receive or Run.
func (c *Conn) Subscribe(ctx context.Context, events ...string) error {
	if events == nil {
		events = []string{}
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return errors.Wrap(err, "i3ipc: encode subscription")
	}

	resp, err := Request[subscribeReply](ctx, c, MsgSubscribe, string(payload))
	if err != nil {
		return err
	}
	if !resp.Body.Success {
		return errors.Wrapf(ErrSubscribeRejected, "events %v", events)
	}

	c.logger.Debug("subscribed", "addr", c.Addr(), "events", events)
	return nil
}

// Run reads frames until ctx is canceled or the connection fails, passing
// each one to handler in arrival order.
//
// Reading and handling run in separate goroutines joined by a queue of
// BufferSizeOption entries, so a slow handler does not stall the socket
// until the queue is full. When handler returns an error the OnErrorOption
// callback decides whether to stop (Disconnect) or go on (Continue).
//
// Run owns the connection's read side while it runs; do not call Receive
// concurrently.
func (c *Conn) Run(ctx context.Context, handler func(Message) error) error {
	c.logger.Debug("event loop started", "addr", c.Addr(), "buffer_size", c.opts.bufferSize)

	queue := make(chan Message, c.opts.bufferSize)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(queue)
		for {
			msg, err := c.Receive(child)
			if err != nil {
				return err
			}
			select {
			case queue <- msg:
			case <-child.Done():
				return child.Err()
			}
		}
	})

	group.Go(func() error {
		for msg := range queue {
			if err := handler(msg); err != nil {
				c.logger.Debug("handler error", "addr", c.Addr(), "type", msg.Type)
				if c.opts.onError(err) == Disconnect {
					return err
				}
			}
		}
		return nil
	})

	err := group.Wait()
	c.logger.Debug("event loop stopped", "addr", c.Addr())
	return err
}
