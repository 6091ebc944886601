package i3ipc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Response is a message whose JSON payload has been decoded into D.
// A Response is built only from a complete frame whose payload decoded
// successfully; callers never see a partially populated value.
type Response[D any] struct {
	Type MessageType
	Body D
}

// Decode unmarshals the payload of m into a Response.
// A malformed payload yields a *PayloadError; the connection that produced m
// is unaffected.
func Decode[D any](m Message) (Response[D], error) {
	var body D
	if err := json.Unmarshal(m.Payload, &body); err != nil {
		return Response[D]{}, &PayloadError{Type: m.Type, Err: err}
	}
	return Response[D]{Type: m.Type, Body: body}, nil
}

// Receive reads the next frame from c and decodes its payload into D.
func Receive[D any](ctx context.Context, c *Conn) (Response[D], error) {
	msg, err := c.Receive(ctx)
	if err != nil {
		return Response[D]{}, err
	}
	return Decode[D](msg)
}

// Request sends a message and returns the next frame decoded into D.
// On a connection with active subscriptions the next frame may be an event;
// use Run there instead.
//
// Once the message is sent a reply is owed, so failing to read it for any
// reason, cancellation included, closes the connection. Otherwise the
// abandoned reply would be returned to the next Request.
func Request[D any](ctx context.Context, c *Conn, t MessageType, payload string) (Response[D], error) {
	if _, err := c.Send(ctx, t, payload); err != nil {
		return Response[D]{}, err
	}

	msg, err := c.Receive(ctx)
	if err != nil {
		if c.err == nil {
			err = c.fail(errors.Wrapf(err, "awaiting %s reply", t))
		}
		return Response[D]{}, err
	}
	return Decode[D](msg)
}
