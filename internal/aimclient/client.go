// Package aimclient drives a server-side aim session over the aim stream.
package aimclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shottracker/shottracker/pkg/streaming"
)

// StreamPath is where the server accepts aim-stream connections.
const StreamPath = "/ws/aim"

const replyTimeout = 10 * time.Second

// ErrClosed is returned when the client was closed while waiting.
var ErrClosed = errors.New("aim stream closed")

// ServerError is an error envelope sent by the server.
type ServerError struct {
	For     string
	Message string
}

func (e *ServerError) Error() string {
	if e.For == "" {
		return "aim stream: " + e.Message
	}
	return fmt.Sprintf("aim stream %s: %s", e.For, e.Message)
}

// Reply is the server's answer to one update. Exactly one field is set.
type Reply struct {
	Solution *streaming.SolutionPayload
	Ack      *streaming.AckPayload
}

// Client is an aim-stream session. Updates are answered in order, so a
// Client must not be updated from several goroutines at once.
type Client struct {
	conn *connection
}

// StreamURL turns the service base URL into the aim-stream URL.
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path += StreamPath
	return u.String(), nil
}

// Dial opens an aim session against the service at baseURL.
func Dial(baseURL string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wsURL, err := StreamURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: newConnection(logger.With("component", "aimclient"))}
	if err := c.conn.dial(wsURL); err != nil {
		return nil, err
	}
	return c, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.close()
}

// SetConditions sets rifle, distance and wind speed.
func (c *Client) SetConditions(ctx context.Context, p streaming.ConditionsPayload) (Reply, error) {
	return c.update(ctx, streaming.TypeConditions, p)
}

// SetHeading sets the shooting bearing.
func (c *Client) SetHeading(ctx context.Context, bearing float64) (Reply, error) {
	return c.update(ctx, streaming.TypeHeading, streaming.BearingPayload{Bearing: bearing})
}

// SetWind sets the bearing the wind blows from.
func (c *Client) SetWind(ctx context.Context, bearing float64) (Reply, error) {
	return c.update(ctx, streaming.TypeWind, streaming.BearingPayload{Bearing: bearing})
}

// SetManualAngle sets the wind angle directly; nil clears it.
func (c *Client) SetManualAngle(ctx context.Context, angle *float64) (Reply, error) {
	return c.update(ctx, streaming.TypeManualAngle, streaming.ManualAnglePayload{Angle: angle})
}

// SetPositions sets heading and distance from two "lat,lon" fixes.
func (c *Client) SetPositions(ctx context.Context, shooter, target string) (Reply, error) {
	return c.update(ctx, streaming.TypePositions, streaming.PositionsPayload{Shooter: shooter, Target: target})
}

func (c *Client) update(ctx context.Context, msgType string, payload any) (Reply, error) {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return Reply{}, err
	}
	c.conn.drainReplies()
	c.conn.remember(msgType, data)
	defer c.conn.settle()
	if !c.conn.send(data) {
		return Reply{}, fmt.Errorf("send %s: queue full", msgType)
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()

	select {
	case env := <-c.conn.replyCh:
		return decodeReply(env)
	case <-timer.C:
		return Reply{}, fmt.Errorf("timeout waiting for reply to %q", msgType)
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-c.conn.done:
		return Reply{}, ErrClosed
	}
}

func decodeReply(env streaming.Envelope) (Reply, error) {
	switch env.Type {
	case streaming.TypeSolution:
		var p streaming.SolutionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Reply{}, fmt.Errorf("invalid solution: %w", err)
		}
		return Reply{Solution: &p}, nil
	case streaming.TypeAck:
		var p streaming.AckPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Reply{}, fmt.Errorf("invalid ack: %w", err)
		}
		return Reply{Ack: &p}, nil
	case streaming.TypeError:
		var p streaming.ErrorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Reply{}, fmt.Errorf("invalid error reply: %w", err)
		}
		return Reply{}, &ServerError{For: p.For, Message: p.Message}
	default:
		return Reply{}, fmt.Errorf("unexpected reply type %q", env.Type)
	}
}
