// Package osc connects OSC controllers through go-osc: a UDP server turning
// incoming messages into raw events and a client sending feedback back.
package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/hypebeast/go-osc/osc"

	"github.com/PixPMusic/gopher-learn/internal/event"
)

// FromMessage converts an OSC message. Blobs and time tags have no event
// representation and arrive as nil arguments.
func FromMessage(msg *osc.Message) event.Raw {
	args := make([]event.Arg, 0, len(msg.Arguments))
	for _, a := range msg.Arguments {
		args = append(args, fromArg(a))
	}
	return event.OscEvent(msg.Address, args...)
}

func fromArg(a any) event.Arg {
	switch v := a.(type) {
	case int32:
		return event.IntArg(int64(v))
	case int64:
		return event.IntArg(v)
	case float32:
		return event.FloatArg(float64(v))
	case float64:
		return event.FloatArg(v)
	case bool:
		return event.BoolArg(v)
	case string:
		return event.StringArg(v)
	default:
		return event.Arg{}
	}
}

// ToMessage converts an OSC event. Numbers go out as 32-bit values, which
// every OSC implementation understands.
func ToMessage(ev event.Osc) *osc.Message {
	msg := osc.NewMessage(ev.Address)
	for i := 0; i < ev.Len(); i++ {
		a := ev.At(i)
		switch a.Kind {
		case event.ArgInt:
			msg.Append(int32(a.Int))
		case event.ArgFloat:
			msg.Append(float32(a.Float))
		case event.ArgBool:
			msg.Append(a.Bool)
		case event.ArgString:
			msg.Append(a.String)
		default:
			msg.Append(nil)
		}
	}
	return msg
}

// dispatcher hands every message of a packet to fn, bundles flattened in order
type dispatcher struct {
	fn func(event.Raw)
}

func (d dispatcher) Dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		d.fn(FromMessage(p))
	case *osc.Bundle:
		for _, m := range p.Messages {
			d.fn(FromMessage(m))
		}
		for _, b := range p.Bundles {
			d.Dispatch(b)
		}
	}
}

// Listen receives OSC on addr (host:port) and calls fn for every message
// until ctx is done
func Listen(ctx context.Context, addr string, fn func(event.Raw), log *slog.Logger) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return fmt.Errorf("osc listen on %s: %w", addr, err)
	}
	return Serve(ctx, conn, fn, log)
}

// Serve receives OSC on an open connection and closes it when ctx is done
func Serve(ctx context.Context, conn net.PacketConn, fn func(event.Raw), log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log.Info("osc listening", slog.String("addr", conn.LocalAddr().String()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	server := &osc.Server{Dispatcher: dispatcher{fn: fn}}
	err := server.Serve(conn)
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return fmt.Errorf("osc server: %w", err)
}

// Client sends feedback to one OSC endpoint
type Client struct {
	client *osc.Client
}

// NewClient creates a client for addr (host:port)
func NewClient(addr string) (*Client, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("osc feedback address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return nil, fmt.Errorf("osc feedback port %q: %w", p, err)
	}
	return &Client{client: osc.NewClient(host, port)}, nil
}

// Feedback sends an OSC event. MIDI events are ignored.
func (c *Client) Feedback(ev event.Raw) error {
	if ev.Kind != event.KindOsc {
		return nil
	}
	return c.client.Send(ToMessage(ev.Osc))
}
