package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/afcctl/internal/protocol"
	"github.com/danmuck/afcctl/internal/protocol/packet"
	"github.com/danmuck/afcctl/internal/protocol/schema"
	"github.com/rs/zerolog"
)

// DecodeErrorName labels requests that never reached a route.
const DecodeErrorName = "DECODE_ERROR"

var (
	ErrNilHandler = errors.New("dispatch: route has nil handler")
	ErrPanic      = errors.New("dispatch: handler panic")

	ErrIncompleteResponse = errors.New("dispatch: response lacks status or message")
)

// Handler fills resp from req. The response carries the outcome; the
// returned error is for logging and metrics.
type Handler func(ctx context.Context, req *packet.Packet, resp *packet.Packet) error

// Verifier rejects a request before its handler runs.
type Verifier func(req *packet.Packet) error

// Route binds one command code to its handler.
type Route struct {
	Command uint16
	Name    string
	Verify  Verifier
	Handle  Handler
}

// Observer receives one record per dispatched request.
type Observer interface {
	ObserveDispatch(command string, ok bool, d time.Duration)
}

// Options configures a Table.
type Options struct {
	Limits   packet.Limits
	Ack      bool
	Logger   zerolog.Logger
	Observer Observer
}

// Table is the immutable command-code -> route mapping.
type Table struct {
	routes map[uint16]Route
	opts   Options
}

// Result holds the packets produced for one request, in send order.
type Result struct {
	Ack      *packet.Packet
	Response *packet.Packet
	Err      error
}

// Packets returns the non-nil packets in send order.
func (r Result) Packets() []*packet.Packet {
	out := make([]*packet.Packet, 0, 2)
	if r.Ack != nil {
		out = append(out, r.Ack)
	}
	if r.Response != nil {
		out = append(out, r.Response)
	}
	return out
}

// NewTable builds a table and rejects duplicate command codes.
func NewTable(opts Options, routes ...Route) (*Table, error) {
	opts.Limits = withDefaultLimits(opts.Limits)
	t := &Table{routes: make(map[uint16]Route, len(routes)), opts: opts}
	for _, r := range routes {
		if r.Handle == nil {
			return nil, fmt.Errorf("%w: command=0x%04x", ErrNilHandler, r.Command)
		}
		if _, ok := t.routes[r.Command]; ok {
			return nil, fmt.Errorf("%w: command=0x%04x", protocol.ErrDuplicateCommand, r.Command)
		}
		if r.Name == "" {
			r.Name = schema.CommandName(r.Command)
		}
		t.routes[r.Command] = r
	}
	return t, nil
}

// MustTable is NewTable for startup wiring; a bad table is a programmer error.
func MustTable(opts Options, routes ...Route) *Table {
	t, err := NewTable(opts, routes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the route registered for command.
func (t *Table) Lookup(command uint16) (Route, bool) {
	r, ok := t.routes[command]
	return r, ok
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Dispatch routes req to its handler. It never panics.
func (t *Table) Dispatch(ctx context.Context, req *packet.Packet) Result {
	start := time.Now()
	seq := req.Header.Sequence
	route, ok := t.routes[req.Header.Command]
	if !ok {
		err := &protocol.ProtocolError{Command: req.Header.Command, Err: protocol.ErrUnknownCommand}
		t.opts.Logger.Warn().
			Str("cmd", schema.CommandName(req.Header.Command)).
			Uint16("seq", seq).
			Msg("dispatch unknown command")
		t.observe(schema.CommandName(req.Header.Command), false, start)
		res := Result{Response: t.failure(schema.CmdResponse, seq, schema.MessageUnknownAPI), Err: err}
		if t.opts.Ack {
			res.Ack = t.failure(schema.CmdAck, seq, schema.MessageUnknownAPI)
		}
		return res
	}

	if route.Verify != nil {
		if err := route.Verify(req); err != nil {
			t.opts.Logger.Warn().Str("cmd", route.Name).Uint16("seq", seq).Err(err).Msg("dispatch verify rejected")
			t.observe(route.Name, false, start)
			res := Result{Response: t.failure(schema.CmdResponse, seq, schema.MessageNotOK), Err: err}
			if t.opts.Ack {
				res.Ack = t.failure(schema.CmdAck, seq, schema.MessageNotOK)
			}
			return res
		}
	}

	var res Result
	if t.opts.Ack {
		res.Ack = t.ack(seq)
	}
	resp := packet.New(t.opts.Limits)
	err := t.call(ctx, route, req, resp)
	if rerr := checkResponse(resp, err); rerr != nil {
		if err == nil {
			err = fmt.Errorf("dispatch: %s: %w", route.Name, rerr)
		}
		resp = t.failure(schema.CmdResponse, seq, schema.MessageNotOK)
	}
	res.Response = resp
	res.Err = err

	var ev *zerolog.Event
	if err != nil {
		ev = t.opts.Logger.Warn().Err(err)
	} else {
		ev = t.opts.Logger.Debug()
	}
	ev.Str("cmd", route.Name).
		Uint16("seq", seq).
		Int("req_fields", len(req.Fields)).
		Int("resp_fields", len(resp.Fields)).
		Dur("duration", time.Since(start)).
		Msg("dispatch handled")
	t.observe(route.Name, err == nil, start)
	return res
}

// DispatchBytes decodes raw, dispatches it and encodes every outbound packet.
func (t *Table) DispatchBytes(ctx context.Context, raw []byte) ([][]byte, error) {
	req, decodeErr := packet.Decode(raw, t.opts.Limits)
	var res Result
	if decodeErr != nil {
		res = t.decodeFailure(raw, decodeErr)
	} else {
		res = t.Dispatch(ctx, req)
	}
	out := make([][]byte, 0, 2)
	for _, p := range res.Packets() {
		b, err := packet.Encode(p, t.opts.Limits)
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, res.Err
}

func (t *Table) decodeFailure(raw []byte, err error) Result {
	var seq uint16
	var command uint16
	if len(raw) >= packet.HeaderLen {
		command = uint16(raw[1])<<8 | uint16(raw[2])
		seq = uint16(raw[3])<<8 | uint16(raw[4])
	}
	perr := &protocol.ProtocolError{Command: command, Err: err}
	t.opts.Logger.Warn().Err(perr).Int("bytes", len(raw)).Msg("dispatch decode failed")
	t.observe(DecodeErrorName, false, time.Now())
	res := Result{Response: t.failure(schema.CmdResponse, seq, schema.MessageNotOK), Err: perr}
	if t.opts.Ack {
		res.Ack = t.failure(schema.CmdAck, seq, schema.MessageNotOK)
	}
	return res
}

func (t *Table) call(ctx context.Context, route Route, req, resp *packet.Packet) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanic, route.Name, r)
			resp.Fields = nil
		}
	}()
	return route.Handle(ctx, req, resp)
}

// checkResponse rejects a response that lacks its status or message, or that
// reports OK for a handler that failed.
func checkResponse(resp *packet.Packet, handlerErr error) error {
	status, ok := resp.FindField(schema.FieldStatus)
	if !ok || len(status.Value) != 1 {
		return ErrIncompleteResponse
	}
	if _, ok := resp.FindField(schema.FieldMessage); !ok {
		return ErrIncompleteResponse
	}
	if handlerErr != nil && status.Value[0] == schema.StatusOK {
		return ErrIncompleteResponse
	}
	return nil
}

func (t *Table) ack(seq uint16) *packet.Packet {
	p := packet.New(t.opts.Limits)
	p.AppendHeader(schema.CmdAck, seq)
	_ = p.AppendByteField(schema.FieldStatus, schema.StatusOK)
	_ = p.AppendStringField(schema.FieldMessage, schema.MessageAck)
	return p
}

func (t *Table) failure(command, seq uint16, message string) *packet.Packet {
	p := packet.New(t.opts.Limits)
	p.AppendHeader(command, seq)
	_ = p.AppendByteField(schema.FieldStatus, schema.StatusNotOK)
	_ = p.AppendStringField(schema.FieldMessage, message)
	return p
}

func (t *Table) observe(command string, ok bool, start time.Time) {
	if t.opts.Observer != nil {
		t.opts.Observer.ObserveDispatch(command, ok, time.Since(start))
	}
}

func withDefaultLimits(l packet.Limits) packet.Limits {
	d := packet.DefaultLimits()
	if l.MaxBytes <= 0 {
		l.MaxBytes = d.MaxBytes
	}
	if l.MaxFields <= 0 {
		l.MaxFields = d.MaxFields
	}
	return l
}
