// Package opapi exposes the operator register-update JSON surface over
// the event bus: parse, validate, dispatch to the register cache, and
// reply (§6 "Register-update JSON (operator interface)").
package opapi

import (
	"context"

	"github.com/andreyvit/tinyjson"
	"github.com/jangala-dev/tinybms-gateway/bus"
	"github.com/jangala-dev/tinybms-gateway/drivers/tinybms"
	"github.com/jangala-dev/tinybms-gateway/errcode"
	"github.com/jangala-dev/tinybms-gateway/types"
)

// RegisterWriter is the subset of *cache.Cache this service drives.
type RegisterWriter interface {
	Write(ctx context.Context, addr uint16, userValue float64) error
}

// Service subscribes to one request topic and replies synchronously
// per request, mirroring the teacher's handleControl/reply shape.
type Service struct {
	conn   *bus.Connection
	writer RegisterWriter
}

func New(conn *bus.Connection, writer RegisterWriter) *Service {
	return &Service{conn: conn, writer: writer}
}

// Run subscribes to topic and serves requests until ctx is done.
func (s *Service) Run(ctx context.Context, topic bus.Topic) {
	sub := s.conn.Subscribe(topic)
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.handle(ctx, msg)
		}
	}
}

// handle parses msg.Payload, dispatches the write, and replies. Payload
// may arrive as raw JSON bytes (from an external bridge) or already as
// a parsed Request, so both are accepted.
func (s *Service) handle(ctx context.Context, msg *bus.Message) {
	req, code := parseRequest(msg.Payload)
	if code != "" {
		s.reply(msg, code)
		return
	}

	d, ok := tinybms.ByKey[req.Key]
	if !ok {
		s.reply(msg, errcode.NotFound)
		return
	}
	if d.Access != types.RW {
		s.reply(msg, errcode.InvalidState)
		return
	}

	if err := s.writer.Write(ctx, d.Addr, req.Value); err != nil {
		s.reply(msg, errcode.Of(err))
		return
	}
	s.conn.Reply(msg, types.OKReply{OK: true}, false)
}

// Request is the parsed §6 operator payload.
type Request struct {
	Key   string
	Value float64
}

func parseRequest(payload any) (Request, errcode.Code) {
	switch p := payload.(type) {
	case Request:
		return p, ""
	case []byte:
		return parseRequestJSON(p)
	case string:
		return parseRequestJSON([]byte(p))
	default:
		return Request{}, errcode.InvalidPayload
	}
}

func parseRequestJSON(raw []byte) (req Request, code errcode.Code) {
	defer func() {
		if r := recover(); r != nil {
			req, code = Request{}, errcode.InvalidPayload
		}
	}()

	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()

	m, ok := val.(map[string]any)
	if !ok {
		return Request{}, errcode.InvalidPayload
	}
	key, ok := m["key"].(string)
	if !ok || key == "" {
		return Request{}, errcode.InvalidPayload
	}
	value, ok := m["value"].(float64)
	if !ok {
		return Request{}, errcode.InvalidPayload
	}
	return Request{Key: key, Value: value}, ""
}

func (s *Service) reply(msg *bus.Message, code errcode.Code) {
	s.conn.Reply(msg, types.ErrorReply{OK: false, Error: string(code)}, false)
}
