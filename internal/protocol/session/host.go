package session

import (
	"fmt"

	"github.com/danmuck/sproto/internal/observability"
	"github.com/danmuck/sproto/internal/protocol"
	"github.com/danmuck/sproto/internal/protocol/pack"
	"github.com/danmuck/sproto/internal/protocol/schema"
	"github.com/danmuck/sproto/internal/protocol/wire"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEnvelope is the envelope type name used when none is given.
	DefaultEnvelope = "package"

	fieldType    = "type"
	fieldSession = "session"
)

// MessageKind tells requests from responses.
type MessageKind uint8

const (
	KindRequest MessageKind = iota + 1
	KindResponse
)

func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Responder encodes the reply to one incoming request. A nil response encodes
// an empty struct for protocols with a response type.
type Responder func(response any) ([]byte, error)

// Message is one dispatched request or response.
type Message struct {
	Kind       MessageKind
	Name       string
	Session    int64
	HasSession bool
	// Request is set for requests whose protocol has a request type.
	Request wire.Object
	// Response is set for responses whose protocol has a response type; it
	// stays nil for confirm-only protocols.
	Response wire.Object
	// Respond is set for requests that carried a session.
	Respond Responder
}

// Host answers requests defined by its local schema and tracks requests it
// sent through Senders.
type Host struct {
	local    *schema.Schema
	envelope string
	envType  *schema.Type
	opts     wire.Options
	sessions *Table
}

// NewHost binds local to an envelope type. The envelope must be a struct with
// plain integer fields "type" and "session".
func NewHost(local *schema.Schema, envelope string, opts wire.Options) (*Host, error) {
	if local == nil {
		return nil, protocol.ProtocolError{Reason: "host requires a schema"}
	}
	if envelope == "" {
		envelope = DefaultEnvelope
	}
	envType, err := envelopeType(local, envelope)
	if err != nil {
		return nil, err
	}
	return &Host{
		local:    local,
		envelope: envelope,
		envType:  envType,
		opts:     opts.Normalize(),
		sessions: NewTable(),
	}, nil
}

func envelopeType(s *schema.Schema, name string) (*schema.Type, error) {
	st := s.Type(name)
	if st == nil {
		return nil, protocol.SchemaError{Type: name, Reason: "envelope type not defined"}
	}
	for _, fname := range []string{fieldType, fieldSession} {
		f := st.FieldByName(fname)
		if f == nil {
			return nil, protocol.SchemaError{Type: name, Field: fname, Reason: "envelope field missing"}
		}
		if f.Kind != schema.KindInteger || f.Shape != schema.ShapeScalar || f.Scale != 0 {
			return nil, protocol.SchemaError{Type: name, Field: fname, Reason: "envelope field must be a plain integer"}
		}
	}
	return st, nil
}

func (h *Host) Schema() *schema.Schema { return h.local }

// Sessions exposes the pending session table.
func (h *Host) Sessions() *Table { return h.sessions }

// Sender encodes requests with a peer's schema on behalf of a Host.
type Sender struct {
	host    *Host
	remote  *schema.Schema
	envType *schema.Type
	err     error
}

// Attach returns a Sender that encodes with remote. A remote without the
// host's envelope type yields a Sender whose Send always fails.
func (h *Host) Attach(remote *schema.Schema) *Sender {
	s := &Sender{host: h, remote: remote}
	if remote == nil {
		s.err = protocol.ProtocolError{Reason: "attach requires a remote schema"}
		return s
	}
	s.envType, s.err = envelopeType(remote, h.envelope)
	return s
}

// Send encodes a request for protocol name. A non-zero session registers the
// request so Dispatch can match the response; session 0 expects none.
func (s *Sender) Send(name string, request any, session int64) ([]byte, error) {
	out, err := s.send(name, request, session)
	observability.RecordHostMessage(observability.DirectionSend, KindRequest.String(), err)
	if err != nil {
		log.Warn().Err(err).Str("protocol", name).Int64("session", session).Msg("session.Send failed")
		return nil, err
	}
	log.Debug().Str("protocol", name).Int64("session", session).Int("bytes", len(out)).Msg("session.Send")
	return out, nil
}

func (s *Sender) send(name string, request any, session int64) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := s.remote.Protocol(name)
	if p == nil {
		return nil, protocol.ProtocolError{Name: name, Reason: "unknown protocol"}
	}
	header := wire.Object{fieldType: p.Tag}
	if session != 0 {
		header[fieldSession] = session
	}
	buf, err := wire.EncodeValue(s.host.opts, s.envType, header)
	if err != nil {
		return nil, fmt.Errorf("encode %s header: %w", name, err)
	}
	switch {
	case p.Request != nil:
		if request == nil {
			request = wire.Object{}
		}
		body, err := wire.EncodeValue(s.host.opts, p.Request, request)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", name, err)
		}
		buf = append(buf, body...)
	case request != nil:
		return nil, protocol.ProtocolError{Name: name, Reason: "protocol takes no request"}
	}

	if session != 0 {
		s.host.sessions.Register(session, p)
		observability.SetPendingSessions(s.host.sessions.Len())
	}
	return pack.Pack(buf), nil
}

// Dispatch unpacks and classifies one incoming message. Requests resolve
// against the local schema; responses resolve against the protocol their
// session was registered with, and consume that session.
func (h *Host) Dispatch(b []byte) (Message, error) {
	msg, err := h.dispatch(b)
	kind := msg.Kind.String()
	observability.RecordHostMessage(observability.DirectionReceive, kind, err)
	if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("session.Dispatch failed")
		return Message{}, err
	}
	log.Debug().
		Str("kind", kind).
		Str("protocol", msg.Name).
		Int64("session", msg.Session).
		Msg("session.Dispatch")
	return msg, nil
}

func (h *Host) dispatch(b []byte) (Message, error) {
	raw, err := pack.Unpack(b, h.opts.MaxSize)
	if err != nil {
		return Message{}, fmt.Errorf("unpack message: %w", err)
	}
	header, used, err := wire.Decode(raw, h.envType, h.opts)
	if err != nil {
		return Message{}, fmt.Errorf("decode header: %w", err)
	}
	content := raw[used:]
	session, hasSession := header[fieldSession].(int64)

	if tag, ok := header[fieldType].(int64); ok {
		msg := Message{Kind: KindRequest, Session: session, HasSession: hasSession}
		p := h.local.ProtocolByTag(int(tag))
		if p == nil {
			return msg, protocol.ProtocolError{Tag: int(tag), Reason: "unknown protocol"}
		}
		msg.Name = p.Name
		if p.Request != nil {
			req, _, err := wire.Decode(content, p.Request, h.opts)
			if err != nil {
				return msg, fmt.Errorf("decode %s request: %w", p.Name, err)
			}
			msg.Request = req
		}
		if hasSession {
			msg.Respond = h.responder(p, session)
		}
		return msg, nil
	}

	msg := Message{Kind: KindResponse, Session: session, HasSession: hasSession}
	if !hasSession {
		return msg, protocol.ProtocolError{Reason: "session is null"}
	}
	p, ok := h.sessions.Take(session)
	observability.SetPendingSessions(h.sessions.Len())
	if !ok {
		return msg, protocol.ProtocolError{Session: session, Reason: "invalid session"}
	}
	msg.Name = p.Name
	if p.Response != nil {
		resp, _, err := wire.Decode(content, p.Response, h.opts)
		if err != nil {
			return msg, fmt.Errorf("decode %s response: %w", p.Name, err)
		}
		msg.Response = resp
	}
	return msg, nil
}

func (h *Host) responder(p *schema.Protocol, session int64) Responder {
	return func(response any) ([]byte, error) {
		out, err := h.respond(p, session, response)
		observability.RecordHostMessage(observability.DirectionRespond, KindResponse.String(), err)
		if err != nil {
			log.Warn().Err(err).Str("protocol", p.Name).Int64("session", session).Msg("session.Respond failed")
			return nil, err
		}
		return out, nil
	}
}

func (h *Host) respond(p *schema.Protocol, session int64, response any) ([]byte, error) {
	buf, err := wire.EncodeValue(h.opts, h.envType, wire.Object{fieldSession: session})
	if err != nil {
		return nil, fmt.Errorf("encode %s header: %w", p.Name, err)
	}
	switch {
	case p.Response != nil:
		if response == nil {
			response = wire.Object{}
		}
		body, err := wire.EncodeValue(h.opts, p.Response, response)
		if err != nil {
			return nil, fmt.Errorf("encode %s response: %w", p.Name, err)
		}
		buf = append(buf, body...)
	case response != nil:
		return nil, protocol.ProtocolError{Name: p.Name, Reason: "protocol takes no response payload"}
	}
	return pack.Pack(buf), nil
}
