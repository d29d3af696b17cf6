package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fastygo/svckit/pkg/bizcode"
)

// Envelope is the standard API response wrapper used for both success and
// error payloads. E is the payload type; use None when there is no payload.
type Envelope[E any] struct {
	Result    ResultCode `json:"result"`
	Msg       string     `json:"msg"`
	Timestamp int64      `json:"timestamp"`
	Extra     *E         `json:"extra,omitempty"`
	Detail    *string    `json:"detail,omitempty"`
	Code      *string    `json:"code,omitempty"`
}

// None is the payload type of envelopes that carry no extra.
type None struct{}

// New returns an envelope stamped with the current wall-clock time in
// milliseconds and no optional fields.
func New[E any](result ResultCode, msg string) Envelope[E] {
	return Envelope[E]{
		Result:    result,
		Msg:       msg,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewSuccess returns a Success envelope.
func NewSuccess(msg string) Envelope[None] { return New[None](Success, msg) }

// NewIllegalArgument returns an IllegalArgument envelope.
func NewIllegalArgument(msg string) Envelope[None] { return New[None](IllegalArgument, msg) }

// NewWarn returns a Warn envelope.
func NewWarn(msg string) Envelope[None] { return New[None](Warn, msg) }

// NewFail returns a Fail envelope.
func NewFail(msg string) Envelope[None] { return New[None](Fail, msg) }

// WithExtra re-types env to carry extra. A nil extra leaves the payload
// absent. Every other field is kept.
func WithExtra[E, F any](env Envelope[F], extra *E) Envelope[E] {
	return Envelope[E]{
		Result:    env.Result,
		Msg:       env.Msg,
		Timestamp: env.Timestamp,
		Extra:     extra,
		Detail:    env.Detail,
		Code:      env.Code,
	}
}

// Payload replaces the payload. A nil extra makes it absent.
func (e Envelope[E]) Payload(extra *E) Envelope[E] {
	e.Extra = extra
	return e
}

// WithResult replaces the result code. Extra, detail and code are kept.
func (e Envelope[E]) WithResult(result ResultCode) Envelope[E] {
	e.Result = result
	return e
}

// WithDetail attaches a diagnostic description.
func (e Envelope[E]) WithDetail(detail string) Envelope[E] {
	e.Detail = &detail
	return e
}

// WithCode attaches a business code.
func (e Envelope[E]) WithCode(code bizcode.Code) Envelope[E] {
	s := code.String()
	e.Code = &s
	return e
}

// WithMsg replaces the message.
func (e Envelope[E]) WithMsg(msg string) Envelope[E] {
	e.Msg = msg
	return e
}

// Ok reports whether the envelope carries Success.
func (e Envelope[E]) Ok() bool {
	return e.Result == Success
}

// Get returns the payload and whether one is present.
func (e Envelope[E]) Get() (E, bool) {
	if e.Extra == nil {
		var zero E
		return zero, false
	}
	return *e.Extra, true
}

// DetailText returns the detail or an empty string.
func (e Envelope[E]) DetailText() string {
	if e.Detail == nil {
		return ""
	}
	return *e.Detail
}

// CodeText returns the business code or an empty string.
func (e Envelope[E]) CodeText() string {
	if e.Code == nil {
		return ""
	}
	return *e.Code
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope[E]) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// wireEnvelope mirrors Envelope with the required fields as pointers so
// Decode can tell an absent field from a zero one.
type wireEnvelope[E any] struct {
	Result    *json.RawMessage `json:"result"`
	Msg       *string          `json:"msg"`
	Timestamp *int64           `json:"timestamp"`
	Extra     *E               `json:"extra,omitempty"`
	Detail    *string          `json:"detail,omitempty"`
	Code      *string          `json:"code,omitempty"`
}

// Decode parses an envelope received from another service. Result, msg and
// timestamp are required and unknown result ids are rejected.
func Decode[E any](data []byte) (Envelope[E], error) {
	var wire wireEnvelope[E]
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope[E]{}, fmt.Errorf("transport: decode envelope: %w", err)
	}
	switch {
	case wire.Result == nil:
		return Envelope[E]{}, errors.New("transport: decode envelope: missing result")
	case wire.Msg == nil:
		return Envelope[E]{}, errors.New("transport: decode envelope: missing msg")
	case wire.Timestamp == nil:
		return Envelope[E]{}, errors.New("transport: decode envelope: missing timestamp")
	}

	var result ResultCode
	if err := json.Unmarshal(*wire.Result, &result); err != nil {
		return Envelope[E]{}, fmt.Errorf("transport: decode envelope: invalid result %s: %w", *wire.Result, err)
	}
	return Envelope[E]{
		Result:    result,
		Msg:       *wire.Msg,
		Timestamp: *wire.Timestamp,
		Extra:     wire.Extra,
		Detail:    wire.Detail,
		Code:      wire.Code,
	}, nil
}
