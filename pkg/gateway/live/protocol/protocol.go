// Package protocol defines the JSON envelope exchanged over a speak
// websocket. Client frames carry control intent (start, stop); server
// frames carry sentence boundaries, audio, and lifecycle signals.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fallback voice settings. The session fills omitted start-frame
// fields from its configured defaults; these are the last resort when
// the session has none.
const (
	DefaultVoice = "af_heart"
	DefaultSpeed = 1.0
)

// Client frame types.
const (
	TypeStart = "start"
	TypeStop  = "stop"
)

// Server frame types.
const (
	TypeSentenceStart = "sentence_start"
	TypeAudio         = "audio"
	TypeSentenceEnd   = "sentence_end"
	TypeError         = "error"
	TypeStopped       = "stopped"
	TypeDone          = "done"
)

// DecodeError describes a client frame the gateway could not accept.
// The session reports it to the client and keeps the connection open.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return e.Reason
}

func badRequest(format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// ClientStart requests a new generation. A start frame received while a
// generation is active supersedes it.
type ClientStart struct {
	Type  string  `json:"type"`
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// ClientStop cancels the active generation, if any.
type ClientStop struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses one inbound text frame. It returns
// *ClientStart or *ClientStop, or a *DecodeError for malformed input.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid JSON frame: %v", err)
	}

	switch envelope.Type {
	case TypeStart:
		var msg ClientStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid start frame: %v", err)
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("start requires non-empty text")
		}
		if msg.Speed < 0 {
			return nil, badRequest("start speed must be non-negative")
		}
		// Omitted voice and speed stay zero; the session substitutes
		// its configured defaults.
		return &msg, nil
	case TypeStop:
		return &ClientStop{Type: TypeStop}, nil
	case "":
		return nil, badRequest("missing message type")
	default:
		return nil, badRequest("unknown message type %q", envelope.Type)
	}
}

// ServerSentenceStart announces that synthesis of one sentence unit is
// beginning. Offsets are rune positions into the original start text.
type ServerSentenceStart struct {
	Type        string `json:"type"`
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// ServerAudio carries one base64-encoded audio chunk for a sentence.
type ServerAudio struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Data  string `json:"data"`
}

// ServerSentenceEnd marks the last audio chunk of a sentence.
type ServerSentenceEnd struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// ServerError reports a recoverable fault. The connection stays open.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ServerStopped acknowledges a stop frame.
type ServerStopped struct {
	Type string `json:"type"`
}

// ServerDone marks the successful end of a generation.
type ServerDone struct {
	Type string `json:"type"`
}

func NewSentenceStart(index int, text string, startOffset, endOffset int) ServerSentenceStart {
	return ServerSentenceStart{
		Type:        TypeSentenceStart,
		Index:       index,
		Text:        text,
		StartOffset: startOffset,
		EndOffset:   endOffset,
	}
}

func NewAudio(index int, data string) ServerAudio {
	return ServerAudio{Type: TypeAudio, Index: index, Data: data}
}

func NewSentenceEnd(index int) ServerSentenceEnd {
	return ServerSentenceEnd{Type: TypeSentenceEnd, Index: index}
}

func NewError(message string) ServerError {
	return ServerError{Type: TypeError, Message: message}
}

func NewStopped() ServerStopped {
	return ServerStopped{Type: TypeStopped}
}

func NewDone() ServerDone {
	return ServerDone{Type: TypeDone}
}
