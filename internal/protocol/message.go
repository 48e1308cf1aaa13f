package protocol

import (
	"fmt"
	"math"
	"time"
)

// Kind names a message variant in logs.
type Kind string

const (
	KindSessionStart         Kind = "session_start"
	KindSessionStop          Kind = "session_stop"
	KindRecognitionActivated Kind = "recognition_activated"
	KindTranscription        Kind = "transcription"
	KindSynthesizedToken     Kind = "synthesized_token"
	KindSentenceDeclared     Kind = "sentence_declared"
	KindGenerationEnd        Kind = "generation_end"
	KindUnrecognized         Kind = "unrecognized"
)

// Message is the closed set of inbound shapes the session understands.
type Message interface {
	Kind() Kind
	message()
}

// SessionStart is the panel start notice.
type SessionStart struct{}

// SessionStop is the panel stop notice.
type SessionStop struct{}

// RecognitionActivated announces a new user utterance.
type RecognitionActivated struct{}

// Transcription carries live recognition text. Content replaces the displayed user text.
type Transcription struct {
	User    string
	Content string
}

// SynthesizedToken is one revealable token of a sentence with its display duration.
type SynthesizedToken struct {
	SentenceID string
	Token      string
	Duration   time.Duration
}

// SentenceDeclared announces a generated sentence ahead of its tokens.
type SentenceDeclared struct {
	SentenceID string
	Content    string
}

// GenerationEnd terminates the current generation stream.
type GenerationEnd struct{}

// Unrecognized wraps any request that matches no known shape.
type Unrecognized struct {
	Request Request
}

func (SessionStart) Kind() Kind         { return KindSessionStart }
func (SessionStop) Kind() Kind          { return KindSessionStop }
func (RecognitionActivated) Kind() Kind { return KindRecognitionActivated }
func (Transcription) Kind() Kind        { return KindTranscription }
func (SynthesizedToken) Kind() Kind     { return KindSynthesizedToken }
func (SentenceDeclared) Kind() Kind     { return KindSentenceDeclared }
func (GenerationEnd) Kind() Kind        { return KindGenerationEnd }
func (Unrecognized) Kind() Kind         { return KindUnrecognized }

func (SessionStart) message()         {}
func (SessionStop) message()          {}
func (RecognitionActivated) message() {}
func (Transcription) message()        {}
func (SynthesizedToken) message()     {}
func (SentenceDeclared) message()     {}
func (GenerationEnd) message()        {}
func (Unrecognized) message()         {}

// Parse classifies a request. Sentinels match by full equality, data shapes by
// origin, type, and payload keys. The first match wins in this order: stop,
// recognition activated, transcription, token, sentence, end of stream, start.
func Parse(r Request) Message {
	switch {
	case r.Equal(PanelStop()):
		return SessionStop{}
	case r.Equal(ASRActivate()):
		return RecognitionActivated{}
	}

	if r.Type() == "data" {
		if msg, ok := parseData(r.From(), r.Payload()); ok {
			return msg
		}
	}

	switch {
	case r.Equal(LLMEndOfStream()):
		return GenerationEnd{}
	case r.Equal(PanelStart()):
		return SessionStart{}
	}
	return Unrecognized{Request: r}
}

func parseData(from string, payload map[string]any) (Message, bool) {
	if payload == nil {
		return nil, false
	}

	switch from {
	case "asr":
		user, hasUser := payload["user"]
		content, hasContent := payload["content"]
		if !hasUser || !hasContent {
			return nil, false
		}
		return Transcription{User: text(user), Content: text(content)}, true
	case "tts":
		id, hasID := payload["id"]
		token, hasToken := payload["token"]
		raw, hasDuration := payload["duration"]
		if !hasID || !hasToken || !hasDuration {
			return nil, false
		}
		duration, ok := seconds(raw)
		if !ok {
			return nil, false
		}
		return SynthesizedToken{SentenceID: text(id), Token: text(token), Duration: duration}, true
	case "llm":
		content, hasContent := payload["content"]
		id, hasID := payload["id"]
		if !hasContent || !hasID {
			return nil, false
		}
		return SentenceDeclared{SentenceID: text(id), Content: text(content)}, true
	}
	return nil, false
}

// text renders a payload value the way it is shown and keyed.
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// seconds converts a JSON number of seconds into a non-negative duration.
func seconds(v any) (time.Duration, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 {
		f = 0
	}
	return time.Duration(f * float64(time.Second)), true
}
