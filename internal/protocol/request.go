// Package protocol defines the coordinator request envelope, control sentinels, and typed message variants.
package protocol

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Request is one decoded coordinator message. It always carries `from`, `type`, and `payload`.
type Request map[string]any

// From returns the origin module name, or "" when absent or not a string.
func (r Request) From() string {
	s, _ := r["from"].(string)
	return s
}

// Type returns the message kind, or "" when absent or not a string.
func (r Request) Type() string {
	s, _ := r["type"].(string)
	return s
}

// Payload returns the payload as a mapping. Sentinel payloads are plain strings and yield nil.
func (r Request) Payload() map[string]any {
	p, _ := r["payload"].(map[string]any)
	return p
}

// Equal reports full structural equality, which is how sentinels are recognized.
func (r Request) Equal(other Request) bool {
	return reflect.DeepEqual(map[string]any(r), map[string]any(other))
}

// Encode serializes one request as a single frame: a JSON list holding exactly that request.
func Encode(r Request) ([]byte, error) {
	data, err := json.Marshal([]Request{r})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

const signalType = "signal"

func signal(from, payload string) Request {
	return Request{"from": from, "type": signalType, "payload": payload}
}

// ModuleReady is the readiness notice announced once after connecting.
func ModuleReady(module string) Request { return signal(module, "ready") }

// PanelStart unblocks the session loop.
func PanelStart() Request { return signal("panel", "start") }

// PanelStop ends the session.
func PanelStop() Request { return signal("panel", "exit") }

// ASRActivate marks a new recognition utterance and interrupts playback.
func ASRActivate() Request { return signal("asr", "activate") }

// LLMEndOfStream terminates one generation stream.
func LLMEndOfStream() Request { return signal("llm", "eos") }
