// Package transcript holds the live user/AI transcript and renders it to a terminal.
package transcript

// Snapshot is a point-in-time copy of both transcript sides.
type Snapshot struct {
	User string
	AI   string
}

// Transcript is the mutable transcript owned by the session loop.
type Transcript struct {
	user string
	ai   string
}

// SetUser replaces the user text; the latest recognition result wins.
func (t *Transcript) SetUser(text string) {
	t.user = text
}

// AppendAI appends one revealed token.
func (t *Transcript) AppendAI(text string) {
	t.ai += text
}

// ClearAI drops the AI text ahead of a new response.
func (t *Transcript) ClearAI() {
	t.ai = ""
}

// Reset replaces both sides with empty text.
func (t *Transcript) Reset() {
	*t = Transcript{}
}

// Snapshot returns the current text.
func (t *Transcript) Snapshot() Snapshot {
	return Snapshot{User: t.user, AI: t.ai}
}
