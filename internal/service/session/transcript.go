package session

import "strings"

// Transcript is the capture text of one recording session. Finalized text is
// append-only; interim text is replaced by every capture event.
type Transcript struct {
	finalized strings.Builder
	interim   string
}

// AppendFinal appends a settled segment followed by one space and clears the
// interim text.
func (t *Transcript) AppendFinal(text string) {
	t.finalized.WriteString(text)
	t.finalized.WriteByte(' ')
	t.interim = ""
}

// SetInterim replaces the interim text.
func (t *Transcript) SetInterim(text string) {
	t.interim = text
}

// Finalized returns the accumulated finalized text as displayed.
func (t *Transcript) Finalized() string {
	return t.finalized.String()
}

// Interim returns the current interim text.
func (t *Transcript) Interim() string {
	return t.interim
}

// Snapshot returns the trimmed finalized text, or "" if there is nothing to
// translate.
func (t *Transcript) Snapshot() string {
	return strings.TrimSpace(t.finalized.String())
}

// Reset clears both finalized and interim text.
func (t *Transcript) Reset() {
	t.finalized.Reset()
	t.interim = ""
}
