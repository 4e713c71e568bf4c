// Package secret provides a string wrapper for credential material whose
// default rendering is redacted. Values only leave the wrapper through an
// explicit Reveal call at an output boundary.
package secret

import "encoding/json"

// redacted is what a Text looks like everywhere it is printed by accident.
const redacted = "****"

// Text holds a sensitive string such as an application ID, a private key or
// an issued token.
type Text string

// New wraps s as sensitive text.
func New(s string) Text {
	return Text(s)
}

// Reveal returns the underlying value. Call sites are the audit trail for
// where secrets actually leave the process.
func (t Text) Reveal() string {
	return string(t)
}

// IsZero reports whether the value is empty.
func (t Text) IsZero() bool {
	return t == ""
}

// String implements fmt.Stringer and always redacts.
func (t Text) String() string {
	if t == "" {
		return ""
	}
	return redacted
}

// GoString redacts %#v output as well.
func (t Text) GoString() string {
	return "secret.Text(" + t.String() + ")"
}

// MarshalJSON serializes the redacted form, so a Text embedded in a struct
// can never leak through an encoder.
func (t Text) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON accepts a plain JSON string.
func (t *Text) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, (*string)(t))
}

// Mask returns a partially masked preview safe for debug logging.
func (t Text) Mask() string {
	s := string(t)
	if len(s) <= 8 {
		return redacted
	}
	return s[:4] + redacted + s[len(s)-4:]
}
