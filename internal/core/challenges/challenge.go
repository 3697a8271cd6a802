package challenges

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Form is the shape of a challenge payload.
type Form int

const (
	// FormMissing is an absent, null or empty challenge.
	FormMissing Form = iota
	FormString
	FormStructured
	// FormUnsupported is any other JSON value (number, boolean, array).
	FormUnsupported
)

// Challenge is the tagged union a PDS may send: a plain string or a JSON object.
type Challenge struct {
	form Form
	text string
	doc  map[string]any
}

func StringChallenge(s string) Challenge {
	if s == "" {
		return Challenge{}
	}
	return Challenge{form: FormString, text: s}
}

func StructuredChallenge(doc map[string]any) Challenge {
	if doc == nil {
		return Challenge{}
	}
	return Challenge{form: FormStructured, doc: doc}
}

func (c Challenge) Form() Form { return c.form }

// Document returns the structured payload, or nil for string challenges.
func (c Challenge) Document() map[string]any { return c.doc }

// Signable is the exact string that gets signed. Strings pass through;
// structured challenges are serialized canonically (object keys sorted at
// every level, no HTML escaping, numbers kept verbatim). U+2028 and U+2029
// are emitted as raw characters, not as \u escapes.
func (c Challenge) Signable() (string, error) {
	switch c.form {
	case FormString:
		return c.text, nil
	case FormStructured:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(c.doc); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedChallengeFormat, err)
		}
		return string(unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n"))), nil
	case FormMissing:
		return "", ErrInvalidChallenge
	default:
		return "", ErrUnsupportedChallengeFormat
	}
}

// unescapeLineSeparators undoes the \u2028 and \u2029 escapes that
// encoding/json always applies. An escape preceded by an escaped backslash
// is literal text and stays as is.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+6 <= len(b) {
			switch string(b[i : i+6]) {
			case `\u2028`:
				out = append(out, "\u2028"...)
				i += 5
				continue
			case `\u2029`:
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

func (c *Challenge) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = Challenge{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StringChallenge(s)
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			return err
		}
		*c = StructuredChallenge(doc)
	default:
		c.form = FormUnsupported
	}
	return nil
}

func (c Challenge) MarshalJSON() ([]byte, error) {
	switch c.form {
	case FormString:
		return json.Marshal(c.text)
	case FormStructured:
		return json.Marshal(c.doc)
	default:
		return []byte("null"), nil
	}
}
