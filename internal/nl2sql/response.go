package nl2sql

import (
	"errors"
	"strings"
)

// ErrNoText is returned when a model response carries no extractable text.
var ErrNoText = errors.New("model response contained no text")

// Response is a model reply in whatever shape the provider produced.
type Response interface {
	ExtractText() (string, error)
}

// PartsResponse is a multi-segment reply; the first segment is the answer.
type PartsResponse struct {
	Parts []string
}

func (r PartsResponse) ExtractText() (string, error) {
	if len(r.Parts) == 0 {
		return "", ErrNoText
	}
	return r.Parts[0], nil
}

// TextResponse is a reply with a single text field.
type TextResponse struct {
	Text string
}

func (r TextResponse) ExtractText() (string, error) {
	if r.Text == "" {
		return "", ErrNoText
	}
	return r.Text, nil
}

// NormalizeSQL removes markdown code fences anywhere in the text and trims
// the surrounding whitespace. The statement itself is not inspected.
func NormalizeSQL(text string) string {
	text = strings.ReplaceAll(text, "```sql", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}
