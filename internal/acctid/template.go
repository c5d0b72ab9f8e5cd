// Package acctid turns a channel's user prefix template into externally
// visible user identifiers.  A template contains exactly one contiguous
// run of '#' placeholders; the run length is the zero-padding width of the
// sequential counter substituted into it.
package acctid

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Placeholder is the character that marks counter digits in a template.
const Placeholder = '#'

// MaxTemplateLen bounds the stored prefix column.
const MaxTemplateLen = 64

var (
	ErrEmptyTemplate      = errors.New("user_prefix must not be empty")
	ErrTemplateTooLong    = errors.New("user_prefix must be at most 64 characters")
	ErrTemplateWhitespace = errors.New("user_prefix cannot contain spaces")
	ErrNoPlaceholder      = errors.New(`user_prefix must contain a run of "#" characters`)
	ErrSplitPlaceholder   = errors.New(`user_prefix must contain exactly one contiguous run of "#" characters`)
	ErrInvalidSequence    = errors.New("sequence must be positive")
)

// Template is a parsed user prefix.  The zero value is not usable; build
// one with Parse.
type Template struct {
	head  string // text before the placeholder run
	tail  string // text after the placeholder run
	width int    // number of '#' characters
}

// Parse validates raw and splits it around its placeholder run.
func Parse(raw string) (Template, error) {
	if raw == "" {
		return Template{}, ErrEmptyTemplate
	}
	if len(raw) > MaxTemplateLen {
		return Template{}, ErrTemplateTooLong
	}
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return Template{}, ErrTemplateWhitespace
	}
	start := strings.IndexRune(raw, Placeholder)
	if start < 0 {
		return Template{}, ErrNoPlaceholder
	}
	end := start
	for end < len(raw) && raw[end] == Placeholder {
		end++
	}
	if strings.IndexRune(raw[end:], Placeholder) >= 0 {
		return Template{}, ErrSplitPlaceholder
	}
	return Template{head: raw[:start], tail: raw[end:], width: end - start}, nil
}

// MustParse is Parse for templates known to be valid, such as the default.
func MustParse(raw string) Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the template in its original form.
func (t Template) String() string {
	return t.head + strings.Repeat(string(Placeholder), t.width) + t.tail
}

// Format renders seq into the template.  The counter is left-padded with
// zeros to the template width; a counter that needs more digits than the
// width is written unpadded (US### with 1000 gives US1000).
func (t Template) Format(seq int) (string, error) {
	if seq < 1 {
		return "", ErrInvalidSequence
	}
	digits := strconv.Itoa(seq)
	if pad := t.width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return t.head + digits + t.tail, nil
}

// Batch renders the n identifiers that follow base, in order:
// base+1, base+2, ..., base+n.
func (t Template) Batch(base, n int) ([]string, error) {
	if base < 0 || n < 1 {
		return nil, ErrInvalidSequence
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id, err := t.Format(base + i)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Sequence extracts the counter embedded in accID, reporting false when
// accID was not produced by this template.
func (t Template) Sequence(accID string) (int, bool) {
	if !strings.HasPrefix(accID, t.head) || !strings.HasSuffix(accID, t.tail) {
		return 0, false
	}
	if len(accID) < len(t.head)+len(t.tail)+t.width {
		return 0, false
	}
	mid := accID[len(t.head) : len(accID)-len(t.tail)]
	n, err := strconv.Atoi(mid)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
