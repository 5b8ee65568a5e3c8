// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"fmt"
	"strings"
	"unicode"
)

// Field is one name/value pair of a parsed entry.
type Field struct {
	Name  string
	Value string
}

// Entry is a parsed BibTeX entry. Fields keep their source order.
type Entry struct {
	Type   string
	Key    string
	Fields []Field
}

// Get returns the value of the named field (case-insensitive).
func (e Entry) Get(name string) (string, bool) {
	for _, f := range e.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// ArchiveID returns the arXiv id recorded in the journal field, if any.
func (e Entry) ArchiveID() string {
	journal, ok := e.Get("journal")
	if !ok {
		return ""
	}
	id, found := strings.CutPrefix(journal, archivePrefix)
	if !found {
		return ""
	}
	return id
}

// Parse parses a single BibTeX entry. Text before the first '@' is ignored.
func Parse(s string) (Entry, error) {
	p := &parser{src: s}
	e, err := p.entry()
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ParseAll parses every entry in s, in order.
func ParseAll(s string) ([]Entry, error) {
	p := &parser{src: s}
	var entries []Entry
	for {
		if !p.seek('@') {
			return entries, nil
		}
		e, err := p.entry()
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("bibtex: offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

// seek advances to the next occurrence of c.
func (p *parser) seek(c byte) bool {
	i := strings.IndexByte(p.src[p.pos:], c)
	if i < 0 {
		p.pos = len(p.src)
		return false
	}
	p.pos += i
	return true
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

// ident reads a run of characters up to a delimiter.
func (p *parser) ident(stop string) string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune(stop, rune(p.src[p.pos])) && !unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) entry() (Entry, error) {
	if !p.seek('@') {
		return Entry{}, p.errorf("no entry found")
	}
	p.pos++

	var e Entry
	e.Type = strings.ToLower(p.ident("{("))
	if e.Type == "" {
		return Entry{}, p.errorf("missing entry type")
	}
	if err := p.expect('{'); err != nil {
		return Entry{}, err
	}
	e.Key = p.ident(",}")
	if e.Key == "" {
		return Entry{}, p.errorf("missing entry key")
	}

	for {
		p.skipSpace()
		switch p.peek() {
		case '}':
			p.pos++
			return e, nil
		case ',':
			p.pos++
			continue
		case 0:
			return Entry{}, p.errorf("unterminated entry %s", e.Key)
		}

		name := p.ident("=,}")
		if name == "" {
			return Entry{}, p.errorf("missing field name")
		}
		if err := p.expect('='); err != nil {
			return Entry{}, err
		}
		value, err := p.value()
		if err != nil {
			return Entry{}, err
		}
		e.Fields = append(e.Fields, Field{Name: strings.ToLower(name), Value: value})
	}
}

// value reads a braced, quoted, or bare field value.
func (p *parser) value() (string, error) {
	p.skipSpace()
	switch p.peek() {
	case '{':
		return p.delimited('{', '}')
	case '"':
		return p.delimited('"', '"')
	default:
		v := p.ident(",}")
		if v == "" {
			return "", p.errorf("missing field value")
		}
		return v, nil
	}
}

// delimited reads a value between open and close, honoring nested braces.
// As in BibTeX, only braces nest; a backslash escapes nothing. The
// delimiters are not included.
func (p *parser) delimited(open, close byte) (string, error) {
	p.pos++ // opening delimiter
	start := p.pos
	depth := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == close && depth == 0:
			v := p.src[start:p.pos]
			p.pos++
			return v, nil
		case c == '{':
			depth++
		case c == '}':
			depth--
		}
		p.pos++
	}
	return "", p.errorf("unterminated value")
}
