package command

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"calmgr/internal/model"
)

// tokenize splits a command line on whitespace. Text inside double quotes
// is kept as one token with the quotes removed.
func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
		started = false
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, model.Validationf("unterminated quote in %q", line)
	}
	flush()
	return tokens, nil
}

// cursor walks a token list left to right.
type cursor struct {
	tokens []string
	pos    int
}

func (c *cursor) done() bool { return c.pos >= len(c.tokens) }

func (c *cursor) peek() string {
	if c.done() {
		return ""
	}
	return c.tokens[c.pos]
}

func (c *cursor) next(what string) (string, error) {
	if c.done() {
		return "", model.Validationf("missing %s", what)
	}
	tok := c.tokens[c.pos]
	c.pos++
	return tok, nil
}

// expect consumes keyword or fails.
func (c *cursor) expect(keyword string) error {
	tok, err := c.next("keyword " + keyword)
	if err != nil {
		return err
	}
	if !strings.EqualFold(tok, keyword) {
		return model.Validationf("expected %q, got %q", keyword, tok)
	}
	return nil
}

// accept consumes keyword when it is next.
func (c *cursor) accept(keyword string) bool {
	if !c.done() && strings.EqualFold(c.tokens[c.pos], keyword) {
		c.pos++
		return true
	}
	return false
}

// rest joins every remaining token.
func (c *cursor) rest(what string) (string, error) {
	if c.done() {
		return "", model.Validationf("missing %s", what)
	}
	s := strings.Join(c.tokens[c.pos:], " ")
	c.pos = len(c.tokens)
	return s, nil
}

func (c *cursor) end() error {
	if !c.done() {
		return model.Validationf("unexpected %q", strings.Join(c.tokens[c.pos:], " "))
	}
	return nil
}

// flags consumes "--key value" pairs until the next token that is not a
// flag.
func (c *cursor) flags() (map[string]string, error) {
	out := map[string]string{}
	for strings.HasPrefix(c.peek(), "--") {
		key := strings.TrimPrefix(c.tokens[c.pos], "--")
		c.pos++
		val, err := c.next("value for --" + key)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(key)] = val
	}
	return out, nil
}

func (c *cursor) date(what string) (model.Date, error) {
	tok, err := c.next(what)
	if err != nil {
		return model.Date{}, err
	}
	return model.ParseDate(tok)
}

func (c *cursor) dateTime(what string) (model.Date, model.Clock, error) {
	tok, err := c.next(what)
	if err != nil {
		return model.Date{}, model.Clock{}, err
	}
	return model.ParseDateTime(tok)
}

func (c *cursor) count() (int, error) {
	tok, err := c.next("repeat count")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, model.Wrap(err, model.CodeValidation, fmt.Sprintf("invalid repeat count %q", tok))
	}
	return n, nil
}
