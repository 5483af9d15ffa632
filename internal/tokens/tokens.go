// Package tokens counts tokens for chunk budgeting.
package tokens

import (
	"fmt"
	"strings"
)

// Counter reports how many tokens text encodes to.
type Counter interface {
	CountTokens(text string) int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(text string) int

// CountTokens calls f(text).
func (f CounterFunc) CountTokens(text string) int { return f(text) }

// Words counts whitespace-separated words. It needs no vocabulary and is used
// offline and in tests.
var Words = CounterFunc(func(text string) int { return len(strings.Fields(text)) })

// New returns the counter named by kind: "tiktoken" (with the given encoding)
// or "words".
func New(kind, encoding string) (Counter, error) {
	switch kind {
	case "", "tiktoken":
		return NewTiktoken(encoding)
	case "words":
		return Words, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}
