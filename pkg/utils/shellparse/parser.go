// SPDX-License-Identifier: Apache-2.0

// Package shellparse splits option strings into arguments using POSIX
// shell quoting rules, and joins arguments back for display.
package shellparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnclosedQuote is returned when a quoted string is not properly closed
	ErrUnclosedQuote = errors.New("unclosed quote")

	// ErrTrailingEscape is returned when a backslash appears at the end of input
	ErrTrailingEscape = errors.New("trailing escape character")
)

type state int

const (
	stateSpace state = iota
	stateWord
	stateSingle
	stateDouble
)

// lexer accumulates words from a rune stream.
type lexer struct {
	words   []string
	current strings.Builder
	// pending is set once a word has started, even if it is still empty
	// (for example after a pair of empty quotes).
	pending bool
}

func (l *lexer) emit() {
	if l.pending {
		l.words = append(l.words, l.current.String())
	}
	l.current.Reset()
	l.pending = false
}

func (l *lexer) add(r rune) {
	l.current.WriteRune(r)
	l.pending = true
}

// Split parses input into words.
//
// Whitespace separates words. Single quotes keep everything literal. Double
// quotes keep everything literal except backslash before " \ $ or `.
// Outside quotes a backslash escapes any character.
//
//	Split(`-Dfoo=bar -XX:+UseG1GC`)        => ["-Dfoo=bar", "-XX:+UseG1GC"]
//	Split(`-Dname="two words"`)            => ["-Dname=two words"]
//	Split(`-Dpath=/opt/my\ dir ''`)        => ["-Dpath=/opt/my dir", ""]
func Split(input string) ([]string, error) {
	l := &lexer{}
	st := stateSpace
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch st {
		case stateSpace, stateWord:
			switch {
			case unicode.IsSpace(r):
				l.emit()
				st = stateSpace
			case r == '\\':
				if i+1 >= len(runes) {
					return nil, ErrTrailingEscape
				}
				i++
				l.add(runes[i])
				st = stateWord
			case r == '\'':
				l.pending = true
				st = stateSingle
			case r == '"':
				l.pending = true
				st = stateDouble
			default:
				l.add(r)
				st = stateWord
			}

		case stateSingle:
			if r == '\'' {
				st = stateWord
				continue
			}
			l.add(r)

		case stateDouble:
			switch r {
			case '"':
				st = stateWord
			case '\\':
				if i+1 >= len(runes) {
					return nil, ErrTrailingEscape
				}
				next := runes[i+1]
				if strings.ContainsRune("\"\\$`", next) {
					i++
					l.add(next)
				} else {
					l.add(r)
				}
			default:
				l.add(r)
			}
		}
	}

	switch st {
	case stateSingle:
		return nil, fmt.Errorf("%w: single", ErrUnclosedQuote)
	case stateDouble:
		return nil, fmt.Errorf("%w: double", ErrUnclosedQuote)
	}
	l.emit()

	if l.words == nil {
		return []string{}, nil
	}
	return l.words, nil
}

// Join renders args as a single shell-safe string, quoting only where
// needed.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

// Quote returns arg in a form Split reads back as the same single word.
func Quote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsFunc(arg, needsQuoting) {
		return arg
	}
	if !strings.Contains(arg, "'") {
		return "'" + arg + "'"
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		if strings.ContainsRune("\"\\$`", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuoting(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune("'\"\\$`", r)
}
