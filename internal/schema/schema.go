// Package schema reads the datasource declaration from a Prisma-style schema file.
package schema

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNotFound is returned when a block, field or env variable is absent.
var ErrNotFound = errors.New("not found")

// ValueKind distinguishes literal values from env("...") references.
type ValueKind int

const (
	KindLiteral ValueKind = iota
	KindEnv
	KindRaw
)

// Value is the right-hand side of a block assignment.
type Value struct {
	Kind ValueKind
	Text string // literal text, env variable name, or raw expression
}

// Resolve returns the concrete value, looking up env references with lookup.
func (v Value) Resolve(lookup func(string) (string, bool)) (string, error) {
	switch v.Kind {
	case KindEnv:
		if lookup == nil {
			return "", fmt.Errorf("env(%q): %w", v.Text, ErrNotFound)
		}
		s, ok := lookup(v.Text)
		if !ok || s == "" {
			return "", fmt.Errorf("env(%q): %w", v.Text, ErrNotFound)
		}
		return s, nil
	default:
		return v.Text, nil
	}
}

// Block is a top-level "<kind> <name> { ... }" declaration.
type Block struct {
	Kind   string
	Name   string
	Fields map[string]Value
}

// Get returns a field assigned in the block.
func (b *Block) Get(key string) (Value, error) {
	v, ok := b.Fields[key]
	if !ok {
		return Value{}, fmt.Errorf("%s %s: field %q: %w", b.Kind, b.Name, key, ErrNotFound)
	}
	return v, nil
}

// File is a parsed schema file.
type File struct {
	Blocks []Block
}

// Datasource returns the first datasource block.
func (f *File) Datasource() (*Block, error) {
	for i := range f.Blocks {
		if f.Blocks[i].Kind == "datasource" {
			return &f.Blocks[i], nil
		}
	}
	return nil, fmt.Errorf("datasource block: %w", ErrNotFound)
}

// Parse reads a schema file. Only "key = value" lines are kept; model field
// declarations and attributes are skipped.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	var current *Block
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(stripComment(scanner.Text()))
		if line == "" {
			continue
		}

		switch {
		case current == nil && strings.HasSuffix(line, "{"):
			header := strings.Fields(strings.TrimSuffix(line, "{"))
			if len(header) != 2 {
				return nil, fmt.Errorf("line %d: malformed block header %q", lineNo, line)
			}
			current = &Block{Kind: header[0], Name: header[1], Fields: map[string]Value{}}
		case current != nil && line == "}":
			f.Blocks = append(f.Blocks, *current)
			current = nil
		case current != nil:
			key, val, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			if key == "" || strings.ContainsAny(key, " \t@") {
				continue
			}
			current.Fields[key] = parseValue(strings.TrimSpace(val))
		default:
			return nil, fmt.Errorf("line %d: unexpected %q outside of a block", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	if current != nil {
		return nil, fmt.Errorf("unterminated %s block %q", current.Kind, current.Name)
	}

	return f, nil
}

func parseValue(s string) Value {
	if strings.HasPrefix(s, "env(") && strings.HasSuffix(s, ")") {
		inner := strings.TrimSpace(s[len("env(") : len(s)-1])
		if name, err := strconv.Unquote(inner); err == nil {
			return Value{Kind: KindEnv, Text: name}
		}
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		return Value{Kind: KindLiteral, Text: unquoted}
	}
	return Value{Kind: KindRaw, Text: s}
}

// stripComment removes a trailing // comment outside of string literals.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '/':
			if !inString && i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}
