// Package template renders the output templates of filter documents.
//
// A template is literal text with {expression} holes. An expression names a
// variable or collection, optionally followed by a pipe chain:
//
//	{failures.count} failed
//	{failures | each: "{index}. {value | truncate: 80}" | join: "\n"}
//
// The language has no loops or conditionals beyond the pipe catalog.
package template

import (
	"strconv"
	"strings"
)

// Value is either a Scalar or a List. The set is closed.
type Value interface {
	isValue()
}

// Scalar is a single string.
type Scalar string

// List is an ordered sequence of strings. When it was resolved from a chunk
// collection, Records holds the structured item behind each string, aligned
// by index; pipes that drop items keep the two in step.
type List struct {
	Items   []string
	Records []Record
}

func (Scalar) isValue() {}
func (List) isValue()   {}

// Record is one structured collection item, produced by the chunk processor.
type Record struct {
	Fields   map[string]string
	Text     string
	Children map[string][]Record
}

// String renders a value as plain text. Lists are joined with ", ".
func String(v Value) string {
	switch v := v.(type) {
	case Scalar:
		return string(v)
	case List:
		return strings.Join(v.Items, ", ")
	}
	return ""
}

// Scope holds the variables visible to a template. Child scopes shadow their
// parent, which is how each iterations expose index, value and record fields.
type Scope struct {
	vars    map[string]string
	lists   map[string][]string
	records map[string][]Record
	parent  *Scope
}

// NewScope returns an empty root scope.
func NewScope() *Scope {
	return &Scope{
		vars:    make(map[string]string),
		lists:   make(map[string][]string),
		records: make(map[string][]Record),
	}
}

// Child returns a new scope layered over s.
func (s *Scope) Child() *Scope {
	c := NewScope()
	c.parent = s
	return c
}

// Set binds a scalar variable.
func (s *Scope) Set(name, value string) {
	s.vars[name] = value
}

// SetAll binds every entry of vars.
func (s *Scope) SetAll(vars map[string]string) {
	for k, v := range vars {
		s.vars[k] = v
	}
}

// SetList binds a string collection.
func (s *Scope) SetList(name string, items []string) {
	s.lists[name] = items
}

// SetRecords binds a record collection.
func (s *Scope) SetRecords(name string, recs []Record) {
	s.records[name] = recs
}

// SetCaptures binds regex capture groups as {0}, {1}, ...
func (s *Scope) SetCaptures(groups []string) {
	for i, g := range groups {
		s.vars[strconv.Itoa(i)] = g
	}
}

func (s *Scope) lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return Scalar(v), true
		}
		if items, ok := sc.lists[name]; ok {
			return List{Items: items}, true
		}
		if recs, ok := sc.records[name]; ok {
			items := make([]string, len(recs))
			for i, r := range recs {
				items[i] = r.Text
			}
			return List{Items: items, Records: recs}, true
		}
	}
	return nil, false
}

// resolve evaluates a base reference: a name, or name.count.
func (s *Scope) resolve(ref string) Value {
	if v, ok := s.lookup(ref); ok {
		return v
	}
	if base, prop, ok := strings.Cut(ref, "."); ok && prop == "count" {
		if v, ok := s.lookup(base); ok {
			return Scalar(strconv.Itoa(count(v)))
		}
		return Scalar("0")
	}
	return Scalar("")
}

func count(v Value) int {
	switch v := v.(type) {
	case List:
		return len(v.Items)
	case Scalar:
		if v == "" {
			return 0
		}
		return len(strings.Split(string(v), "\n"))
	}
	return 0
}
