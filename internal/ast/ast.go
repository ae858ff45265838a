// Package ast defines the owned AST that the flattener, walker, and
// rewriter operate over. Nodes are plain structs implementing Expr; there
// is no parser here, only the tree shape the rest of gemcheck consumes.
package ast

import (
	"encoding/json"
	"fmt"
)

// Loc marks a node's position in its originating file. Line/Col are
// 1-based; zero values mean "unknown" (synthetic nodes carry the loc of
// whatever they were synthesized from, or the zero value).
type Loc struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Kind identifies a node's concrete type for switch-based dispatch,
// mirroring the double-dispatch Visitor methods in package walker.
type Kind int

const (
	KindEmpty Kind = iota
	KindClassDef
	KindMethodDef
	KindSend
	KindLiteral
	KindLocal
	KindUnresolvedIdent
	KindInsSeq
)

// Expr is implemented by every AST node.
type Expr interface {
	Kind() Kind
	Location() Loc
	DeepCopy() Expr
}

// ClassKind distinguishes `class` from `module` definitions.
type ClassKind int

const (
	Class ClassKind = iota
	Module
)

// Empty stands in for a definition moved elsewhere by the flattener, or
// for a genuinely empty body.
type Empty struct {
	Loc Loc
}

func (e *Empty) Kind() Kind        { return KindEmpty }
func (e *Empty) Location() Loc     { return e.Loc }
func (e *Empty) DeepCopy() Expr    { return &Empty{Loc: e.Loc} }

// ClassDef is a `class` or `module` definition. Ancestors holds the
// superclass (for Class) or included/mixed-in names; Body holds the
// class's top-level statements, which the flattener rewrites in place.
type ClassDef struct {
	Loc       Loc
	ClassKind ClassKind
	Name      string
	Ancestors []string
	Body      []Expr
}

func (c *ClassDef) Kind() Kind    { return KindClassDef }
func (c *ClassDef) Location() Loc { return c.Loc }
func (c *ClassDef) DeepCopy() Expr {
	body := make([]Expr, len(c.Body))
	for i, e := range c.Body {
		body[i] = e.DeepCopy()
	}
	ancestors := append([]string(nil), c.Ancestors...)
	return &ClassDef{Loc: c.Loc, ClassKind: c.ClassKind, Name: c.Name, Ancestors: ancestors, Body: body}
}

type classDefJSON struct {
	Loc       Loc
	ClassKind ClassKind
	Name      string
	Ancestors []string
	Body      []json.RawMessage
}

// MarshalJSON encodes Body's interface elements through Encode, since
// encoding/json cannot marshal an []Expr generically.
func (c *ClassDef) MarshalJSON() ([]byte, error) {
	body := make([]json.RawMessage, len(c.Body))
	for i, e := range c.Body {
		enc, err := Encode(e)
		if err != nil {
			return nil, err
		}
		body[i] = enc
	}
	return json.Marshal(classDefJSON{Loc: c.Loc, ClassKind: c.ClassKind, Name: c.Name, Ancestors: c.Ancestors, Body: body})
}

func (c *ClassDef) UnmarshalJSON(data []byte) error {
	var v classDefJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.Loc, c.ClassKind, c.Name, c.Ancestors = v.Loc, v.ClassKind, v.Name, v.Ancestors
	c.Body = make([]Expr, len(v.Body))
	for i, raw := range v.Body {
		e, err := Decode(raw)
		if err != nil {
			return err
		}
		c.Body[i] = e
	}
	return nil
}

// MethodDef is a method definition. IsSelf marks a `def self.foo`
// (class/singleton method) definition; the flattener may flip this bit
// when a nested method's enclosing static context demands it.
type MethodDef struct {
	Loc    Loc
	Name   string
	IsSelf bool
	Params []string
	Body   Expr
}

func (m *MethodDef) Kind() Kind    { return KindMethodDef }
func (m *MethodDef) Location() Loc { return m.Loc }
func (m *MethodDef) DeepCopy() Expr {
	var body Expr
	if m.Body != nil {
		body = m.Body.DeepCopy()
	}
	return &MethodDef{Loc: m.Loc, Name: m.Name, IsSelf: m.IsSelf, Params: append([]string(nil), m.Params...), Body: body}
}

type methodDefJSON struct {
	Loc    Loc
	Name   string
	IsSelf bool
	Params []string
	Body   json.RawMessage
}

func (m *MethodDef) MarshalJSON() ([]byte, error) {
	body, err := Encode(m.Body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(methodDefJSON{Loc: m.Loc, Name: m.Name, IsSelf: m.IsSelf, Params: m.Params, Body: body})
}

func (m *MethodDef) UnmarshalJSON(data []byte) error {
	var v methodDefJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.Loc, m.Name, m.IsSelf, m.Params = v.Loc, v.Name, v.IsSelf, v.Params
	body, err := Decode(v.Body)
	if err != nil {
		return err
	}
	m.Body = body
	return nil
}

// Send is a method call. FunName is the method being called; a Send
// whose FunName is "sig", or is a visibility modifier ("private",
// "protected", "public", "private_class_method") wrapping exactly one
// MethodDef argument, is subject to flattener movement (spec.md §4.1).
type Send struct {
	Loc      Loc
	Receiver Expr
	FunName  string
	Args     []Expr
}

func (s *Send) Kind() Kind    { return KindSend }
func (s *Send) Location() Loc { return s.Loc }
func (s *Send) DeepCopy() Expr {
	var recv Expr
	if s.Receiver != nil {
		recv = s.Receiver.DeepCopy()
	}
	args := make([]Expr, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.DeepCopy()
	}
	return &Send{Loc: s.Loc, Receiver: recv, FunName: s.FunName, Args: args}
}

type sendJSON struct {
	Loc      Loc
	Receiver json.RawMessage
	FunName  string
	Args     []json.RawMessage
}

func (s *Send) MarshalJSON() ([]byte, error) {
	recv, err := Encode(s.Receiver)
	if err != nil {
		return nil, err
	}
	args := make([]json.RawMessage, len(s.Args))
	for i, a := range s.Args {
		enc, err := Encode(a)
		if err != nil {
			return nil, err
		}
		args[i] = enc
	}
	return json.Marshal(sendJSON{Loc: s.Loc, Receiver: recv, FunName: s.FunName, Args: args})
}

func (s *Send) UnmarshalJSON(data []byte) error {
	var v sendJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	recv, err := Decode(v.Receiver)
	if err != nil {
		return err
	}
	s.Loc, s.Receiver, s.FunName = v.Loc, recv, v.FunName
	s.Args = make([]Expr, len(v.Args))
	for i, raw := range v.Args {
		e, err := Decode(raw)
		if err != nil {
			return err
		}
		s.Args[i] = e
	}
	return nil
}

// Literal is a constant value leaf (string, integer, symbol, etc). Value
// is stored pre-rendered since gemcheck never evaluates it.
type Literal struct {
	Loc   Loc
	Value string
}

func (l *Literal) Kind() Kind     { return KindLiteral }
func (l *Literal) Location() Loc  { return l.Loc }
func (l *Literal) DeepCopy() Expr { return &Literal{Loc: l.Loc, Value: l.Value} }

// Local is a reference to a local variable.
type Local struct {
	Loc  Loc
	Name string
}

func (v *Local) Kind() Kind     { return KindLocal }
func (v *Local) Location() Loc  { return v.Loc }
func (v *Local) DeepCopy() Expr { return &Local{Loc: v.Loc, Name: v.Name} }

// IdentScope distinguishes constant/class-level identifiers from
// instance/global ones, mirroring Sorbet's UnresolvedIdent kinds.
type IdentScope int

const (
	ScopeClass IdentScope = iota
	ScopeInstance
	ScopeGlobal
)

// UnresolvedIdent is a name reference gemcheck has not yet resolved to a
// symbol, e.g. a bare constant or `@ivar`. The flattener's synthetic
// `class << self` marker is a ClassDef Name, not one of these.
type UnresolvedIdent struct {
	Loc   Loc
	Scope IdentScope
	Name  string
}

func (u *UnresolvedIdent) Kind() Kind    { return KindUnresolvedIdent }
func (u *UnresolvedIdent) Location() Loc { return u.Loc }
func (u *UnresolvedIdent) DeepCopy() Expr {
	return &UnresolvedIdent{Loc: u.Loc, Scope: u.Scope, Name: u.Name}
}

// InsSeq is a sequence of statements followed by a result expression,
// the shape a bare non-sequence tree gets wrapped in before flattened
// methods can be appended (spec.md §4.1, "program-root flush").
type InsSeq struct {
	Loc    Loc
	Stats  []Expr
	Result Expr
}

func (i *InsSeq) Kind() Kind    { return KindInsSeq }
func (i *InsSeq) Location() Loc { return i.Loc }
func (i *InsSeq) DeepCopy() Expr {
	stats := make([]Expr, len(i.Stats))
	for idx, e := range i.Stats {
		stats[idx] = e.DeepCopy()
	}
	var result Expr
	if i.Result != nil {
		result = i.Result.DeepCopy()
	}
	return &InsSeq{Loc: i.Loc, Stats: stats, Result: result}
}

type insSeqJSON struct {
	Loc    Loc
	Stats  []json.RawMessage
	Result json.RawMessage
}

func (i *InsSeq) MarshalJSON() ([]byte, error) {
	stats := make([]json.RawMessage, len(i.Stats))
	for idx, e := range i.Stats {
		enc, err := Encode(e)
		if err != nil {
			return nil, err
		}
		stats[idx] = enc
	}
	result, err := Encode(i.Result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(insSeqJSON{Loc: i.Loc, Stats: stats, Result: result})
}

func (i *InsSeq) UnmarshalJSON(data []byte) error {
	var v insSeqJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	i.Loc = v.Loc
	i.Stats = make([]Expr, len(v.Stats))
	for idx, raw := range v.Stats {
		e, err := Decode(raw)
		if err != nil {
			return err
		}
		i.Stats[idx] = e
	}
	result, err := Decode(v.Result)
	if err != nil {
		return err
	}
	i.Result = result
	return nil
}

// nodeEnvelope tags an encoded Expr with its concrete Kind, since
// encoding/json has no notion of interface types and Decode needs to
// know which struct to allocate before it can unmarshal the payload.
type nodeEnvelope struct {
	Kind    Kind
	Payload json.RawMessage
}

// Encode marshals e, wrapped with its Kind so Decode can recover the
// concrete type. A nil e encodes as JSON null.
func Encode(e Expr) (json.RawMessage, error) {
	if e == nil {
		return json.RawMessage("null"), nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("ast: encode: %w", err)
	}
	data, err := json.Marshal(nodeEnvelope{Kind: e.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("ast: encode: %w", err)
	}
	return data, nil
}

// Decode is Encode's inverse. It returns (nil, nil) for JSON null.
func Decode(data json.RawMessage) (Expr, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var env nodeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ast: decode: %w", err)
	}

	switch env.Kind {
	case KindEmpty:
		var v Empty
		return &v, json.Unmarshal(env.Payload, &v)
	case KindClassDef:
		var v ClassDef
		return &v, json.Unmarshal(env.Payload, &v)
	case KindMethodDef:
		var v MethodDef
		return &v, json.Unmarshal(env.Payload, &v)
	case KindSend:
		var v Send
		return &v, json.Unmarshal(env.Payload, &v)
	case KindLiteral:
		var v Literal
		return &v, json.Unmarshal(env.Payload, &v)
	case KindLocal:
		var v Local
		return &v, json.Unmarshal(env.Payload, &v)
	case KindUnresolvedIdent:
		var v UnresolvedIdent
		return &v, json.Unmarshal(env.Payload, &v)
	case KindInsSeq:
		var v InsSeq
		return &v, json.Unmarshal(env.Payload, &v)
	default:
		return nil, fmt.Errorf("ast: decode: unknown kind %d", env.Kind)
	}
}

// IsMethodModifier reports whether name is one of Ruby's method
// visibility modifiers that the flattener treats like a wrapped method
// definition (spec.md §4.1; grounded on the original flatten pass's
// isMethodModifier).
func IsMethodModifier(name string) bool {
	switch name {
	case "private", "protected", "public", "private_class_method":
		return true
	default:
		return false
	}
}
