// Package modelfile parses the declarative Modelfile format into a validated,
// immutable configuration.
//
// Parsing happens in two stages. Parse turns text into an ordered list of
// (instruction, argument) commands and only knows the grammar. Build folds
// that list into a *Modelfile, applying per-instruction merge rules and the
// parameter type table. Load does both.
package modelfile

import (
	"strconv"
)

// Kind is the declared type of a parameter value.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	}
	return "unknown"
}

func (k Kind) article() string {
	if k == KindInt {
		return "an Integer"
	}
	return "a " + k.String()
}

// parameterKinds is the closed set of PARAMETER names and their value types.
var parameterKinds = map[string]Kind{
	"stop":           KindString,
	"num_ctx":        KindInt,
	"repeat_last_n":  KindInt,
	"repeat_penalty": KindFloat,
	"temperature":    KindFloat,
	"seed":           KindInt,
	"num_predict":    KindInt,
	"top_k":          KindInt,
	"top_p":          KindFloat,
	"min_p":          KindFloat,
}

// Value is a typed parameter value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

func IntValue(n int64) Value { return Value{kind: KindInt, i: n} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Int() int64 { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Str() string { return v.s }

// String formats the value the way it would be written in a Modelfile.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 32)
	}
	return v.s
}

// Parameter is one PARAMETER instruction after type coercion.
type Parameter struct {
	Name  string
	Value Value
}

// Role is the author of a MESSAGE.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one MESSAGE instruction.
type Message struct {
	Role    Role
	Content string
}

type optional struct {
	val string
	set bool
}

// Modelfile is the built configuration. It is immutable: accessors return copies.
type Modelfile struct {
	from     string
	params   []Parameter
	template optional
	system   optional
	adapter  optional
	license  optional
	messages []Message
	raw      string
}

// From returns the base model identifier (last FROM wins).
func (m *Modelfile) From() string { return m.from }

// Parameters returns parameters in document order, duplicates included.
func (m *Modelfile) Parameters() []Parameter {
	return append([]Parameter(nil), m.params...)
}

// Param returns the last value given for name.
func (m *Modelfile) Param(name string) (Value, bool) {
	for i := len(m.params) - 1; i >= 0; i-- {
		if m.params[i].Name == name {
			return m.params[i].Value, true
		}
	}
	return Value{}, false
}

// Template, System, Adapter and License report whether the instruction was
// present at all; an explicitly empty value returns ("", true).
func (m *Modelfile) Template() (string, bool) { return m.template.val, m.template.set }
func (m *Modelfile) System() (string, bool) { return m.system.val, m.system.set }
func (m *Modelfile) Adapter() (string, bool) { return m.adapter.val, m.adapter.set }
func (m *Modelfile) License() (string, bool) { return m.license.val, m.license.set }

// Messages returns messages in document order.
func (m *Modelfile) Messages() []Message {
	return append([]Message(nil), m.messages...)
}

// Raw returns the original document text.
func (m *Modelfile) Raw() string { return m.raw }
