package modelfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// Load parses and builds text in one step.
func Load(text string) (*Modelfile, error) {
	cmds, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Build(text, cmds)
}

// LoadFile reads, parses and builds the Modelfile at path.
func LoadFile(path string) (*Modelfile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modelfile: %w", err)
	}
	return Load(string(b))
}

// Build folds commands into a Modelfile. raw is kept for Raw().
//
// Every failing command is checked, but only the last failure is returned;
// earlier ones are dropped. A missing FROM is reported only when nothing
// else failed.
func Build(raw string, cmds []Command) (*Modelfile, error) {
	mf := &Modelfile{raw: raw}
	sawFrom := false
	var lastErr error
	for _, c := range cmds {
		if c.Instruction == InstrFrom {
			sawFrom = true
		}
		if err := mf.apply(c); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if !sawFrom {
		return nil, &ValidationError{Instruction: InstrFrom, Reason: MissingFrom}
	}
	return mf, nil
}

func (m *Modelfile) apply(c Command) error {
	switch c.Instruction {
	case InstrFrom:
		m.from = c.Arg.text()
	case InstrParameter:
		p, err := parseParameter(c.Arg)
		if err != nil {
			return err
		}
		m.params = append(m.params, p)
	case InstrTemplate:
		m.template = optional{val: c.Arg.text(), set: true}
	case InstrSystem:
		m.system = optional{val: c.Arg.text(), set: true}
	case InstrAdapter:
		m.adapter = optional{val: c.Arg.text(), set: true}
	case InstrLicense:
		m.license = optional{val: c.Arg.text(), set: true}
	case InstrMessage:
		msg, err := parseMessage(c.Arg)
		if err != nil {
			return err
		}
		m.messages = append(m.messages, msg)
	case InstrComment:
	default:
		return fmt.Errorf("modelfile: unexpected instruction %q at line %d", c.Instruction, c.Line)
	}
	return nil
}

// text flattens a pair back into "name value" for single-string instructions.
func (a Arg) text() string {
	if a.Kind == ArgPair {
		return strings.TrimSpace(a.Name + " " + a.Value)
	}
	return a.Text
}

func parseParameter(arg Arg) (Parameter, error) {
	name, value := arg.Name, arg.Value
	if arg.Kind == ArgSingle {
		fields := strings.Fields(arg.Text)
		if len(fields) != 2 {
			return Parameter{}, &ValidationError{Instruction: InstrParameter, Value: arg.Text, Reason: MalformedArgument}
		}
		name, value = fields[0], fields[1]
	}
	if name == "" || value == "" {
		return Parameter{}, &ValidationError{Instruction: InstrParameter, Name: name, Value: arg.text(), Reason: MalformedArgument}
	}
	name = strings.ToLower(name)
	kind, ok := parameterKinds[name]
	if !ok {
		return Parameter{}, &ValidationError{Instruction: InstrParameter, Name: name, Value: value, Reason: UnknownParameter}
	}
	typeErr := &ValidationError{Instruction: InstrParameter, Name: name, Value: value, Want: kind, Reason: InvalidType}
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return Parameter{}, typeErr
		}
		return Parameter{Name: name, Value: IntValue(n)}, nil
	case KindFloat:
		if !isDecimal(value) {
			return Parameter{}, typeErr
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return Parameter{}, typeErr
		}
		return Parameter{Name: name, Value: FloatValue(f)}, nil
	}
	return Parameter{Name: name, Value: StringValue(strings.Trim(value, `"`))}, nil
}

// isDecimal reports whether s is a plain decimal float literal. ParseFloat
// alone also takes hex mantissas, digit separators, inf and nan.
func isDecimal(s string) bool {
	digits := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-':
		default:
			return false
		}
	}
	return digits > 0
}

func parseMessage(arg Arg) (Message, error) {
	role, content := arg.Name, arg.Value
	if arg.Kind == ArgSingle {
		text := strings.TrimSpace(arg.Text)
		i := strings.IndexFunc(text, unicode.IsSpace)
		if i < 0 {
			return Message{}, &ValidationError{Instruction: InstrMessage, Value: arg.Text, Reason: MalformedArgument}
		}
		role, content = text[:i], strings.TrimLeftFunc(text[i:], unicode.IsSpace)
	}
	if role == "" || content == "" {
		return Message{}, &ValidationError{Instruction: InstrMessage, Name: role, Value: arg.text(), Reason: MalformedArgument}
	}
	r, err := ParseRole(role)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: r, Content: content}, nil
}

// ParseRole parses a message role case-insensitively.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(s)); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	}
	return "", &ValidationError{Instruction: InstrMessage, Name: s, Reason: UnknownRole}
}
