package modelfile

import (
	"fmt"
	"os"
	"strings"
)

// Instruction is a Modelfile keyword. Values are the canonical upper-case spelling.
type Instruction string

const (
	InstrFrom      Instruction = "FROM"
	InstrParameter Instruction = "PARAMETER"
	InstrTemplate  Instruction = "TEMPLATE"
	InstrSystem    Instruction = "SYSTEM"
	InstrAdapter   Instruction = "ADAPTER"
	InstrLicense   Instruction = "LICENSE"
	InstrMessage   Instruction = "MESSAGE"
	InstrComment   Instruction = "#"
)

// instructions is tried in order; keywords are matched case-insensitively.
var instructions = []Instruction{InstrFrom, InstrParameter, InstrTemplate, InstrSystem, InstrAdapter, InstrLicense, InstrMessage, InstrComment}

// ArgKind tags the shape of a command argument.
type ArgKind int

const (
	// ArgSingle is one string (quoted block, quoted string or bare line).
	ArgSingle ArgKind = iota
	// ArgPair is a leading name token followed by a value (PARAMETER and MESSAGE).
	ArgPair
)

// Arg is the argument of a command. Text is set for ArgSingle, Name/Value for ArgPair.
type Arg struct {
	Kind  ArgKind
	Text  string
	Name  string
	Value string
}

// Single returns a single-string argument.
func Single(text string) Arg { return Arg{Kind: ArgSingle, Text: text} }

// Pair returns a name/value argument.
func Pair(name, value string) Arg { return Arg{Kind: ArgPair, Name: name, Value: value} }

// Command is one parsed (instruction, argument) pair.
type Command struct {
	Instruction Instruction
	Arg         Arg
	Line        int
}

// Parse tokenizes a Modelfile document into its ordered command list.
// It has no knowledge of parameter types or roles; see Build.
func Parse(text string) ([]Command, error) {
	p := &parser{src: text}
	var cmds []Command
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		cmd, err := p.command()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, p.errorf("empty modelfile")
	}
	return cmds, nil
}

// ParseFile reads and parses the Modelfile at path.
func ParseFile(path string) ([]Command, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modelfile: %w", err)
	}
	return Parse(string(b))
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) rest() string { return p.src[p.pos:] }

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) skipBlank() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) command() (Command, error) {
	line := p.line()
	in, err := p.instruction()
	if err != nil {
		return Command{}, err
	}
	if in == InstrComment {
		return Command{Instruction: in, Arg: Single(p.restOfLine()), Line: line}, nil
	}
	p.skipSpace()
	if p.eof() {
		return Command{}, p.errorf("missing argument for %s", in)
	}
	arg, err := p.argument(in)
	if err != nil {
		return Command{}, err
	}
	return Command{Instruction: in, Arg: arg, Line: line}, nil
}

func (p *parser) instruction() (Instruction, error) {
	rest := p.rest()
	for _, in := range instructions {
		kw := string(in)
		if len(rest) < len(kw) || !strings.EqualFold(rest[:len(kw)], kw) {
			continue
		}
		// "FROMAGE" is not FROM; '#' needs no separator.
		if in != InstrComment && len(rest) > len(kw) && !isBoundary(rest[len(kw)]) {
			continue
		}
		p.pos += len(kw)
		return in, nil
	}
	return "", p.errorf("unknown instruction %q", firstWord(rest))
}

// argument parses, in order of precedence: """block""", "string", the
// name/value pair of PARAMETER and MESSAGE, and a bare line.
func (p *parser) argument(in Instruction) (Arg, error) {
	if s, ok, err := p.quoted(); ok || err != nil {
		return Single(s), err
	}
	if in == InstrParameter || in == InstrMessage {
		name := p.word()
		p.skipBlank()
		if p.eof() || p.src[p.pos] == '\n' || p.src[p.pos] == '\r' {
			return Pair(name, ""), nil
		}
		if s, ok, err := p.quoted(); ok || err != nil {
			return Pair(name, s), err
		}
		return Pair(name, p.restOfLine()), nil
	}
	return Single(p.restOfLine()), nil
}

// quoted consumes a triple- or single-quoted string if one starts at the
// cursor. An opening delimiter without its closing one is a syntax error.
func (p *parser) quoted() (string, bool, error) {
	for _, delim := range []string{`"""`, `"`} {
		if !strings.HasPrefix(p.rest(), delim) {
			continue
		}
		start := p.pos
		body := p.src[start+len(delim):]
		end := strings.Index(body, delim)
		if end < 0 {
			p.pos = start
			return "", false, p.errorf("unterminated %s quote", delim)
		}
		p.pos = start + len(delim) + end + len(delim)
		return body[:end], true, nil
	}
	return "", false, nil
}

func (p *parser) word() string {
	start := p.pos
	for !p.eof() && !isSpace(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) restOfLine() string {
	start := p.pos
	for !p.eof() && p.src[p.pos] != '\n' {
		p.pos++
	}
	return strings.TrimSpace(p.src[start:p.pos])
}

func (p *parser) line() int { return strings.Count(p.src[:p.pos], "\n") + 1 }

func (p *parser) errorf(format string, a ...any) error {
	return &SyntaxError{Offset: p.pos, Line: p.line(), Msg: fmt.Sprintf(format, a...)}
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isBoundary(b byte) bool { return isSpace(b) || b == '"' }

func firstWord(s string) string {
	if i := strings.IndexFunc(s, func(r rune) bool { return r < 0x80 && isSpace(byte(r)) }); i >= 0 {
		return s[:i]
	}
	return s
}
