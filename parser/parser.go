// Package parser reads the TXT01 stack protocol: values are pushed one per
// line and a bare keyword pops them as the arguments of a command.
package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrHeader is returned when the stream does not start with a TXT header.
var ErrHeader = errors.New("invalid header")

// ErrSyntax is returned for lines that are neither a value nor a command.
// The stream stays usable after it.
var ErrSyntax = errors.New("parse error")

// ValueType represents the type of a value on the stack
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
)

func (t ValueType) String() string {
	if t == TypeInt {
		return "int"
	}
	return "string"
}

// Value represents a value on the stack
type Value struct {
	Type ValueType
	Str  string
	Int  int64
}

// Command names understood by the launcher daemon.
const (
	CmdQuery  = "query"
	CmdRecent = "recent"
	CmdMove   = "move"
	CmdSubmit = "submit"
	CmdRun    = "run"
	CmdCancel = "cancel"
)

var commands = map[string]bool{
	CmdQuery:  true,
	CmdRecent: true,
	CmdMove:   true,
	CmdSubmit: true,
	CmdRun:    true,
	CmdCancel: true,
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []Value
}

// Parser parses Forth-style commands
type Parser struct {
	reader  *bufio.Reader
	header  string
	version string
}

// NewParser reads the five byte header (e.g. "TXT01") and returns a parser
// positioned at the first command.
func NewParser(reader io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(reader),
	}

	headerBytes := make([]byte, 5)
	if _, err := io.ReadFull(p.reader, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}

	p.header = string(headerBytes[:3])
	p.version = string(headerBytes[3:5])

	if p.header != "TXT" {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrHeader, p.header)
	}

	return p, nil
}

// Version returns the two digit protocol version from the header.
func (p *Parser) Version() string {
	return p.version
}

// ParseCommand parses the next command from input. Values left on the stack
// when the stream ends are discarded.
func (p *Parser) ParseCommand() (*Command, error) {
	stack := make([]Value, 0)

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, err
		}

		// Strings keep inner spaces, only the line ending is dropped
		line = strings.TrimRight(line, "\r\n")

		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}

		if name := strings.TrimSpace(line); commands[name] {
			return &Command{Name: name, Args: stack}, nil
		}

		value, perr := parseValue(line)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, perr)
		}
		stack = append(stack, value)

		if err == io.EOF {
			return nil, io.EOF
		}
	}
}

func parseValue(line string) (Value, error) {
	// String value (prefixed with "), may be empty
	if after, ok := strings.CutPrefix(line, `"`); ok {
		return Value{Type: TypeString, Str: after}, nil
	}

	line = strings.TrimSpace(line)
	if intVal, err := strconv.ParseInt(line, 10, 64); err == nil {
		return Value{Type: TypeInt, Int: intVal}, nil
	}

	return Value{}, fmt.Errorf("cannot parse value: %s", line)
}

// ReadAllCommands reads all commands from the parser
func (p *Parser) ReadAllCommands() ([]*Command, error) {
	var commands []*Command

	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}

	return commands, nil
}

// Encode writes cmd in wire form, without the header.
func Encode(w io.Writer, cmd Command) error {
	var b strings.Builder
	for _, arg := range cmd.Args {
		switch arg.Type {
		case TypeInt:
			b.WriteString(strconv.FormatInt(arg.Int, 10))
		default:
			if strings.ContainsAny(arg.Str, "\r\n") {
				return fmt.Errorf("string argument contains a line break: %q", arg.Str)
			}
			b.WriteString(`"`)
			b.WriteString(arg.Str)
		}
		b.WriteString("\n")
	}
	b.WriteString(cmd.Name)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// String returns a string argument.
func String(v string) Value {
	return Value{Type: TypeString, Str: v}
}

// Int returns an integer argument.
func Int(v int64) Value {
	return Value{Type: TypeInt, Int: v}
}
