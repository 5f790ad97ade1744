package network

import (
	"fmt"
	"strings"

	"github.com/wfunc/runeserver/errs"
)

// Delimiter separates the code and arguments of a line.
const Delimiter = "$"

// Command is one decoded protocol line.
type Command struct {
	Code string
	Args []string
}

func NewCommand(code string, args ...string) Command {
	return Command{Code: code, Args: args}
}

// OK acknowledges cmd by echoing it, optionally followed by extra fields.
func OK(cmd Command, extra ...string) Command {
	args := make([]string, 0, 1+len(cmd.Args)+len(extra))
	args = append(args, cmd.Code)
	args = append(args, cmd.Args...)
	args = append(args, extra...)
	return Command{Code: CodeOK, Args: args}
}

// Err renders err as ERR$<code>$<REASON>[$detail].
func Err(err error) Command {
	code := errs.CodeOf(err)
	args := []string{code.String(), code.Reason()}
	if detail := errs.DetailOf(err); detail != "" {
		args = append(args, detail)
	}
	return Command{Code: CodeErr, Args: args}
}

// Parse splits a line into a Command without validating it. A trailing "\r\n" is
// dropped; "CODE" and "CODE$" both decode to zero arguments.
func Parse(line string) Command {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, Delimiter)
	cmd := Command{Code: parts[0]}
	rest := parts[1:]
	if len(rest) == 1 && rest[0] == "" {
		rest = nil
	}
	if len(rest) > 0 {
		cmd.Args = rest
	}
	return cmd
}

// Decode parses and validates a line.
func Decode(line string) (Command, error) {
	cmd := Parse(line)
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// Valid reports whether the command may be dispatched.
func (c Command) Valid() bool {
	return c.Validate() == nil
}

// Validate returns an INVALID_COMMAND error describing why c cannot be dispatched.
func (c Command) Validate() error {
	if isReserved(c.Code) {
		return nil
	}
	if len(c.Code) != 4 {
		return errs.WithDetail(errs.ErrInvalidCommand, fmt.Sprintf("malformed code %q", c.Code))
	}
	if !Known(c.Code) {
		return errs.WithDetail(errs.ErrInvalidCommand, fmt.Sprintf("unknown code %s", c.Code))
	}
	want, ok := Arity(c.Code, c.Args)
	if !ok {
		return errs.WithDetail(errs.ErrInvalidCommand, fmt.Sprintf("unknown mode for %s", c.Code))
	}
	if len(c.Args) != want {
		return errs.WithDetail(errs.ErrInvalidCommand,
			fmt.Sprintf("%s expects %d arguments, got %d", c.Code, want, len(c.Args)))
	}
	return nil
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// String serializes the command without the trailing newline. Arguments are
// sanitized so a field can never break framing.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Code)
	b.WriteString(Delimiter)
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(Delimiter)
		}
		b.WriteString(Sanitize(a))
	}
	return b.String()
}

var sanitizer = strings.NewReplacer(Delimiter, "", "\n", " ", "\r", " ")

// Sanitize strips the delimiter and line breaks from free text such as chat messages.
func Sanitize(s string) string {
	return sanitizer.Replace(s)
}
