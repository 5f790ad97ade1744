package network

import (
	"errors"
	"testing"

	"github.com/wfunc/runeserver/errs"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		code string
		args []string
	}{
		{"PING", "PING", nil},
		{"PING$", "PING", nil},
		{"PING$\r\n", "PING", nil},
		{"RGST$alice", "RGST", []string{"alice"}},
		{"CHTP$alice$bob$hi there", "CHTP", []string{"alice", "bob", "hi there"}},
		{"LSTP$LOBBY$den", "LSTP", []string{"LOBBY", "den"}},
	}
	for _, tc := range cases {
		cmd := Parse(tc.line)
		if cmd.Code != tc.code {
			t.Errorf("%q: expected code %s, got %s", tc.line, tc.code, cmd.Code)
		}
		if len(cmd.Args) != len(tc.args) {
			t.Fatalf("%q: expected %d args, got %d (%v)", tc.line, len(tc.args), len(cmd.Args), cmd.Args)
		}
		for i := range tc.args {
			if cmd.Args[i] != tc.args[i] {
				t.Errorf("%q: arg %d expected %q, got %q", tc.line, i, tc.args[i], cmd.Args[i])
			}
		}
	}
}

func TestCommand_String(t *testing.T) {
	if got := NewCommand(CodePing).String(); got != "PING$" {
		t.Errorf("Expected PING$, got %s", got)
	}
	if got := NewCommand(CodeChatAll, "bob", "a$b\nc").String(); got != "CHTG$bob$ab c" {
		t.Errorf("Expected sanitized chat line, got %s", got)
	}
	line := NewCommand(CodeCreate, "den", "2").String()
	back := Parse(line)
	if back.Code != CodeCreate || back.Arg(0) != "den" || back.Arg(1) != "2" {
		t.Errorf("round trip lost data: %+v", back)
	}
}

func TestValidate_UnknownCodes(t *testing.T) {
	for _, code := range []string{"", "XXXX", "ping", "PIN", "PINGS", "ABCD", "OKAY"} {
		if NewCommand(code).Valid() {
			t.Errorf("code %q outside the enumeration must be invalid", code)
		}
	}
}

func TestValidate_ReservedBypass(t *testing.T) {
	for _, cmd := range []Command{
		NewCommand(CodeOK),
		NewCommand(CodeOK, "RGST", "a", "b", "c", "d", "e"),
		NewCommand(CodeErr, "100"),
		NewCommand(CodeTest, "x"),
	} {
		if !cmd.Valid() {
			t.Errorf("reserved command %v should always be valid", cmd)
		}
	}
}

func TestValidate_ExactArity(t *testing.T) {
	for code, want := range arity {
		for n := 0; n <= 5; n++ {
			args := make([]string, n)
			for i := range args {
				args[i] = "x"
			}
			got := NewCommand(code, args...).Valid()
			if got != (n == want) {
				t.Errorf("%s with %d args: valid=%v, expected arity %d", code, n, got, want)
			}
		}
	}
}

func TestValidate_VariadicListPlayers(t *testing.T) {
	valid := []Command{
		NewCommand(CodeListPlrs, ListModeServer),
		NewCommand(CodeListPlrs, ListModeGame),
		NewCommand(CodeListPlrs, ListModeLobby, "den"),
	}
	for _, cmd := range valid {
		if !cmd.Valid() {
			t.Errorf("%v should be valid", cmd)
		}
	}
	invalid := []Command{
		NewCommand(CodeListPlrs),
		NewCommand(CodeListPlrs, ListModeServer, "extra"),
		NewCommand(CodeListPlrs, ListModeLobby),
		NewCommand(CodeListPlrs, "GALAXY"),
	}
	for _, cmd := range invalid {
		err := cmd.Validate()
		if err == nil {
			t.Errorf("%v should be invalid", cmd)
			continue
		}
		if !errors.Is(err, errs.ErrInvalidCommand) {
			t.Errorf("%v: expected INVALID_COMMAND, got %v", cmd, err)
		}
	}
}

func TestErr_Format(t *testing.T) {
	cmd := Err(errs.WithDetail(errs.ErrInsufficientRunes, "need 10"))
	if got := cmd.String(); got != "ERR$301$INSUFFICIENT_RUNES$need 10" {
		t.Errorf("unexpected error line %s", got)
	}
	if got := Err(errs.ErrLobbyFull).String(); got != "ERR$201$LOBBY_FULL" {
		t.Errorf("unexpected error line %s", got)
	}
}

func TestOK_Echo(t *testing.T) {
	cmd := OK(NewCommand(CodeRegister, "bob"), "bob1")
	if got := cmd.String(); got != "OK$RGST$bob$bob1" {
		t.Errorf("unexpected ok line %s", got)
	}
}
