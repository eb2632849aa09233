package keys

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input string
		want []Key
	}{
		{input: "<ctrl>+<shift>+space", want: []Key{CtrlL, ShiftL, Space}},
		{input: "<CTRL> + <Shift> + <space>", want: []Key{CtrlL, ShiftL, Space}},
		{input: "<ctrl> <shift> q", want: []Key{CtrlL, ShiftL, Char('q')}},
		{input: "cmd_r", want: []Key{CmdR}},
		{input: "<cmd>+c", want: []Key{CmdL, Char('c')}},
		{input: "<alt>+f5", want: []Key{AltL, Key("f5")}},
		{input: "shift_r+enter", want: []Key{ShiftR, Enter}},
		{input: "ctrl+A", want: []Key{CtrlL, Char('a')}},
		{input: "<ctrl>+<ctrl>+x", want: []Key{CtrlL, Char('x')}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := NewSet(tc.want...)
			if got.String() != want.String() {
				t.Fatalf("unexpected set: got %s want %s", got, want)
			}
		})
	}
}

func TestParseSkipsUnknownTokens(t *testing.T) {
	t.Parallel()

	got, err := Parse("<ctrl>+hyper+space+<meta>")
	if err == nil {
		t.Fatalf("expected unrecognized key error")
	}

	var unknown *UnrecognizedKeyError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnrecognizedKeyError, got %T", err)
	}
	if unknown.Token != "hyper" {
		t.Fatalf("unexpected first token: %q", unknown.Token)
	}

	if got.String() != NewSet(CtrlL, Space).String() {
		t.Fatalf("expected resolved tokens to survive, got %s", got)
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	got, err := Parse("  +  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("expected empty set, got %s", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[Key]Key{
		CtrlR:       CtrlL,
		ShiftR:      ShiftL,
		AltR:        AltL,
		CmdR:        CmdL,
		CtrlL:       CtrlL,
		Char('r'):   Char('r'),
		Key("up"):   Up,
		Key("xy_r"): Key("xy_r"),
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestSetContainsAndSubset(t *testing.T) {
	t.Parallel()

	set := NewSet(Space, CtrlL, ShiftL)
	if !set.Contains(CtrlL) || set.Contains(AltL) {
		t.Fatalf("unexpected membership for %s", set)
	}

	held := map[Key]struct{}{CtrlL: {}, ShiftL: {}}
	if set.SubsetOf(held) {
		t.Fatalf("proper subset must not satisfy the set")
	}
	held[Space] = struct{}{}
	held[Char('x')] = struct{}{}
	if !set.SubsetOf(held) {
		t.Fatalf("superset must satisfy the set")
	}
}

func TestLookupGenericModifiers(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Key{"ctrl": CtrlL, "shift": ShiftL, "alt": AltL, "cmd": CmdL, "F12": Key("f12")} {
		got, ok := Lookup(name)
		if !ok || got != want {
			t.Fatalf("Lookup(%q) = %s, %v", name, got, ok)
		}
	}
	if _, ok := Lookup("hyper"); ok {
		t.Fatalf("expected unknown key")
	}
}
