// Package keys defines abstract key identities and the hotkey descriptor
// grammar used to build key sets from configuration strings.
package keys

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Key identifies a logical key. Named keys use canonical names such as
// "ctrl_l" or "f5"; character keys are a single lower-case rune.
type Key string

// Named modifier and control keys.
const (
	AltL      Key = "alt_l"
	AltR      Key = "alt_r"
	AltGr     Key = "alt_gr"
	Backspace Key = "backspace"
	CapsLock  Key = "caps_lock"
	CmdL      Key = "cmd_l"
	CmdR      Key = "cmd_r"
	CtrlL     Key = "ctrl_l"
	CtrlR     Key = "ctrl_r"
	Delete    Key = "delete"
	Down      Key = "down"
	End       Key = "end"
	Enter     Key = "enter"
	Esc       Key = "esc"
	Home      Key = "home"
	Insert    Key = "insert"
	Left      Key = "left"
	Menu      Key = "menu"
	NumLock   Key = "num_lock"
	PageDown  Key = "page_down"
	PageUp    Key = "page_up"
	Pause     Key = "pause"
	PrintScr  Key = "print_screen"
	Right     Key = "right"
	ScrollLk  Key = "scroll_lock"
	ShiftL    Key = "shift_l"
	ShiftR    Key = "shift_r"
	Space     Key = "space"
	Tab       Key = "tab"
	Up        Key = "up"
)

// String returns the canonical name of the key.
func (k Key) String() string { return string(k) }

// IsChar reports whether k is a literal character key.
func (k Key) IsChar() bool {
	return utf8.RuneCountInString(string(k)) == 1
}

var named = buildNamedTable()

func buildNamedTable() map[string]Key {
	table := map[string]Key{}
	for _, k := range []Key{
		AltL, AltR, AltGr, Backspace, CapsLock, CmdL, CmdR, CtrlL, CtrlR,
		Delete, Down, End, Enter, Esc, Home, Insert, Left, Menu, NumLock,
		PageDown, PageUp, Pause, PrintScr, Right, ScrollLk, ShiftL, ShiftR,
		Space, Tab, Up,
	} {
		table[string(k)] = k
	}
	for i := 1; i <= 20; i++ {
		name := "f" + strconv.Itoa(i)
		table[name] = Key(name)
	}

	// Generic modifier names resolve to the left-hand key.
	table["alt"] = AltL
	table["ctrl"] = CtrlL
	table["shift"] = ShiftL
	table["cmd"] = CmdL
	table["return"] = Enter
	table["escape"] = Esc
	return table
}

// Lookup resolves a named key from the key table.
func Lookup(name string) (Key, bool) {
	k, ok := named[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Char returns the literal key for r.
func Char(r rune) Key {
	return Key(string(unicode.ToLower(r)))
}

// Normalize maps a right-hand key onto its left-hand counterpart when the
// table has one. Every other key is returned unchanged.
func Normalize(k Key) Key {
	name := string(k)
	if !strings.HasSuffix(name, "_r") {
		return k
	}
	if left, ok := named[strings.TrimSuffix(name, "_r")+"_l"]; ok {
		return left
	}
	return k
}

// Set is an immutable, sorted set of keys.
type Set struct {
	keys []Key
}

// NewSet builds a set from ks, dropping duplicates.
func NewSet(ks ...Key) Set {
	seen := make(map[Key]struct{}, len(ks))
	out := make([]Key, 0, len(ks))
	for _, k := range ks {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Set{keys: out}
}

// Len returns the number of keys in the set.
func (s Set) Len() int { return len(s.keys) }

// Keys returns a copy of the members in canonical order.
func (s Set) Keys() []Key {
	return append([]Key(nil), s.keys...)
}

// Contains reports whether k is a member.
func (s Set) Contains(k Key) bool {
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= k })
	return i < len(s.keys) && s.keys[i] == k
}

// SubsetOf reports whether every member of s is in held.
func (s Set) SubsetOf(held map[Key]struct{}) bool {
	for _, k := range s.keys {
		if _, ok := held[k]; !ok {
			return false
		}
	}
	return true
}

// String renders the set as "a+b+c" in canonical order.
func (s Set) String() string {
	parts := make([]string, len(s.keys))
	for i, k := range s.keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}
