package keys

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// UnrecognizedKeyError reports a hotkey token that maps to no known key.
type UnrecognizedKeyError struct {
	Token string
}

func (e *UnrecognizedKeyError) Error() string {
	return fmt.Sprintf("unrecognized key %q", e.Token)
}

var aliases = map[string]Key{
	"<ctrl>":  CtrlL,
	"<shift>": ShiftL,
	"<alt>":   AltL,
	"<cmd>":   CmdL,
	"<space>": Space,
	"space":   Space,
	"cmd_r":   CmdR,
}

// Parse turns a descriptor such as "<ctrl>+<shift>+space" into a key set.
//
// Unknown tokens are skipped; the returned error joins one
// *UnrecognizedKeyError per skipped token while the set still holds every
// token that did resolve.
func Parse(hotkey string) (Set, error) {
	tokens := strings.Fields(strings.ReplaceAll(strings.ToLower(hotkey), "+", " "))

	resolved := make([]Key, 0, len(tokens))
	var errs []error
	for _, token := range tokens {
		k, err := parseToken(token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resolved = append(resolved, k)
	}
	return NewSet(resolved...), errors.Join(errs...)
}

func parseToken(token string) (Key, error) {
	if k, ok := aliases[token]; ok {
		return k, nil
	}
	if utf8.RuneCountInString(token) == 1 {
		r, _ := utf8.DecodeRuneInString(token)
		if unicode.IsPrint(r) {
			return Char(r), nil
		}
	}
	if k, ok := Lookup(token); ok {
		return k, nil
	}
	return "", &UnrecognizedKeyError{Token: token}
}
