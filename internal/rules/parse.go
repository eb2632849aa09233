package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Rule is one compiled substitution.
type Rule interface {
	Apply(input string) (output string, changed bool)
}

// RuleParser parses one line into a compiled rule.
type RuleParser interface {
	CanParse(line string) bool
	Parse(line string) (Rule, error)
}

// DefaultParsers recognizes sed-style regex rules and "from => to" phrase
// rules, in that order.
func DefaultParsers() []RuleParser {
	return []RuleParser{substituteParser{}, phraseParser{}}
}

// ParseRules compiles a rules document. Blank lines and lines starting with
// '#' are skipped.
func ParseRules(contents string, parsers []RuleParser) ([]Rule, error) {
	lines := strings.Split(contents, "\n")
	compiled := make([]Rule, 0, len(lines))

	for index, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseLine(line, parsers)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		compiled = append(compiled, rule)
	}
	return compiled, nil
}

func parseLine(line string, parsers []RuleParser) (Rule, error) {
	for _, parser := range parsers {
		if parser.CanParse(line) {
			return parser.Parse(line)
		}
	}
	return nil, errors.New("unsupported rule format")
}

type phraseParser struct{}

func (phraseParser) CanParse(line string) bool { return strings.Contains(line, "=>") }

func (phraseParser) Parse(line string) (Rule, error) { return parsePhraseRule(line) }

// phraseRule replaces a literal phrase, case-insensitively, everywhere.
type phraseRule struct {
	re          *regexp.Regexp
	replacement string
}

func parsePhraseRule(line string) (Rule, error) {
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid phrase rule")
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return nil, errors.New("phrase rule source cannot be empty")
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid phrase source: %w", err)
	}
	return phraseRule{re: re, replacement: to}, nil
}

func (r phraseRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type substituteParser struct{}

func (substituteParser) CanParse(line string) bool { return looksLikeSubstitution(line) }

func (substituteParser) Parse(line string) (Rule, error) { return parseSubstitution(line) }

// substitution is a sed-style s/pattern/replacement/flags rule.
type substitution struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

type substitutionFlags struct {
	ignoreCase bool
	global     bool
	multiLine  bool
	dotAll     bool
}

func (f substitutionFlags) prefix() string {
	var b strings.Builder
	if f.ignoreCase {
		b.WriteByte('i')
	}
	if f.multiLine {
		b.WriteByte('m')
	}
	if f.dotAll {
		b.WriteByte('s')
	}
	if b.Len() == 0 {
		return ""
	}
	return "(?" + b.String() + ")"
}

func parseSubstitutionFlags(raw string) (substitutionFlags, error) {
	// Rules match case-insensitively unless stated otherwise.
	flags := substitutionFlags{ignoreCase: true}
	for _, flag := range raw {
		switch flag {
		case 'i':
			flags.ignoreCase = true
		case 'g':
			flags.global = true
		case 'm':
			flags.multiLine = true
		case 's':
			flags.dotAll = true
		case ' ':
		default:
			return substitutionFlags{}, fmt.Errorf("unsupported regex flag %q", flag)
		}
	}
	return flags, nil
}

func parseSubstitution(line string) (Rule, error) {
	if len(line) < 2 {
		return nil, errors.New("invalid regex rule")
	}
	delim := line[1]
	if isWordOrSpace(delim) {
		return nil, errors.New("regex delimiter must be non-alphanumeric")
	}

	pattern, pos, err := readDelimited(line, 2, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, delim)
	if err != nil {
		return nil, fmt.Errorf("invalid regex replacement: %w", err)
	}
	flags, err := parseSubstitutionFlags(strings.TrimSpace(line[pos:]))
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile(flags.prefix() + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex: %w", err)
	}
	return substitution{re: re, replacement: replacement, global: flags.global}, nil
}

func (r substitution) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

// readDelimited reads up to the next unescaped delim starting at start and
// returns the text and the index just past the delimiter.
func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var b strings.Builder
	escaped := false
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
			b.WriteByte(c)
		case c == delim:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func isWordOrSpace(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == ' ' || c == '\t'
}

func looksLikeSubstitution(line string) bool {
	return len(line) > 1 && line[0] == 's' && !isWordOrSpace(line[1])
}
