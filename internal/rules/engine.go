// Package rules applies deterministic text substitutions loaded from a
// rules file. Rules run in file order, repeatedly, until the text stops
// changing or the loop limit is reached.
package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

const DefaultLoopLimit = 30

// Engine applies the rules of one file. It is safe for concurrent use and
// can be reloaded in place.
type Engine struct {
	path      string
	loopLimit int
	parsers   []RuleParser

	mu    sync.RWMutex
	rules []Rule
}

// NewEngine loads rules from path with the built-in parsers. An empty path
// or a missing file yields an engine that returns text unchanged.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	return NewEngineWithParsers(path, loopLimit, DefaultParsers())
}

// NewEngineWithParsers allows parser extension without engine changes.
func NewEngineWithParsers(path string, loopLimit int, parsers []RuleParser) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = DefaultLoopLimit
	}
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}

	e := &Engine{path: strings.TrimSpace(path), loopLimit: loopLimit, parsers: parsers}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Path is the rules file backing the engine.
func (e *Engine) Path() string { return e.path }

// Len reports the number of loaded rules.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Reload re-reads the rules file. On error the previous rules stay active.
func (e *Engine) Reload() error {
	if e.path == "" {
		return nil
	}

	contents, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		e.swap(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read rules file %q: %w", e.path, err)
	}

	parsed, err := ParseRules(string(contents), e.parsers)
	if err != nil {
		return fmt.Errorf("failed to parse rules file %q: %w", e.path, err)
	}
	e.swap(parsed)
	return nil
}

func (e *Engine) swap(next []Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = next
}

// Apply transforms text deterministically.
func (e *Engine) Apply(text string) (string, error) {
	e.mu.RLock()
	active := e.rules
	e.mu.RUnlock()

	result := text
	for i := 0; i < e.loopLimit && len(active) > 0; i++ {
		changed := false
		for _, rule := range active {
			if next, ok := rule.Apply(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result, nil
}
