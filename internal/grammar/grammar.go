// Package grammar implements the per-tool argument grammar and validation
// described by the execution engine's policy layer: turning a free-form
// extra_args string and a target into a vetted argv, or a precise
// validation error.
package grammar

import (
	"strings"

	"github.com/nextlevelbuilder/scangate/internal/errs"
)

// Grammar validates a target and a tokenized extra_args vector for one
// specific tool, returning the complete argv to place after the binary
// name. Target placement is the grammar's job: nmap and masscan take the
// target as the trailing positional argument, gobuster injects it under
// -u/-d, hydra splits it into host and service, and sqlmap carries it in
// the -u URL.
type Grammar interface {
	// Name is the tool name this grammar applies to (e.g. "nmap").
	Name() string
	// Validate checks target against the tool's target policy and
	// extra_args tokens against the tool's flag grammar, injects any
	// missing defaults, and returns the final argv or a validation error.
	Validate(target string, tokens []string, allowIntrusive bool) ([]string, *errs.Context)
}

// FlagSet describes which flags a tool accepts and which of those consume
// a following value token.
type FlagSet struct {
	Allowed      map[string]bool
	RequireValue map[string]bool
}

// NewFlagSet builds a FlagSet from an allow-listed flag slice and a
// requires-a-value flag slice (which must be a subset of allowed, plus any
// known aliases).
func NewFlagSet(allowed []string, requireValue []string) FlagSet {
	fs := FlagSet{Allowed: make(map[string]bool, len(allowed)), RequireValue: make(map[string]bool, len(requireValue))}
	for _, f := range allowed {
		fs.Allowed[f] = true
	}
	for _, f := range requireValue {
		fs.RequireValue[f] = true
	}
	return fs
}

// IsFlag reports whether a token looks like a flag (starts with "-").
func IsFlag(token string) bool {
	return strings.HasPrefix(token, "-")
}

// classification is the outcome of classifying one token against a FlagSet.
type classification int

const (
	classUnknown classification = iota
	classFlag
	classFlagValue
)

// Classify walks tokens left to right, invoking onFlag for every
// allow-listed flag, onValue for every token consumed as that flag's
// value, and returning the first token that is neither — the literal
// "this is the single most important rule for safety" rejection from the
// spec. Tokens satisfying isLiteral (e.g. a tool-specific mode name) are
// treated as accepted non-flag literals instead of causing rejection.
func Classify(tokens []string, fs FlagSet, isLiteral func(string) bool) (flags []string, literals []string, rejected string, ok bool) {
	i := 0
	for i < len(tokens) {
		tok := tokens[i]
		if fs.Allowed[tok] {
			flags = append(flags, tok)
			if fs.RequireValue[tok] && i+1 < len(tokens) {
				flags = append(flags, tokens[i+1])
				i += 2
				continue
			}
			i++
			continue
		}
		if isLiteral != nil && isLiteral(tok) {
			literals = append(literals, tok)
			i++
			continue
		}
		return flags, literals, tok, false
	}
	return flags, literals, "", true
}

// FindFlagValue returns the value token immediately following the first
// occurrence of any of names in tokens, and whether it was found.
func FindFlagValue(tokens []string, names ...string) (string, bool) {
	for i, tok := range tokens {
		for _, name := range names {
			if tok == name && i+1 < len(tokens) {
				return tokens[i+1], true
			}
		}
	}
	return "", false
}

// HasFlag reports whether any of names appears in tokens.
func HasFlag(tokens []string, names ...string) bool {
	for _, tok := range tokens {
		for _, name := range names {
			if tok == name {
				return true
			}
		}
	}
	return false
}

// RemoveFlagAndValue returns tokens with the first occurrence of flag (and
// its following value, if consumesValue) removed.
func RemoveFlagAndValue(tokens []string, flag string, consumesValue bool) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if tokens[i] == flag {
			if consumesValue && i+1 < len(tokens) {
				i++
			}
			continue
		}
		out = append(out, tokens[i])
	}
	return out
}

// registry of tool grammars, populated by each tool's init().
var registry = map[string]Grammar{}

// Register adds a Grammar to the package-level lookup table used by
// Validate. Tool files call this from init().
func Register(g Grammar) {
	registry[g.Name()] = g
}

// Lookup returns the Grammar for a tool name, if registered.
func Lookup(name string) (Grammar, bool) {
	g, ok := registry[name]
	return g, ok
}

// Tokenizer lets a tool grammar override the default tokenization step —
// used by Hydra and Sqlmap, whose payload/URL values legally contain
// characters from the universal forbidden set and must run through the
// placeholder-substitution bridge before the forbidden-character scan.
type Tokenizer interface {
	Tokenize(extraArgs string, maxArgsLen int) ([]string, *errs.Context)
}

// Validate tokenizes extraArgs and dispatches to the named tool's Grammar.
// maxArgsLen is the configured extra_args length cap (0 uses the default).
func Validate(tool, target, extraArgs string, allowIntrusive bool, maxArgsLen int) ([]string, *errs.Context) {
	g, ok := registry[tool]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "unknown tool: "+tool).WithTool(tool)
	}

	var tokens []string
	var ec *errs.Context
	if t, ok := g.(Tokenizer); ok {
		tokens, ec = t.Tokenize(extraArgs, maxArgsLen)
	} else {
		tokens, ec = Tokenize(extraArgs, maxArgsLen)
	}
	if ec != nil {
		return nil, ec.WithTool(tool).WithTarget(target)
	}

	argv, ec := g.Validate(target, tokens, allowIntrusive)
	if ec != nil {
		return nil, ec.WithTool(tool).WithTarget(target)
	}
	return argv, nil
}
