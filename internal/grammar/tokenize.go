package grammar

import (
	"regexp"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/nextlevelbuilder/scangate/internal/errs"
)

// MaxArgsLen is the default cap on extra_args length in bytes; callers may
// override via config and pass a different limit to Tokenize.
const MaxArgsLen = 2048

// forbiddenChars is the universal metacharacter denylist: any of these
// appearing anywhere in extra_args fails validation before tokenization.
const forbiddenChars = ";&|`$><\n\r"

// tokenPattern is the default per-token grammar; tool grammars may apply a
// stricter or looser pattern to specific tokens (e.g. the placeholder
// bridge for Hydra/Sqlmap payloads).
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9.:/=+\-,@%_]+$`)

// Tokenize splits extra_args into a token vector after running the
// universal safety checks: length cap, forbidden characters, then
// whitespace/quote-aware splitting.
func Tokenize(extraArgs string, maxLen int) ([]string, *errs.Context) {
	if maxLen <= 0 {
		maxLen = MaxArgsLen
	}
	if len(extraArgs) > maxLen {
		return nil, errs.New(errs.KindValidationError, "extra_args exceeds maximum length").
			WithHint(errs.Hint("args_too_long")).
			WithMeta("max_len", maxLen).WithMeta("actual_len", len(extraArgs))
	}

	for i := 0; i < len(extraArgs); i++ {
		c := extraArgs[i]
		for j := 0; j < len(forbiddenChars); j++ {
			if c == forbiddenChars[j] {
				return nil, errs.New(errs.KindValidationError, "extra_args contains a forbidden character").
					WithHint(errs.Hint("forbidden_char")).
					WithMeta("character", string(c))
			}
		}
	}

	parser := shellwords.NewParser()
	tokens, err := parser.Parse(extraArgs)
	if err != nil {
		return nil, errs.New(errs.KindValidationError, "extra_args failed to tokenize: "+err.Error())
	}

	for _, tok := range tokens {
		if !tokenPattern.MatchString(tok) {
			return nil, errs.New(errs.KindValidationError, "token contains characters outside the permitted set").
				WithHint(errs.Hint("unknown_token")).WithMeta("token", tok)
		}
	}
	return tokens, nil
}

// MatchesTokenGrammar reports whether a token matches the default
// permitted-character pattern for non-exempt tokens.
func MatchesTokenGrammar(token string) bool {
	return tokenPattern.MatchString(token)
}
