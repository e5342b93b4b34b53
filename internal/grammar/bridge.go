package grammar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/scangate/internal/errs"
)

// bridgeAllowedPattern is the looser grammar a bridged payload token must
// satisfy once restored, per the Hydra/Sqlmap placeholder-substitution
// bridge: it may legally contain "^ & : / = @ % ? ," in addition to the
// universal token alphabet, but never a universally forbidden character.
var bridgeAllowedPattern = regexp.MustCompile(`^[A-Za-z0-9._/:\-,=@%^&?]+$`)

const bridgePlaceholderPrefix = "__BRIDGE_PLACEHOLDER_"

// Bridge hides the whitespace-delimited token immediately following any of
// markerWords behind an opaque placeholder, so that the universal
// forbidden-character scan (which runs on the whole string before
// tokenization) does not reject legitimate payloads such as HTTP-form
// bodies or URL query strings. It returns the rewritten extra_args string
// and a restore function to apply after tokenization.
func Bridge(extraArgs string, markerWords ...string) (rewritten string, restore func(tokens []string) ([]string, *errs.Context)) {
	fields := strings.Fields(extraArgs)
	originals := map[string]string{}
	n := 0

	for i := 0; i < len(fields); i++ {
		for _, marker := range markerWords {
			if fields[i] == marker && i+1 < len(fields) {
				placeholder := fmt.Sprintf("%s%d__", bridgePlaceholderPrefix, n)
				originals[placeholder] = fields[i+1]
				fields[i+1] = placeholder
				n++
			}
		}
	}

	return strings.Join(fields, " "), func(tokens []string) ([]string, *errs.Context) {
		out := make([]string, len(tokens))
		for i, tok := range tokens {
			orig, bridged := originals[tok]
			if !bridged {
				out[i] = tok
				continue
			}
			if !bridgeAllowedPattern.MatchString(orig) {
				return nil, errs.New(errs.KindValidationError, "bridged payload token failed validation").
					WithMeta("token", orig)
			}
			out[i] = orig
		}
		return out, nil
	}
}

// BridgeTokenize is the Hydra/Sqlmap tokenizer: it runs the length check,
// hides marker-adjacent payload tokens behind placeholders, tokenizes the
// placeholder-safe string with the universal forbidden-character scan and
// shell-style splitting, then restores the original payload tokens once
// validated against the bridge's looser per-character rule.
func BridgeTokenize(extraArgs string, maxArgsLen int, markerWords ...string) ([]string, *errs.Context) {
	if maxArgsLen <= 0 {
		maxArgsLen = MaxArgsLen
	}
	if len(extraArgs) > maxArgsLen {
		return nil, errs.New(errs.KindValidationError, "extra_args exceeds maximum length").
			WithHint(errs.Hint("args_too_long")).
			WithMeta("max_len", maxArgsLen).WithMeta("actual_len", len(extraArgs))
	}

	rewritten, restore := Bridge(extraArgs, markerWords...)

	tokens, ec := Tokenize(rewritten, maxArgsLen)
	if ec != nil {
		return nil, ec
	}

	return restore(tokens)
}
