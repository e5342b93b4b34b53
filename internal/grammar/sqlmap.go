package grammar

import (
	"log/slog"
	"net"
	"net/url"
	"strconv"

	"github.com/nextlevelbuilder/scangate/internal/errs"
	"github.com/nextlevelbuilder/scangate/internal/policy"
)

func init() {
	Register(&sqlmapGrammar{})
}

// sqlmapBridgeMarkers are the flags whose value is a URL or POST body that
// legitimately contains '&', '?', and other universally forbidden
// characters, and therefore must go through the placeholder bridge.
var sqlmapBridgeMarkers = []string{"-u", "--url", "--data", "--cookie"}

var sqlmapFlags = NewFlagSet(
	[]string{
		"-u", "--url", "--data", "--cookie", "--method", "--level", "--risk",
		"--batch", "--dbs", "--tables", "--columns", "--technique", "--time-sec",
		"--threads", "-p", "--random-agent", "--tamper", "--dump",
	},
	[]string{
		"-u", "--url", "--data", "--cookie", "--method", "--level", "--risk",
		"--technique", "--time-sec", "--threads", "-p", "--tamper",
	},
)

var sqlmapAllowedTampers = map[string]bool{"space2comment": true, "charencode": true, "between": true}

const (
	sqlmapMaxRisk    = 2
	sqlmapMaxLevel   = 3
	sqlmapMaxThreads = 5
)

type sqlmapGrammar struct{}

func (sqlmapGrammar) Name() string { return "sqlmap" }

// Tokenize implements grammar.Tokenizer, bridging URL/body/cookie values
// before the shared forbidden-character scan runs.
func (sqlmapGrammar) Tokenize(extraArgs string, maxArgsLen int) ([]string, *errs.Context) {
	return BridgeTokenize(extraArgs, maxArgsLen, sqlmapBridgeMarkers...)
}

func (sqlmapGrammar) Validate(target string, tokens []string, allowIntrusive bool) ([]string, *errs.Context) {
	flags, ec := classifySqlmap(tokens)
	if ec != nil {
		return nil, ec
	}

	u, hasURL := FindFlagValue(flags, "-u", "--url")
	if !hasURL {
		flags = append([]string{"-u", target}, flags...)
		u = target
	}
	if ec := validateSqlmapURL(u); ec != nil {
		return nil, ec
	}

	if lvl, ok := FindFlagValue(flags, "--level"); ok {
		flags, ec = clampIntFlag(flags, "--level", lvl, 1, sqlmapMaxLevel)
		if ec != nil {
			return nil, ec
		}
	}
	if risk, ok := FindFlagValue(flags, "--risk"); ok {
		flags, ec = clampIntFlag(flags, "--risk", risk, 1, sqlmapMaxRisk)
		if ec != nil {
			return nil, ec
		}
	}

	if th, ok := FindFlagValue(flags, "--threads"); ok {
		flags, ec = clampIntFlag(flags, "--threads", th, 1, sqlmapMaxThreads)
		if ec != nil {
			return nil, ec
		}
	} else {
		flags = append(flags, "--threads", strconv.Itoa(sqlmapMaxThreads))
	}

	if tamper, ok := FindFlagValue(flags, "--tamper"); ok {
		if !sqlmapAllowedTampers[tamper] {
			slog.Warn("sqlmap.tamper_skipped", "tamper", tamper)
			flags = RemoveFlagAndValue(flags, "--tamper", true)
		}
	}

	if !HasFlag(flags, "--batch") {
		flags = append(flags, "--batch")
	}
	if !HasFlag(flags, "--technique") {
		flags = append(flags, "--technique", "BEU")
	}
	if !HasFlag(flags, "--time-sec") {
		flags = append(flags, "--time-sec", "5")
	}

	return flags, nil
}

// classifySqlmap walks the token vector applying sqlmap's laxer flag rule:
// allow-listed flags are kept, unrecognized flags (and the value token that
// follows them, if any) are skipped with a warning, and any other non-flag
// token is rejected as potential injection.
func classifySqlmap(tokens []string) ([]string, *errs.Context) {
	var flags []string
	for i := 0; i < len(tokens); {
		tok := tokens[i]
		if sqlmapFlags.Allowed[tok] {
			flags = append(flags, tok)
			if sqlmapFlags.RequireValue[tok] && i+1 < len(tokens) {
				flags = append(flags, tokens[i+1])
				i += 2
				continue
			}
			i++
			continue
		}
		if IsFlag(tok) {
			slog.Warn("sqlmap.flag_skipped", "flag", tok)
			i++
			if i < len(tokens) && !IsFlag(tokens[i]) {
				i++
			}
			continue
		}
		return nil, errs.New(errs.KindValidationError, "unrecognized token in extra_args").
			WithHint(errs.Hint("unknown_token")).WithMeta("token", tok)
	}
	return flags, nil
}

// clampIntFlag parses the value of flag and clamps it into [lo, hi],
// rewriting the token in place when out of range. Non-numeric values are a
// validation error.
func clampIntFlag(flags []string, flag, value string, lo, hi int) ([]string, *errs.Context) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return nil, errs.New(errs.KindValidationError, "invalid "+flag+" value: "+value)
	}
	clamped := n
	if clamped < lo {
		clamped = lo
	}
	if clamped > hi {
		clamped = hi
	}
	if clamped != n {
		slog.Warn("sqlmap.value_clamped", "flag", flag, "requested", n, "clamped", clamped)
		flags = replaceFlagValue(flags, flag, strconv.Itoa(clamped))
	}
	return flags, nil
}

func validateSqlmapURL(raw string) *errs.Context {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errs.New(errs.KindValidationError, "-u must be an http(s) URL: "+raw)
	}
	host := u.Hostname()

	if ip := net.ParseIP(host); ip != nil {
		if policy.IsAllowedIP(ip) {
			return nil
		}
		return errs.New(errs.KindValidationError, "target is not a private address").WithHint(errs.Hint("not_private"))
	}
	if policy.IsAllowedHost(host) {
		return nil
	}
	return errs.New(errs.KindValidationError, "target must resolve to a private IP or *.lab.internal host").
		WithHint(errs.Hint("not_private"))
}
