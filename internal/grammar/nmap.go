package grammar

import (
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/scangate/internal/errs"
	"github.com/nextlevelbuilder/scangate/internal/policy"
)

func init() {
	Register(&nmapGrammar{})
}

var nmapFlags = NewFlagSet(
	[]string{
		"-sV", "-sC", "-p", "--top-ports", "-Pn", "-O", "--script",
		"-oX", "-oN", "-oG", "--max-parallelism", "-T0", "-T1", "-T2", "-T3", "-T4", "-T5",
		"--min-rate", "--max-rate", "--max-retries", "--host-timeout", "-f", "--mtu", "-A",
	},
	[]string{"-p", "--top-ports", "-oX", "-oN", "-oG", "--max-parallelism", "--min-rate", "--max-rate", "--max-retries", "--host-timeout", "--mtu", "--script"},
)

var nmapSafeScriptCategories = map[string]bool{"safe": true, "default": true, "discovery": true}
var nmapSafeScripts = map[string]bool{"banner": true, "http-headers": true, "ssl-cert": true, "http-title": true}
var nmapIntrusiveCategories = map[string]bool{"intrusive": true, "vuln": true, "brute": true, "dos": true, "exploit": true}
var nmapIntrusiveScripts = map[string]bool{"http-vuln-*": true, "smb-vuln-*": true, "dns-brute": true}

type nmapGrammar struct{}

func (nmapGrammar) Name() string { return "nmap" }

func (nmapGrammar) Validate(target string, tokens []string, allowIntrusive bool) ([]string, *errs.Context) {
	if ec := validateNmapTarget(target); ec != nil {
		return nil, ec
	}

	flags, _, rejected, ok := Classify(tokens, nmapFlags, nil)
	if !ok {
		return nil, errs.New(errs.KindValidationError, "unrecognized token in extra_args").
			WithHint(errs.Hint("unknown_token")).WithMeta("token", rejected)
	}

	if HasFlag(flags, "-A") && !allowIntrusive {
		flags = RemoveFlagAndValue(flags, "-A", false)
		slog.Warn("nmap.aggressive_blocked", "reason", "allow_intrusive disabled")
	}

	if v, ok := FindFlagValue(flags, "-p"); ok {
		if ec := validateNmapPorts(v); ec != nil {
			return nil, ec
		}
	}

	if v, ok := FindFlagValue(flags, "--script"); ok {
		filtered, ec := filterNmapScripts(v, allowIntrusive)
		if ec != nil {
			return nil, ec
		}
		flags = replaceFlagValue(flags, "--script", filtered)
	}

	if !hasAnyTSpeed(flags) {
		flags = append(flags, "-T4")
	}
	if !HasFlag(flags, "--max-parallelism") {
		flags = append(flags, "--max-parallelism", "10")
	}
	if !HasFlag(flags, "-Pn") {
		flags = append(flags, "-Pn")
	}
	if !HasFlag(flags, "--top-ports") && !HasFlag(flags, "-p") {
		flags = append(flags, "--top-ports", "1000")
	}

	return append(flags, target), nil
}

func hasAnyTSpeed(flags []string) bool {
	for _, f := range flags {
		if len(f) == 3 && strings.HasPrefix(f, "-T") {
			return true
		}
	}
	return false
}

func validateNmapTarget(target string) *errs.Context {
	if ip := net.ParseIP(target); ip != nil {
		if policy.IsAllowedIP(ip) {
			return nil
		}
		return errs.New(errs.KindValidationError, "target is not a private address").WithHint(errs.Hint("not_private"))
	}

	if ip, ipnet, err := net.ParseCIDR(target); err == nil {
		if !policy.IsAllowedIP(ip) {
			return errs.New(errs.KindValidationError, "target CIDR is not a private network").WithHint(errs.Hint("not_private"))
		}
		ones, _ := ipnet.Mask.Size()
		if ones < 22 {
			suggested := strings.Split(target, "/")[0] + "/22"
			return errs.New(errs.KindValidationError, "CIDR is larger than the maximum /22").
				WithHint(errs.Hint("cidr_too_large")).WithMeta("suggested_cidr", suggested)
		}
		return nil
	}

	if policy.IsAllowedHost(target) {
		return nil
	}

	return errs.New(errs.KindValidationError, "target must be RFC1918, loopback, CIDR <= /22, or *.lab.internal").
		WithHint(errs.Hint("not_private"))
}

func validateNmapPorts(spec string) *errs.Context {
	segments := strings.Split(spec, ",")
	if len(segments) > 100 {
		return errs.New(errs.KindValidationError, "too many port segments (max 100)")
	}
	for _, seg := range segments {
		if seg == "" {
			return errs.New(errs.KindValidationError, "empty port segment")
		}
		if strings.Contains(seg, "-") {
			parts := strings.SplitN(seg, "-", 2)
			lo, err1 := strconv.Atoi(parts[0])
			hi, err2 := strconv.Atoi(parts[1])
			if err1 != nil || err2 != nil || lo < 1 || hi > 65535 || lo > hi {
				return errs.New(errs.KindValidationError, "invalid port range: "+seg)
			}
			continue
		}
		p, err := strconv.Atoi(seg)
		if err != nil || p < 1 || p > 65535 {
			return errs.New(errs.KindValidationError, "invalid port: "+seg)
		}
	}
	return nil
}

func filterNmapScripts(spec string, allowIntrusive bool) (string, *errs.Context) {
	items := strings.Split(spec, ",")
	var kept []string
	for _, item := range items {
		intrusive := nmapIntrusiveCategories[item] || nmapIntrusiveScripts[item] || matchesWildcard(item, nmapIntrusiveScripts)
		safe := nmapSafeCategories(item) || nmapSafeScripts[item]
		switch {
		case intrusive && allowIntrusive:
			kept = append(kept, item)
		case intrusive:
			slog.Warn("nmap.intrusive_script_blocked", "script", item)
			continue
		case safe:
			kept = append(kept, item)
		default:
			// unknown script: filtered out
			continue
		}
	}
	if len(kept) == 0 {
		return "", errs.New(errs.KindValidationError, "--script filtered to an empty list").
			WithHint("Use a recognized safe script or category, or enable allow_intrusive")
	}
	return strings.Join(kept, ","), nil
}

func nmapSafeCategories(item string) bool {
	return nmapSafeScriptCategories[item]
}

func matchesWildcard(item string, set map[string]bool) bool {
	for pattern := range set {
		if strings.HasSuffix(pattern, "*") && strings.HasPrefix(item, strings.TrimSuffix(pattern, "*")) {
			return true
		}
	}
	return false
}

// replaceFlagValue swaps the value token following flag with newValue.
func replaceFlagValue(tokens []string, flag, newValue string) []string {
	out := make([]string, len(tokens))
	copy(out, tokens)
	for i, tok := range out {
		if tok == flag && i+1 < len(out) {
			out[i+1] = newValue
			break
		}
	}
	return out
}
