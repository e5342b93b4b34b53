package grammar

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/scangate/internal/errs"
	"github.com/nextlevelbuilder/scangate/internal/policy"
)

func init() {
	Register(&hydraGrammar{})
}

var hydraServices = map[string]bool{
	"ssh": true, "ftp": true, "ftps": true, "telnet": true,
	"http": true, "https": true, "http-get": true, "http-head": true,
	"smtp": true, "pop3": true, "imap": true, "smb": true,
	"mysql": true, "postgres": true, "rdp": true, "vnc": true,
}

// hydraFormFlags are the service-module tokens whose following positional
// token is a colon-delimited form payload, not a flag value, and therefore
// must go through the placeholder-substitution bridge rather than the
// universal forbidden-character scan.
var hydraFormFlags = []string{"http-post-form", "http-get-form", "http-head-form"}

var hydraFlags = NewFlagSet(
	[]string{
		"-l", "-L", "-p", "-P", "-s", "-t", "-w", "-W", "-f", "-V", "-e", "-o",
		"http-post-form", "http-get-form", "http-head-form",
	},
	[]string{
		"-l", "-L", "-p", "-P", "-s", "-t", "-w", "-W", "-e", "-o",
		"http-post-form", "http-get-form", "http-head-form",
	},
)

// Default login and password sources, injected when the
// allow_default_credentials policy toggle is on and the caller supplied
// none, so a default-credential sweep stays an explicit deployment opt-in.
var (
	hydraDefaultLogin    = []string{"-l", "admin"}
	hydraDefaultPassword = []string{"-P", "/usr/share/wordlists/common-passwords.txt"}
)

const hydraMaxTasks = 16

type hydraGrammar struct{}

func (hydraGrammar) Name() string { return "hydra" }

// Tokenize implements grammar.Tokenizer: it bridges the payload token that
// follows a form-module flag before running the shared forbidden-character
// scan, since legitimate form payloads contain '&', '^', and other
// universally forbidden or out-of-alphabet characters.
func (hydraGrammar) Tokenize(extraArgs string, maxArgsLen int) ([]string, *errs.Context) {
	return BridgeTokenize(extraArgs, maxArgsLen, hydraFormFlags...)
}

func (hydraGrammar) Validate(target string, tokens []string, allowIntrusive bool) ([]string, *errs.Context) {
	host, targetService, ec := splitHydraTarget(target)
	if ec != nil {
		return nil, ec
	}

	flags, literals, rejected, ok := Classify(tokens, hydraFlags, func(t string) bool { return hydraServices[t] })
	if !ok {
		return nil, errs.New(errs.KindValidationError, "unrecognized token in extra_args").
			WithHint(errs.Hint("unknown_token")).WithMeta("token", rejected)
	}
	if len(literals) > 1 {
		return nil, errs.New(errs.KindValidationError, "hydra accepts exactly one trailing service token")
	}

	service := targetService
	if len(literals) == 1 {
		service = literals[0]
	}
	if service == "" {
		return nil, errs.New(errs.KindValidationError, "hydra requires a service, either in the target or as the last token")
	}
	if !hydraServices[service] && !isHydraFormModule(service) {
		return nil, errs.New(errs.KindValidationError, "service is not allow-listed: "+service).
			WithMeta("service", service)
	}

	if s, ok := FindFlagValue(flags, "-s"); ok {
		p, err := strconv.Atoi(s)
		if err != nil || p < 1 || p > 65535 {
			return nil, errs.New(errs.KindValidationError, "invalid -s port: "+s)
		}
	}

	if t, ok := FindFlagValue(flags, "-t"); ok {
		n, err := strconv.Atoi(t)
		if err != nil || n < 1 {
			return nil, errs.New(errs.KindValidationError, "invalid -t task count: "+t)
		}
		if n > hydraMaxTasks {
			flags = replaceFlagValue(flags, "-t", strconv.Itoa(hydraMaxTasks))
		}
	} else {
		flags = append(flags, "-t", "4")
	}

	if !HasFlag(flags, "-l", "-L") {
		if !currentSettings().AllowDefaultCredentials {
			return nil, errs.New(errs.KindValidationError, "hydra requires -l or -L, and default credentials are disabled")
		}
		flags = append(flags, hydraDefaultLogin...)
	}
	if !HasFlag(flags, "-p", "-P") {
		if !currentSettings().AllowDefaultCredentials {
			return nil, errs.New(errs.KindValidationError, "hydra requires -p or -P, and default credentials are disabled")
		}
		flags = append(flags, hydraDefaultPassword...)
	}

	if !HasFlag(flags, "-w") {
		flags = append(flags, "-w", "2")
	}
	if !HasFlag(flags, "-W") {
		flags = append(flags, "-W", "5")
	}
	if !HasFlag(flags, "-f") {
		flags = append(flags, "-f")
	}
	if !HasFlag(flags, "-V") {
		flags = append(flags, "-V")
	}

	return append(flags, host, service), nil
}

// isHydraFormModule reports whether a service name is one of the HTTP form
// modules, which are admitted as services when the caller spells the module
// out in the target (e.g. http-post-form://host).
func isHydraFormModule(service string) bool {
	for _, m := range hydraFormFlags {
		if m == service {
			return true
		}
	}
	return false
}

// splitHydraTarget accepts the three target forms hydra itself takes:
// "host", "host:service", and "service://host[:port]". It returns the bare
// host (validated against the private-network policy) and the service name
// embedded in the target, if any.
func splitHydraTarget(target string) (host, service string, ec *errs.Context) {
	switch {
	case strings.Contains(target, "://"):
		u, err := url.Parse(target)
		if err != nil || u.Hostname() == "" {
			return "", "", errs.New(errs.KindValidationError, "invalid hydra target: "+target)
		}
		host = u.Hostname()
		service = u.Scheme
	case strings.Count(target, ":") == 1:
		parts := strings.SplitN(target, ":", 2)
		host = parts[0]
		service = parts[1]
	default:
		host = target
	}

	if ip := net.ParseIP(host); ip != nil {
		if !policy.IsAllowedIP(ip) {
			return "", "", errs.New(errs.KindValidationError, "target is not a private address").WithHint(errs.Hint("not_private"))
		}
		return host, service, nil
	}
	if policy.IsAllowedHost(host) {
		return host, service, nil
	}
	return "", "", errs.New(errs.KindValidationError, "target must be a private IP or *.lab.internal host").
		WithHint(errs.Hint("not_private"))
}
