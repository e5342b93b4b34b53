package grammar

import (
	"bufio"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/scangate/internal/errs"
	"github.com/nextlevelbuilder/scangate/internal/policy"
)

func init() {
	Register(&gobusterGrammar{})
}

// gobusterMode describes one of the three supported modes: which flag the
// target is injected under, the thread ceiling and default, and the
// mode-specific default flags appended when absent.
type gobusterMode struct {
	targetFlag     string
	maxThreads     int
	defaultThreads string
	defaults       []string
}

var gobusterModes = map[string]gobusterMode{
	"dir":   {targetFlag: "-u", maxThreads: 30, defaultThreads: "10", defaults: []string{"-s", "200,204,301,302,307,401,403"}},
	"dns":   {targetFlag: "-d", maxThreads: 50, defaultThreads: "20", defaults: []string{"--wildcard"}},
	"vhost": {targetFlag: "-u", maxThreads: 20, defaultThreads: "10", defaults: []string{"--append-domain"}},
}

var gobusterFlags = NewFlagSet(
	[]string{
		"-u", "-d", "-w", "-t", "-x", "--timeout", "-k", "-q", "-z", "-n", "-e", "-r",
		"-o", "--wildcard", "--append-domain", "-s", "-b",
	},
	[]string{"-u", "-d", "-w", "-t", "-x", "--timeout", "-o", "-s", "-b"},
)

// gobusterWordlistRoots are the directories a wordlist path must live
// under, and the search path a relative wordlist is resolved against.
var gobusterWordlistRoots = []string{"/usr/share/wordlists", "/opt/wordlists"}

const (
	gobusterMaxWordlistBytes   = 50 << 20
	gobusterMaxWordlistEntries = 1_000_000
)

var gobusterExtensionPattern = regexp.MustCompile(`^[a-zA-Z0-9,]+$`)

// gobusterSafeExtensions is the extension set permitted without the
// intrusive policy flag.
var gobusterSafeExtensions = map[string]bool{
	"html": true, "htm": true, "php": true, "asp": true,
	"aspx": true, "txt": true, "xml": true, "json": true,
}

type gobusterGrammar struct{}

func (gobusterGrammar) Name() string { return "gobuster" }

func (gobusterGrammar) Validate(target string, tokens []string, allowIntrusive bool) ([]string, *errs.Context) {
	if len(tokens) == 0 || gobusterModes[tokens[0]].targetFlag == "" {
		return nil, errs.New(errs.KindValidationError, "gobuster requires a leading mode: dir, dns, or vhost")
	}
	modeName := tokens[0]
	mode := gobusterModes[modeName]

	if ec := validateGobusterTarget(modeName, target); ec != nil {
		return nil, ec
	}

	flags, literals, rejected, ok := Classify(tokens[1:], gobusterFlags, nil)
	if !ok {
		return nil, errs.New(errs.KindValidationError, "unrecognized token in extra_args").
			WithHint(errs.Hint("unknown_token")).WithMeta("token", rejected)
	}
	if len(literals) > 0 {
		return nil, errs.New(errs.KindValidationError, "gobuster accepts exactly one leading mode token")
	}

	if !HasFlag(flags, "-u", "-d") {
		flags = append([]string{mode.targetFlag, target}, flags...)
	}

	if wl, ok := FindFlagValue(flags, "-w"); ok {
		resolved, ec := validateWordlistPath(wl)
		if ec != nil {
			return nil, ec
		}
		if resolved != wl {
			flags = replaceFlagValue(flags, "-w", resolved)
		}
	}

	if t, ok := FindFlagValue(flags, "-t"); ok {
		threads, err := strconv.Atoi(t)
		if err != nil || threads < 1 || threads > mode.maxThreads {
			return nil, errs.New(errs.KindValidationError, "-t thread count out of range").
				WithMeta("max_threads", mode.maxThreads)
		}
	} else {
		flags = append(flags, "-t", mode.defaultThreads)
	}

	if ext, ok := FindFlagValue(flags, "-x"); ok {
		filtered, ec := filterGobusterExtensions(ext, allowIntrusive)
		if ec != nil {
			return nil, ec
		}
		if filtered == "" {
			flags = RemoveFlagAndValue(flags, "-x", true)
		} else if filtered != ext {
			flags = replaceFlagValue(flags, "-x", filtered)
		}
	}

	flags = appendModeDefaults(flags, mode.defaults)

	if !HasFlag(flags, "--timeout") {
		flags = append(flags, "--timeout", "10s")
	}
	if !HasFlag(flags, "-q") {
		flags = append(flags, "-q")
	}
	if !HasFlag(flags, "-z") {
		flags = append(flags, "-z")
	}

	return append([]string{modeName}, flags...), nil
}

// appendModeDefaults appends each default flag (with its value, when the
// flag takes one) that is not already present.
func appendModeDefaults(flags []string, defaults []string) []string {
	for i := 0; i < len(defaults); {
		flag := defaults[i]
		takesValue := gobusterFlags.RequireValue[flag]
		if !HasFlag(flags, flag) {
			if takesValue && i+1 < len(defaults) {
				flags = append(flags, flag, defaults[i+1])
			} else {
				flags = append(flags, flag)
			}
		}
		if takesValue {
			i += 2
		} else {
			i++
		}
	}
	return flags
}

func validateGobusterTarget(mode, target string) *errs.Context {
	if mode == "dns" {
		if policy.IsAllowedHost(target) {
			return nil
		}
		return errs.New(errs.KindValidationError, "dns mode target must be a *.lab.internal hostname").
			WithHint(errs.Hint("not_private"))
	}

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errs.New(errs.KindValidationError, mode+" mode target must be an http(s) URL")
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

// validateWordlistPath vets a -w path: no traversal, absolute paths must
// live under an allowed root, relative paths are resolved against the
// current directory and then the allowed roots. When the file exists its
// size and entry count are bounded as well. Returns the resolved path.
func validateWordlistPath(path string) (string, *errs.Context) {
	if strings.Contains(path, "..") {
		return "", errs.New(errs.KindValidationError, "wordlist path must not contain '..'")
	}

	resolved := filepath.Clean(path)
	if !filepath.IsAbs(resolved) {
		resolved = ""
		searchDirs := append([]string{"."}, gobusterWordlistRoots...)
		for _, dir := range searchDirs {
			candidate := filepath.Join(dir, path)
			if _, err := os.Stat(candidate); err == nil {
				resolved = candidate
				break
			}
		}
		if resolved == "" {
			return "", errs.New(errs.KindValidationError, "wordlist not found on the search path").
				WithMeta("search_path", gobusterWordlistRoots)
		}
	} else {
		allowed := false
		for _, root := range gobusterWordlistRoots {
			if resolved == root || strings.HasPrefix(resolved, root+"/") {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", errs.New(errs.KindValidationError, "wordlist path is outside the allowed wordlist directories").
				WithMeta("allowed_roots", gobusterWordlistRoots)
		}
	}

	if info, err := os.Stat(resolved); err == nil {
		if info.Size() > gobusterMaxWordlistBytes {
			return "", errs.New(errs.KindValidationError, "wordlist exceeds the 50 MiB size limit")
		}
		if ec := checkWordlistEntries(resolved); ec != nil {
			return "", ec
		}
	}
	return resolved, nil
}

func checkWordlistEntries(path string) *errs.Context {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		count++
		if count > gobusterMaxWordlistEntries {
			return errs.New(errs.KindValidationError, "wordlist exceeds the 1,000,000 entry limit")
		}
	}
	return nil
}

// filterGobusterExtensions validates an -x value and, without the intrusive
// policy flag, narrows it to the safe extension set.
func filterGobusterExtensions(ext string, allowIntrusive bool) (string, *errs.Context) {
	if !gobusterExtensionPattern.MatchString(ext) {
		return "", errs.New(errs.KindValidationError, "invalid -x extension list: "+ext)
	}
	if allowIntrusive {
		return ext, nil
	}
	var kept []string
	for _, e := range strings.Split(ext, ",") {
		if gobusterSafeExtensions[strings.ToLower(e)] {
			kept = append(kept, e)
		} else {
			slog.Warn("gobuster.extension_blocked", "extension", e)
		}
	}
	return strings.Join(kept, ","), nil
}
