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
	Register(&masscanGrammar{})
}

var masscanFlags = NewFlagSet(
	[]string{
		"-p", "--ports", "--rate", "--max-rate", "--wait", "--retries",
		"--banners", "-e", "--interface", "--source-ip", "--source-port",
		"--router-ip", "--router-mac", "--exclude", "--excludefile",
		"-oG", "-oJ", "-oX", "-oL",
	},
	[]string{
		"-p", "--ports", "--rate", "--max-rate", "--wait", "--retries",
		"-e", "--interface", "--source-ip", "--source-port",
		"--router-ip", "--router-mac", "--exclude", "--excludefile",
		"-oG", "-oJ", "-oX", "-oL",
	},
)

// masscanWarnHosts is the sweep size past which a warning is logged;
// masscanMaxHosts (four /16s) is the hard ceiling for one invocation.
const (
	masscanWarnHosts = 1 << 16
	masscanMaxHosts  = 4 << 16
)

const (
	masscanMinRate          = 100
	masscanDefaultRate      = 1000
	masscanIntrusiveMaxRate = 100000
)

// masscanSafePorts is injected when the caller supplies no port spec; the
// intrusive extension widens it to services worth banner-grabbing.
const (
	masscanSafePorts           = "80,443,22,21,23,25,3306,3389,8080,8443"
	masscanIntrusiveExtraPorts = "110,111,135,139,143,445,993,995,1723,5900"
)

type masscanGrammar struct{}

func (masscanGrammar) Name() string { return "masscan" }

func (masscanGrammar) Validate(target string, tokens []string, allowIntrusive bool) ([]string, *errs.Context) {
	if ec := validateMasscanTarget(target); ec != nil {
		return nil, ec
	}

	flags, _, rejected, ok := Classify(tokens, masscanFlags, nil)
	if !ok {
		return nil, errs.New(errs.KindValidationError, "unrecognized token in extra_args").
			WithHint(errs.Hint("unknown_token")).WithMeta("token", rejected)
	}

	if HasFlag(flags, "--banners") && !allowIntrusive {
		flags = RemoveFlagAndValue(flags, "--banners", false)
		slog.Warn("masscan.banners_blocked", "reason", "allow_intrusive disabled")
	}

	if portSpec, ok := FindFlagValue(flags, "-p", "--ports"); ok {
		if ec := validateMasscanPorts(portSpec); ec != nil {
			return nil, ec
		}
	} else {
		ports := masscanSafePorts
		if allowIntrusive {
			ports += "," + masscanIntrusiveExtraPorts
		}
		flags = append(flags, "-p", ports)
	}

	maxRate := masscanRateCeiling()
	if allowIntrusive {
		maxRate = masscanIntrusiveMaxRate
	}
	if rate, ok := FindFlagValue(flags, "--rate", "--max-rate"); ok {
		clamped, ec := clampMasscanRate(rate, maxRate)
		if ec != nil {
			return nil, ec
		}
		if clamped != rate {
			slog.Warn("masscan.rate_clamped", "requested", rate, "clamped", clamped)
			flags = replaceFlagValue(flags, "--rate", clamped)
			flags = replaceFlagValue(flags, "--max-rate", clamped)
		}
	} else {
		flags = append(flags, "--rate", strconv.Itoa(masscanRateCeiling()))
	}

	if !HasFlag(flags, "--wait") {
		flags = append(flags, "--wait", masscanWaitDefault())
	}
	if !HasFlag(flags, "--retries") {
		flags = append(flags, "--retries", "1")
	}

	return append(flags, target), nil
}

func validateMasscanTarget(target string) *errs.Context {
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
		hosts := policy.CIDRHostCount(ones)
		if hosts > masscanMaxHosts {
			return errs.New(errs.KindValidationError, "CIDR exceeds the maximum sweep size").
				WithHint(errs.Hint("cidr_too_large")).WithMeta("suggested_cidr", strings.Split(target, "/")[0]+"/14")
		}
		if hosts > masscanWarnHosts {
			slog.Warn("masscan.large_sweep", "target", target, "hosts", hosts)
		}
		return nil
	}

	return errs.New(errs.KindValidationError, "masscan targets must be an IP or CIDR, not a hostname").
		WithHint(errs.Hint("not_private"))
}

// validateMasscanPorts checks a masscan port spec: comma-separated ports or
// a-b ranges, each optionally prefixed U: (UDP) or T: (TCP). Port zero is
// rejected.
func validateMasscanPorts(spec string) *errs.Context {
	segments := strings.Split(spec, ",")
	if len(segments) > 100 {
		return errs.New(errs.KindValidationError, "too many port segments (max 100)")
	}
	for _, seg := range segments {
		seg = strings.TrimPrefix(strings.TrimPrefix(seg, "U:"), "T:")
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

// masscanRateCeiling is min(1000, configured max_scan_rate): the value
// injected when --rate is absent, and the non-intrusive clamp ceiling.
func masscanRateCeiling() int {
	return min(masscanDefaultRate, currentSettings().MaxScanRate)
}

// clampMasscanRate bounds a requested packet rate to [masscanMinRate, max],
// returning the (possibly adjusted) value as a string.
func clampMasscanRate(rate string, max int) (string, *errs.Context) {
	r, err := strconv.Atoi(rate)
	if err != nil || r < 1 {
		return "", errs.New(errs.KindValidationError, "invalid --rate: "+rate)
	}
	if r < masscanMinRate {
		r = masscanMinRate
	}
	if r > max {
		r = max
	}
	return strconv.Itoa(r), nil
}
