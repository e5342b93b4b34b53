package grammar

import (
	"reflect"
	"testing"
)

func TestNmapGrammar_DefaultScanArgv(t *testing.T) {
	argv, ec := Validate("nmap", "192.168.2.132/32", "-sV --top-ports 200", false, 0)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	want := []string{"-sV", "--top-ports", "200", "-T4", "--max-parallelism", "10", "-Pn", "192.168.2.132/32"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("argv mismatch:\n got  %v\n want %v", argv, want)
	}
}

func TestNmapGrammar_EmptyArgsGetFullDefaults(t *testing.T) {
	argv, ec := Validate("nmap", "10.0.0.5", "", false, 0)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	want := []string{"-T4", "--max-parallelism", "10", "-Pn", "--top-ports", "1000", "10.0.0.5"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("argv mismatch:\n got  %v\n want %v", argv, want)
	}
}

func TestNmapGrammar_CIDRBoundary(t *testing.T) {
	if _, ec := (nmapGrammar{}).Validate("10.0.0.0/22", nil, false); ec != nil {
		t.Errorf("expected /22 to be accepted, got %v", ec)
	}
	_, ec := (nmapGrammar{}).Validate("10.0.0.0/21", nil, false)
	if ec == nil {
		t.Fatal("expected /21 to be rejected")
	}
	if ec.Metadata["suggested_cidr"] != "10.0.0.0/22" {
		t.Errorf("expected suggested_cidr 10.0.0.0/22, got %v", ec.Metadata["suggested_cidr"])
	}
}

func TestNmapGrammar_ValidPrivateTarget(t *testing.T) {
	g := nmapGrammar{}
	argv, ec := g.Validate("192.168.1.10", []string{"-sV", "-p", "80,443"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if !HasFlag(argv, "-sV") {
		t.Error("expected -sV to pass through")
	}
	if !HasFlag(argv, "-Pn") {
		t.Error("expected -Pn to be injected by default")
	}
}

func TestNmapGrammar_RejectsPublicTarget(t *testing.T) {
	g := nmapGrammar{}
	_, ec := g.Validate("8.8.8.8", nil, false)
	if ec == nil {
		t.Fatal("expected a validation error for a public IP")
	}
	if ec.RecoveryHint == "" {
		t.Error("expected a recovery hint")
	}
}

func TestNmapGrammar_RejectsOversizedCIDR(t *testing.T) {
	g := nmapGrammar{}
	_, ec := g.Validate("10.0.0.0/8", nil, false)
	if ec == nil {
		t.Fatal("expected oversized CIDR to be rejected")
	}
	if ec.Metadata["suggested_cidr"] == nil {
		t.Error("expected a suggested_cidr hint in metadata")
	}
}

func TestNmapGrammar_AcceptsLabInternalHost(t *testing.T) {
	g := nmapGrammar{}
	_, ec := g.Validate("db01.lab.internal", nil, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
}

func TestNmapGrammar_StripsIntrusiveFlagWithoutOptIn(t *testing.T) {
	g := nmapGrammar{}
	argv, ec := g.Validate("10.0.0.5", []string{"-A"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if HasFlag(argv, "-A") {
		t.Error("expected -A to be stripped when allow_intrusive is false")
	}
}

func TestNmapGrammar_RejectsUnknownFlag(t *testing.T) {
	g := nmapGrammar{}
	_, ec := g.Validate("10.0.0.5", []string{"--evil-flag"}, false)
	if ec == nil {
		t.Fatal("expected an error for an unrecognized flag")
	}
}

func TestNmapGrammar_FiltersIntrusiveScriptCategory(t *testing.T) {
	g := nmapGrammar{}
	_, ec := g.Validate("10.0.0.5", []string{"--script", "vuln"}, false)
	if ec == nil {
		t.Fatal("expected --script vuln to be rejected without allow_intrusive")
	}
}

func TestNmapGrammar_AllowsSafeScriptCategory(t *testing.T) {
	g := nmapGrammar{}
	argv, ec := g.Validate("10.0.0.5", []string{"--script", "safe"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	v, ok := FindFlagValue(argv, "--script")
	if !ok || v != "safe" {
		t.Errorf("expected --script safe to survive, got %q", v)
	}
}
