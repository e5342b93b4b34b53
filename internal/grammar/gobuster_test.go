package grammar

import (
	"reflect"
	"testing"
)

func TestGobusterGrammar_RequiresMode(t *testing.T) {
	g := gobusterGrammar{}
	_, ec := g.Validate("http://10.0.0.5", []string{"-w", "/usr/share/wordlists/common.txt"}, false)
	if ec == nil {
		t.Fatal("expected an error when the leading mode token is missing")
	}
}

func TestGobusterGrammar_DirModeValid(t *testing.T) {
	g := gobusterGrammar{}
	argv, ec := g.Validate("http://10.0.0.5", []string{"dir", "-w", "/usr/share/wordlists/common.txt"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if argv[0] != "dir" {
		t.Errorf("expected mode to lead argv, got %v", argv)
	}
	if v, _ := FindFlagValue(argv, "-u"); v != "http://10.0.0.5" {
		t.Errorf("expected the target to be injected under -u, got %q", v)
	}
	if v, _ := FindFlagValue(argv, "-t"); v != "10" {
		t.Errorf("expected default -t 10, got %q", v)
	}
	if v, _ := FindFlagValue(argv, "-s"); v != "200,204,301,302,307,401,403" {
		t.Errorf("expected the dir status-code default, got %q", v)
	}
	if !HasFlag(argv, "-q") || !HasFlag(argv, "-z") {
		t.Errorf("expected -q -z to always be appended, got %v", argv)
	}
}

func TestGobusterGrammar_DNSModeInjection(t *testing.T) {
	g := gobusterGrammar{}
	argv, ec := g.Validate("lab.internal", []string{"dns"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	want := []string{"dns", "-d", "lab.internal", "-t", "20", "--wildcard", "--timeout", "10s", "-q", "-z"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("argv mismatch:\n got  %v\n want %v", argv, want)
	}
}

func TestGobusterGrammar_VhostModeDefaults(t *testing.T) {
	g := gobusterGrammar{}
	argv, ec := g.Validate("http://app.lab.internal", []string{"vhost"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if !HasFlag(argv, "--append-domain") {
		t.Errorf("expected --append-domain default for vhost mode, got %v", argv)
	}
	if v, _ := FindFlagValue(argv, "-t"); v != "10" {
		t.Errorf("expected default -t 10 for vhost, got %q", v)
	}
}

func TestGobusterGrammar_RejectsNonURLTargetForDirMode(t *testing.T) {
	g := gobusterGrammar{}
	_, ec := g.Validate("10.0.0.5", []string{"dir"}, false)
	if ec == nil {
		t.Fatal("expected a bare host to be rejected for dir mode")
	}
}

func TestGobusterGrammar_RejectsWordlistOutsideAllowedRoots(t *testing.T) {
	g := gobusterGrammar{}
	_, ec := g.Validate("http://10.0.0.5", []string{"dir", "-w", "/etc/passwd"}, false)
	if ec == nil {
		t.Fatal("expected a wordlist outside the allowed roots to be rejected")
	}
}

func TestGobusterGrammar_RejectsWordlistTraversal(t *testing.T) {
	g := gobusterGrammar{}
	_, ec := g.Validate("http://10.0.0.5", []string{"dir", "-w", "/usr/share/wordlists/../../etc/passwd"}, false)
	if ec == nil {
		t.Fatal("expected a traversal attempt in the wordlist path to be rejected")
	}
}

func TestGobusterGrammar_DNSModeRequiresLabInternalHost(t *testing.T) {
	g := gobusterGrammar{}
	_, ec := g.Validate("8.8.8.8", []string{"dns"}, false)
	if ec == nil {
		t.Fatal("expected dns mode to reject a non-lab-internal target")
	}
}

func TestGobusterGrammar_PerModeThreadCaps(t *testing.T) {
	g := gobusterGrammar{}
	if _, ec := g.Validate("http://10.0.0.5", []string{"dir", "-t", "40"}, false); ec == nil {
		t.Error("expected -t 40 to exceed the dir mode cap of 30")
	}
	if _, ec := g.Validate("lab.internal", []string{"dns", "-t", "40"}, false); ec != nil {
		t.Errorf("expected -t 40 to fit the dns mode cap of 50, got %v", ec)
	}
	if _, ec := g.Validate("http://app.lab.internal", []string{"vhost", "-t", "25"}, false); ec == nil {
		t.Error("expected -t 25 to exceed the vhost mode cap of 20")
	}
}

func TestGobusterGrammar_FiltersExtensionsWithoutIntrusive(t *testing.T) {
	g := gobusterGrammar{}
	argv, ec := g.Validate("http://10.0.0.5", []string{"dir", "-x", "php,exe,html"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if v, _ := FindFlagValue(argv, "-x"); v != "php,html" {
		t.Errorf("expected -x filtered to the safe set, got %q", v)
	}
}

func TestGobusterGrammar_RejectsMalformedExtensions(t *testing.T) {
	g := gobusterGrammar{}
	_, ec := g.Validate("http://10.0.0.5", []string{"dir", "-x", "php;exe"}, false)
	if ec == nil {
		t.Fatal("expected a malformed extension list to be rejected")
	}
}
