package grammar

import "testing"

func TestSqlmapGrammar_UsesTargetWhenNoURLFlag(t *testing.T) {
	g := sqlmapGrammar{}
	argv, ec := g.Validate("http://10.0.0.5/item?id=1", nil, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	v, ok := FindFlagValue(argv, "-u")
	if !ok || v != "http://10.0.0.5/item?id=1" {
		t.Errorf("expected target to be injected as -u, got %q", v)
	}
	if !HasFlag(argv, "--batch") {
		t.Error("expected --batch to be injected by default")
	}
}

func TestSqlmapGrammar_AppendsDefaults(t *testing.T) {
	g := sqlmapGrammar{}
	argv, ec := g.Validate("http://10.0.0.5/item?id=1", nil, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if v, _ := FindFlagValue(argv, "--technique"); v != "BEU" {
		t.Errorf("expected --technique BEU default, got %q", v)
	}
	if v, _ := FindFlagValue(argv, "--time-sec"); v != "5" {
		t.Errorf("expected --time-sec 5 default, got %q", v)
	}
	if v, _ := FindFlagValue(argv, "--threads"); v != "5" {
		t.Errorf("expected --threads 5 default, got %q", v)
	}
}

func TestSqlmapGrammar_RejectsPublicURL(t *testing.T) {
	g := sqlmapGrammar{}
	_, ec := g.Validate("http://8.8.8.8/item?id=1", nil, false)
	if ec == nil {
		t.Fatal("expected a public target URL to be rejected")
	}
}

func TestSqlmapGrammar_RejectsNonHTTPURL(t *testing.T) {
	g := sqlmapGrammar{}
	_, ec := g.Validate("ftp://10.0.0.5/item", nil, false)
	if ec == nil {
		t.Fatal("expected a non-http(s) URL to be rejected")
	}
}

func TestSqlmapGrammar_ClampsLevelRiskAndThreads(t *testing.T) {
	g := sqlmapGrammar{}
	argv, ec := g.Validate("http://10.0.0.5/item?id=1",
		[]string{"--level", "9", "--risk", "3", "--threads", "20"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if v, _ := FindFlagValue(argv, "--level"); v != "3" {
		t.Errorf("expected --level clamped to 3, got %q", v)
	}
	if v, _ := FindFlagValue(argv, "--risk"); v != "2" {
		t.Errorf("expected --risk clamped to 2, got %q", v)
	}
	if v, _ := FindFlagValue(argv, "--threads"); v != "5" {
		t.Errorf("expected --threads clamped to 5, got %q", v)
	}
}

func TestSqlmapGrammar_SkipsUnknownFlag(t *testing.T) {
	g := sqlmapGrammar{}
	argv, ec := g.Validate("http://10.0.0.5/item?id=1", []string{"--os-shell", "--dbs"}, false)
	if ec != nil {
		t.Fatalf("expected unknown flags to be skipped, got: %v", ec)
	}
	if HasFlag(argv, "--os-shell") {
		t.Error("expected --os-shell to be skipped")
	}
	if !HasFlag(argv, "--dbs") {
		t.Error("expected --dbs to survive")
	}
}

func TestSqlmapGrammar_RejectsNonFlagToken(t *testing.T) {
	g := sqlmapGrammar{}
	_, ec := g.Validate("http://10.0.0.5/item?id=1", []string{"evil_token"}, false)
	if ec == nil {
		t.Fatal("expected a stray non-flag token to be rejected")
	}
}

func TestSqlmapGrammar_SkipsUnknownTamperScript(t *testing.T) {
	g := sqlmapGrammar{}
	argv, ec := g.Validate("http://10.0.0.5/item?id=1", []string{"--tamper", "evil_payload"}, false)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	if HasFlag(argv, "--tamper") {
		t.Error("expected an unrecognized tamper script to be dropped")
	}
}

func TestSqlmapGrammar_BridgedDataPayload(t *testing.T) {
	g := sqlmapGrammar{}
	tokens, ec := g.Tokenize("-u http://10.0.0.5/login --data user=admin&pass=test", 0)
	if ec != nil {
		t.Fatalf("expected bridged tokenize to succeed, got: %v", ec)
	}
	found := false
	for _, tok := range tokens {
		if tok == "user=admin&pass=test" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the restored --data payload to survive tokenization, got %v", tokens)
	}
}
