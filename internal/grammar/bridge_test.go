package grammar

import "testing"

func TestBridge_HidesMarkerAdjacentPayload(t *testing.T) {
	rewritten, restore := Bridge("http-post-form user=^USER^&pass=^PASS^:F=incorrect", "http-post-form")
	if rewritten == "http-post-form user=^USER^&pass=^PASS^:F=incorrect" {
		t.Fatal("expected the payload token to be replaced by a placeholder")
	}

	tokens, ec := Tokenize(rewritten, 0)
	if ec != nil {
		t.Fatalf("bridged string should tokenize cleanly, got error: %v", ec)
	}

	restored, ec := restore(tokens)
	if ec != nil {
		t.Fatalf("restore failed: %v", ec)
	}
	if len(restored) != 2 || restored[1] != "user=^USER^&pass=^PASS^:F=incorrect" {
		t.Errorf("restore did not reproduce the original payload, got %v", restored)
	}
}

func TestBridgeTokenize_PayloadWithForbiddenCharSucceeds(t *testing.T) {
	extraArgs := "http-post-form user=^USER^&pass=^PASS^:F=incorrect"
	tokens, ec := BridgeTokenize(extraArgs, 0, "http-post-form")
	if ec != nil {
		t.Fatalf("expected bridged tokenization to succeed, got: %v", ec)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %v", tokens)
	}
	if tokens[1] != "user=^USER^&pass=^PASS^:F=incorrect" {
		t.Errorf("got %q", tokens[1])
	}
}

func TestBridgeTokenize_RejectsNonBridgedForbiddenChar(t *testing.T) {
	// a forbidden character outside the bridged payload is still rejected.
	extraArgs := "http-post-form payload; rm -rf /"
	_, ec := BridgeTokenize(extraArgs, 0, "http-post-form")
	if ec == nil {
		t.Fatal("expected an error for a forbidden character outside the bridged token")
	}
}

func TestBridgeTokenize_RejectsOversizedPayload(t *testing.T) {
	_, ec := BridgeTokenize("http-post-form aaaaaaaaaa", 5, "http-post-form")
	if ec == nil {
		t.Fatal("expected an error for extra_args exceeding the configured max length")
	}
}
