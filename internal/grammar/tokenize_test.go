package grammar

import "testing"

func TestTokenize_SplitsOnWhitespace(t *testing.T) {
	tokens, ec := Tokenize("-p 80,443 --script safe", 0)
	if ec != nil {
		t.Fatalf("unexpected error: %v", ec)
	}
	want := []string{"-p", "80,443", "--script", "safe"}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestTokenize_RejectsForbiddenChar(t *testing.T) {
	_, ec := Tokenize("-p 80; rm -rf /", 0)
	if ec == nil {
		t.Fatal("expected an error for a forbidden character")
	}
	if ec.RecoveryHint == "" {
		t.Error("expected a recovery hint on forbidden-character rejection")
	}
}

func TestTokenize_RejectsOversizedInput(t *testing.T) {
	huge := make([]byte, 100)
	for i := range huge {
		huge[i] = 'a'
	}
	_, ec := Tokenize(string(huge), 10)
	if ec == nil {
		t.Fatal("expected an error for oversized extra_args")
	}
}

func TestMatchesTokenGrammar(t *testing.T) {
	if !MatchesTokenGrammar("80,443") {
		t.Error("expected port list to match the default token grammar")
	}
	if MatchesTokenGrammar("80;443") {
		t.Error("did not expect a semicolon to match the default token grammar")
	}
}
