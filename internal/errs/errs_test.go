package errs

import "testing"

func TestContextChaining(t *testing.T) {
	ctx := New(KindValidationError, "bad target").
		WithTool("nmap").
		WithTarget("10.0.0.0/21").
		WithHint(Hint("cidr_too_large")).
		WithMeta("suggested_cidr", "10.0.0.0/22")

	if ctx.Kind != KindValidationError {
		t.Errorf("Kind = %v, want %v", ctx.Kind, KindValidationError)
	}
	if ctx.ToolName != "nmap" {
		t.Errorf("ToolName = %q, want nmap", ctx.ToolName)
	}
	if ctx.Target != "10.0.0.0/21" {
		t.Errorf("Target = %q, want 10.0.0.0/21", ctx.Target)
	}
	if ctx.RecoveryHint == "" {
		t.Error("expected a recovery hint to be set")
	}
	if got := ctx.Metadata["suggested_cidr"]; got != "10.0.0.0/22" {
		t.Errorf("Metadata[suggested_cidr] = %v, want 10.0.0.0/22", got)
	}
	if ctx.Timestamp.IsZero() {
		t.Error("expected a non-zero timestamp")
	}
}

func TestContextError(t *testing.T) {
	ctx := New(KindTimeout, "exceeded 30s")
	want := "timeout: exceeded 30s"
	if got := ctx.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestHintUnknownKeyReturnsEmpty(t *testing.T) {
	if got := Hint("no_such_key"); got != "" {
		t.Errorf("Hint(unknown) = %q, want empty string", got)
	}
}
