package dispatcher

import "testing"

func TestStringArg_MissingKeyReturnsEmpty(t *testing.T) {
	if got := stringArg(map[string]any{}, "target"); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
}

func TestStringArg_WrongTypeReturnsEmpty(t *testing.T) {
	if got := stringArg(map[string]any{"target": 42}, "target"); got != "" {
		t.Errorf("expected empty string for non-string value, got %q", got)
	}
}

func TestStringArg_ReturnsValue(t *testing.T) {
	if got := stringArg(map[string]any{"target": "10.0.0.1"}, "target"); got != "10.0.0.1" {
		t.Errorf("expected 10.0.0.1, got %q", got)
	}
}

func TestNumberArg_AcceptsFloatAndInt(t *testing.T) {
	if got := numberArg(map[string]any{"timeout_sec": 30.0}, "timeout_sec"); got != 30.0 {
		t.Errorf("expected 30, got %v", got)
	}
	if got := numberArg(map[string]any{"timeout_sec": 30}, "timeout_sec"); got != 30.0 {
		t.Errorf("expected 30, got %v", got)
	}
}

func TestNumberArg_MissingOrWrongTypeReturnsZero(t *testing.T) {
	if got := numberArg(map[string]any{}, "timeout_sec"); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if got := numberArg(map[string]any{"timeout_sec": "30"}, "timeout_sec"); got != 0 {
		t.Errorf("expected 0 for string value, got %v", got)
	}
}

func TestErrorResult_IsMarkedAsError(t *testing.T) {
	res := errorResult("boom")
	if !res.IsError {
		t.Error("expected IsError to be true")
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected exactly one content item, got %d", len(res.Content))
	}
}
