package metrics

import (
	"testing"
)

func TestPrometheusBridge_RegistersFamiliesAndRecords(t *testing.T) {
	b := NewPrometheusBridge()

	b.ObserveExecution("nmap", "success", "", 0.25)
	b.SetActive("nmap", 1)

	families, err := b.registry.Gather()
	if err != nil {
		t.Fatalf("unexpected error gathering metrics: %v", err)
	}
	if len(families) != 3 {
		t.Errorf("expected 3 registered metric families, got %d", len(families))
	}
	if !b.Enabled() {
		t.Error("expected a constructed bridge to be enabled")
	}
}

func TestPrometheusBridge_DisabledIsNoOp(t *testing.T) {
	b := DisabledPrometheusBridge()
	// must not panic despite no underlying vectors being initialized.
	b.ObserveExecution("nmap", "success", "", 0.1)
	b.SetActive("nmap", 2)
}
