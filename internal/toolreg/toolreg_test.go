package toolreg

import (
	"testing"

	"github.com/nextlevelbuilder/scangate/internal/breaker"
)

func TestNew_IncludesAllByDefault(t *testing.T) {
	reg := New(Filter{}, breaker.DefaultConfig())
	if len(reg.List()) != len(catalog) {
		t.Fatalf("expected all %d catalog tools, got %d", len(catalog), len(reg.List()))
	}
}

func TestNew_IncludeFiltersToNamedTools(t *testing.T) {
	reg := New(Filter{Include: []string{"nmap", "gobuster"}}, breaker.DefaultConfig())
	if len(reg.List()) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(reg.List()))
	}
	if !reg.Enabled("nmap") || !reg.Enabled("gobuster") {
		t.Error("expected included tools to be enabled")
	}
	if reg.Enabled("hydra") {
		t.Error("expected a non-included tool to be absent")
	}
}

func TestNew_ExcludeWinsOverInclude(t *testing.T) {
	reg := New(Filter{Include: []string{"nmap"}, Exclude: []string{"nmap"}}, breaker.DefaultConfig())
	if len(reg.List()) != 0 {
		t.Errorf("expected exclude to win, got %d tools", len(reg.List()))
	}
}

func TestRegistry_SetEnabledTogglesState(t *testing.T) {
	reg := New(Filter{}, breaker.DefaultConfig())
	if !reg.Enabled("nmap") {
		t.Fatal("expected nmap to start enabled")
	}
	if !reg.SetEnabled("nmap", false) {
		t.Fatal("expected SetEnabled to succeed for a known tool")
	}
	if reg.Enabled("nmap") {
		t.Error("expected nmap to be disabled after SetEnabled(false)")
	}
}

func TestRegistry_SetEnabledUnknownToolFails(t *testing.T) {
	reg := New(Filter{}, breaker.DefaultConfig())
	if reg.SetEnabled("no-such-tool", true) {
		t.Error("expected SetEnabled to fail for an unknown tool")
	}
}

func TestRegistry_EachToolOwnsItsOwnBreaker(t *testing.T) {
	reg := New(Filter{}, breaker.DefaultConfig())
	nmapBreaker, _ := reg.Breaker("nmap")
	massBreaker, _ := reg.Breaker("masscan")
	if nmapBreaker == massBreaker {
		t.Error("expected distinct breaker instances per tool")
	}
}

func TestRegistry_EnabledCommandsExcludesDisabled(t *testing.T) {
	reg := New(Filter{}, breaker.DefaultConfig())
	reg.SetEnabled("hydra", false)
	commands := reg.EnabledCommands()
	if _, ok := commands["hydra"]; ok {
		t.Error("expected a disabled tool to be excluded from EnabledCommands")
	}
	if _, ok := commands["nmap"]; !ok {
		t.Error("expected an enabled tool to appear in EnabledCommands")
	}
}
