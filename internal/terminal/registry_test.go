package terminal

import (
	"errors"
	"testing"

	"github.com/term-broker/termbroker/internal/broker"
)

func TestValidateNameRejectsUUIDShaped(t *testing.T) {
	if err := ValidateName("550e8400-e29b-41d4-a716-446655440000"); err == nil {
		t.Fatalf("expected uuid-shaped name to be rejected")
	}
}

func TestValidateNameRejectsEmpty(t *testing.T) {
	if err := ValidateName(""); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
}

func TestValidateNameAcceptsOrdinaryName(t *testing.T) {
	if err := ValidateName("build-watcher"); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestCreateRejectsDuplicateActiveName(t *testing.T) {
	r := NewRegistry(100, false, 0)
	defer r.Shutdown()

	if _, err := r.Create("worker", "/bin/sh", "", nil, 80, 24); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := r.Create("worker", "/bin/sh", "", nil, 80, 24)
	if err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}
	var be *broker.Error
	if !errors.As(err, &be) || be.Kind != broker.KindNameInvalid {
		t.Fatalf("expected NameInvalid, got %v", err)
	}
}

func TestResolveByNameAndID(t *testing.T) {
	r := NewRegistry(100, false, 0)
	defer r.Shutdown()

	s, err := r.Create("worker", "/bin/sh", "", nil, 80, 24)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, err := r.Resolve("worker"); err != nil || got != s {
		t.Fatalf("resolve by name failed: %v", err)
	}
	if got, err := r.Resolve(s.ID); err != nil || got != s {
		t.Fatalf("resolve by id failed: %v", err)
	}
}

func TestGetOrCreateReusesActiveSession(t *testing.T) {
	r := NewRegistry(100, false, 0)
	defer r.Shutdown()

	first, created, err := r.GetOrCreate("worker", "/bin/sh", "", nil, 80, 24)
	if err != nil || !created {
		t.Fatalf("expected first call to create, got created=%v err=%v", created, err)
	}
	second, created, err := r.GetOrCreate("worker", "/bin/sh", "", nil, 80, 24)
	if err != nil || created {
		t.Fatalf("expected second call to reuse, got created=%v err=%v", created, err)
	}
	if first != second {
		t.Fatalf("expected same session instance")
	}
}

func TestKillRemovesFromRegistry(t *testing.T) {
	r := NewRegistry(100, false, 0)
	defer r.Shutdown()

	s, err := r.Create("worker", "/bin/sh", "", nil, 80, 24)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := r.Kill(s.Name); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if _, err := r.Resolve(s.Name); err == nil {
		t.Fatalf("expected session to be gone after kill")
	}
}
