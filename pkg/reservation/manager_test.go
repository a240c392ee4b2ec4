package reservation

import (
	"context"
	"errors"
	"testing"

	"github.com/nimbusvm/clusterconf/pkg/confutil"
)

func TestUUIDGeneratorAvoidsExistingAndReserved(t *testing.T) {
	g := NewUUIDGenerator()
	existing := map[string]bool{"a": true, "b": true}
	calls := []string{"a", "b", "c"}
	i := 0
	randFn := func() string {
		v := calls[i]
		i++
		return v
	}
	got, err := g.Generate(existing, randFn, "ec-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "c" {
		t.Errorf("Generate = %q, want %q", got, "c")
	}
}

func TestUUIDGeneratorReserveConflict(t *testing.T) {
	g := NewUUIDGenerator()
	existing := map[string]bool{}
	if err := g.Reserve(existing, "x", "ec-1"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := g.Reserve(existing, "x", "ec-2"); err == nil {
		t.Error("Reserve from a different ec_id: want error, got nil")
	}
	if err := g.Reserve(existing, "x", "ec-1"); err != nil {
		t.Errorf("re-Reserve from the same ec_id should be idempotent: %v", err)
	}
}

func TestUUIDGeneratorDropECReservations(t *testing.T) {
	g := NewUUIDGenerator()
	existing := map[string]bool{}
	g.Reserve(existing, "x", "ec-1")
	g.DropECReservations("ec-1")
	if err := g.Reserve(existing, "x", "ec-2"); err != nil {
		t.Errorf("Reserve after drop: %v", err)
	}
}

func TestOfflineManagerRejectsEverything(t *testing.T) {
	m := OfflineManager{}
	ctx := context.Background()
	if _, err := m.GenerateMAC(ctx, "ec-1", "aa:bb:cc"); !errors.Is(err, confutil.ErrProgrammer) {
		t.Errorf("GenerateMAC offline error = %v, want ProgrammerError", err)
	}
	if err := m.DropAllReservations(ctx, "ec-1"); !errors.Is(err, confutil.ErrProgrammer) {
		t.Errorf("DropAllReservations offline error = %v, want ProgrammerError", err)
	}
}
