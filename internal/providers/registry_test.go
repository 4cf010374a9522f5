package providers

import (
	"sort"
	"testing"

	"nathanbeddoewebdev/snapcycle/internal/services/auth"

	"github.com/google/go-cmp/cmp"
)

func TestRegisterAll(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RegisterAll()

	names := List()
	sort.Strings(names)
	if diff := cmp.Diff([]string{"digitalocean", "hetzner"}, names); diff != "" {
		t.Errorf("registered providers mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_UsesStoredToken(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	RegisterAll()

	store := auth.NewMockStore()
	if err := store.SetToken("digitalocean", "do-token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	p, err := Get("DigitalOcean", store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.GetDisplayName() != "DigitalOcean" {
		t.Errorf("GetDisplayName() = %q, want DigitalOcean", p.GetDisplayName())
	}
}

func TestGet_MissingToken(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	RegisterAll()

	if _, err := Get("hetzner", auth.NewMockStore()); err == nil {
		t.Fatal("expected error when no token is stored")
	}
}

func TestGet_UnknownProvider(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, err := Get("linode", auth.NewMockStore()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	RegisterDigitalOcean()

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterDigitalOcean()
}
