package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *PeerStore {
	t.Helper()
	return NewPeerStore(filepath.Join(t.TempDir(), "peers.json"))
}

func TestPeerStoreEmptyLookup(t *testing.T) {
	s := testStore(t)

	p, err := s.Lookup("deadbeef")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if p != nil {
		t.Errorf("Lookup on empty store = %+v, want nil", p)
	}

	peers, err := s.Peers()
	if err != nil {
		t.Fatalf("Peers failed: %v", err)
	}
	if len(peers) != 0 {
		t.Errorf("Peers = %v, want empty", peers)
	}
}

func TestPeerStoreRemember(t *testing.T) {
	s := testStore(t)

	known, err := s.Remember("aa11", "CN=server.local", "127.0.0.1:443")
	if err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	if known {
		t.Error("first Remember should report unknown")
	}

	p, err := s.Lookup("aa11")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if p == nil {
		t.Fatal("peer not found after Remember")
	}
	if p.Subject != "CN=server.local" {
		t.Errorf("Subject = %q", p.Subject)
	}
	if p.FirstSeen.IsZero() || !p.FirstSeen.Equal(p.LastSeen) {
		t.Errorf("timestamps: first=%v last=%v", p.FirstSeen, p.LastSeen)
	}
}

func TestPeerStoreRememberUpdatesLastSeen(t *testing.T) {
	s := testStore(t)

	if _, err := s.Remember("aa11", "CN=server.local", "127.0.0.1:443"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}
	first, _ := s.Lookup("aa11")

	time.Sleep(5 * time.Millisecond)
	known, err := s.Remember("aa11", "CN=server.local", "127.0.0.1:8443")
	if err != nil {
		t.Fatalf("second Remember failed: %v", err)
	}
	if !known {
		t.Error("second Remember should report known")
	}

	p, _ := s.Lookup("aa11")
	if !p.FirstSeen.Equal(first.FirstSeen) {
		t.Error("FirstSeen changed on re-contact")
	}
	if !p.LastSeen.After(first.LastSeen) {
		t.Errorf("LastSeen not advanced: %v -> %v", first.LastSeen, p.LastSeen)
	}
	if p.Address != "127.0.0.1:8443" {
		t.Errorf("Address = %q, want updated address", p.Address)
	}
}

func TestPeerStoreForget(t *testing.T) {
	s := testStore(t)

	s.Remember("aa11", "CN=a", "")
	s.Remember("bb22", "CN=b", "")

	if err := s.Forget("aa11"); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	p, _ := s.Lookup("aa11")
	if p != nil {
		t.Error("forgotten peer still present")
	}
	p, _ = s.Lookup("bb22")
	if p == nil {
		t.Error("unrelated peer removed")
	}

	// Unknown fingerprint is a no-op.
	if err := s.Forget("cc33"); err != nil {
		t.Errorf("Forget of unknown fingerprint = %v", err)
	}
}

func TestPeerStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")

	s := NewPeerStore(path)
	if _, err := s.Remember("aa11", "CN=server.local", "127.0.0.1:443"); err != nil {
		t.Fatalf("Remember failed: %v", err)
	}

	reopened := NewPeerStore(path)
	p, err := reopened.Lookup("aa11")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if p == nil || p.Subject != "CN=server.local" {
		t.Errorf("reopened store lost peer: %+v", p)
	}
}

func TestPeerStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	s := NewPeerStore(path)

	s.Remember("aa11", "", "")
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("peer file still exists after Clear")
	}
	// Clearing again is fine.
	if err := s.Clear(); err != nil {
		t.Errorf("second Clear = %v", err)
	}
}

func TestPeerStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	os.WriteFile(path, []byte("{not json"), 0644)

	s := NewPeerStore(path)
	if _, err := s.Peers(); err == nil {
		t.Error("expected error for corrupt peer file")
	}
}
