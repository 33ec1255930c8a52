package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StoreVersion is the current version of the peer file format.
const StoreVersion = 1

// KnownPeer records a peer identity seen during a successful handshake.
type KnownPeer struct {
	// Fingerprint is the hex SHA-256 of the peer's leaf certificate.
	Fingerprint string `json:"fingerprint"`

	// Subject is the peer certificate subject at first contact.
	Subject string `json:"subject,omitempty"`

	// Address is the remote address of the most recent connection.
	Address string `json:"address,omitempty"`

	// FirstSeen is when this fingerprint was first recorded.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is when this fingerprint was last confirmed.
	LastSeen time.Time `json:"last_seen"`
}

// peerFile is the on-disk layout.
type peerFile struct {
	Version int         `json:"version"`
	SavedAt time.Time   `json:"saved_at"`
	Peers   []KnownPeer `json:"peers,omitempty"`
}

// PeerStore persists known peers to a JSON file.
type PeerStore struct {
	mu   sync.Mutex
	path string
}

// NewPeerStore creates a store backed by the given file path.
func NewPeerStore(path string) *PeerStore {
	return &PeerStore{path: path}
}

// Remember records a peer fingerprint. A new fingerprint gets FirstSeen
// set; an existing one keeps FirstSeen and updates LastSeen, subject
// and address. It reports whether the fingerprint was already known.
func (s *PeerStore) Remember(fingerprint, subject, address string) (known bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return false, err
	}

	now := time.Now()
	for i := range file.Peers {
		if file.Peers[i].Fingerprint == fingerprint {
			file.Peers[i].Subject = subject
			file.Peers[i].Address = address
			file.Peers[i].LastSeen = now
			return true, s.save(file)
		}
	}

	file.Peers = append(file.Peers, KnownPeer{
		Fingerprint: fingerprint,
		Subject:     subject,
		Address:     address,
		FirstSeen:   now,
		LastSeen:    now,
	})
	return false, s.save(file)
}

// Lookup returns the record for a fingerprint, if present.
func (s *PeerStore) Lookup(fingerprint string) (*KnownPeer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range file.Peers {
		if file.Peers[i].Fingerprint == fingerprint {
			p := file.Peers[i]
			return &p, nil
		}
	}
	return nil, nil
}

// Peers returns all known peers.
func (s *PeerStore) Peers() ([]KnownPeer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.Peers, nil
}

// Forget removes a fingerprint. Removing an unknown fingerprint is a
// no-op.
func (s *PeerStore) Forget(fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	kept := file.Peers[:0]
	for _, p := range file.Peers {
		if p.Fingerprint != fingerprint {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(file.Peers) {
		return nil
	}
	file.Peers = kept
	return s.save(file)
}

// Clear removes the peer file.
func (s *PeerStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// load reads the file. A missing file yields an empty store.
func (s *PeerStore) load() (*peerFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &peerFile{Version: StoreVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	file := &peerFile{}
	if err := json.Unmarshal(data, file); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *PeerStore) save(file *peerFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	file.Version = StoreVersion
	file.SavedAt = time.Now()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
