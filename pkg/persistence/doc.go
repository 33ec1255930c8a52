// Package persistence stores the set of known peers on disk.
//
// The client tools use it for trust-on-first-use: the first successful
// handshake with a peer records its certificate fingerprint, and later
// connections can warn or fail when the fingerprint changes. The store
// is a single JSON file guarded by a mutex.
package persistence
