package cert

import (
	"crypto/ecdsa"
	"errors"
	"testing"
)

func TestCertPEMRoundTrip(t *testing.T) {
	certPEM, _, err := SelfSignedPEM("pem-node")
	if err != nil {
		t.Fatalf("SelfSignedPEM() error = %v", err)
	}

	leaf, err := DecodeCertPEM(certPEM)
	if err != nil {
		t.Fatalf("DecodeCertPEM() error = %v", err)
	}

	encoded := EncodeCertPEM(leaf)
	again, err := DecodeCertPEM(encoded)
	if err != nil {
		t.Fatalf("DecodeCertPEM() after re-encode error = %v", err)
	}
	if !again.Equal(leaf) {
		t.Error("certificate changed across encode/decode")
	}
}

func TestKeyPEMRoundTrip(t *testing.T) {
	_, keyPEM, err := SelfSignedPEM("pem-node")
	if err != nil {
		t.Fatalf("SelfSignedPEM() error = %v", err)
	}

	key, err := DecodeKeyPEM(keyPEM)
	if err != nil {
		t.Fatalf("DecodeKeyPEM() error = %v", err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		t.Fatalf("key type = %T, want *ecdsa.PrivateKey", key)
	}

	encoded, err := EncodeKeyPEM(ecKey)
	if err != nil {
		t.Fatalf("EncodeKeyPEM() error = %v", err)
	}
	again, err := DecodeKeyPEM(encoded)
	if err != nil {
		t.Fatalf("DecodeKeyPEM() after re-encode error = %v", err)
	}
	if !ecKey.Equal(again) {
		t.Error("key changed across encode/decode")
	}
}

func TestDecodeInvalidPEM(t *testing.T) {
	if _, err := DecodeCertPEM([]byte("garbage")); !errors.Is(err, ErrInvalidPEM) {
		t.Errorf("DecodeCertPEM(garbage) = %v, want ErrInvalidPEM", err)
	}
	if _, err := DecodeKeyPEM([]byte("garbage")); !errors.Is(err, ErrInvalidPEM) {
		t.Errorf("DecodeKeyPEM(garbage) = %v, want ErrInvalidPEM", err)
	}

	// Wrong block type
	certPEM, keyPEM, err := SelfSignedPEM("x")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeCertPEM(keyPEM); !errors.Is(err, ErrInvalidPEM) {
		t.Errorf("DecodeCertPEM(key block) = %v, want ErrInvalidPEM", err)
	}
	if _, err := DecodeKeyPEM(certPEM); !errors.Is(err, ErrInvalidPEM) {
		t.Errorf("DecodeKeyPEM(cert block) = %v, want ErrInvalidPEM", err)
	}
}
