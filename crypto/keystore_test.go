package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "keystore.json")
	if err := SaveToKeystore(path, key, "correct horse"); err != nil {
		t.Fatalf("save keystore: %v", err)
	}

	loaded, err := LoadFromKeystore(path, "correct horse")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), key.Bytes()) {
		t.Fatal("loaded key does not match saved key")
	}
	if loaded.PubKey().Address() != key.PubKey().Address() {
		t.Fatal("loaded address does not match saved address")
	}

	if _, err := LoadFromKeystore(path, "wrong passphrase"); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestSaveToKeystoreRejectsBadInput(t *testing.T) {
	if err := SaveToKeystore("", nil, "x"); err == nil {
		t.Fatal("expected error for nil key")
	}
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := SaveToKeystore("", key, "x"); err == nil {
		t.Fatal("expected error for empty path")
	}
}
