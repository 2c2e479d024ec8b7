package manifest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestSignAndVerify(t *testing.T) {
	key, keyPEM := testKey(t)
	m := Manifest{ShaAlgo: "sha256", Library: Library{Name: "Ward", Version: "2", TransferCRC: "1A2B3C4D"}}
	sig, err := Sign(m, keyPEM)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	got, err := Verify(sig, &key.PublicKey)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Library != m.Library {
		t.Fatalf("library = %+v, want %+v", got.Library, m.Library)
	}

	tampered := sig
	tampered.Payload = sig.Payload[:len(sig.Payload)-2] + "AA"
	if _, err := Verify(tampered, &key.PublicKey); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("error = %v, want ErrBadSignature", err)
	}
	if _, err := Sign(m, []byte("not a key")); err == nil {
		t.Fatalf("expected error for missing pem block")
	}
}

func TestSignFile(t *testing.T) {
	key, keyPEM := testKey(t)
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "manifest.jws")
	if err := SignFile(Manifest{ShaAlgo: "sha256"}, keyPath, out); err != nil {
		t.Fatalf("SignFile: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var sig JWS
	if err := json.Unmarshal(b, &sig); err != nil {
		t.Fatalf("decode jws: %v", err)
	}
	if _, err := Verify(sig, &key.PublicKey); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
