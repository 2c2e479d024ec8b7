package manifest

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// JWS is a flattened RS256 signature over a manifest.
type JWS struct {
	Protected string `json:"protected"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

var ErrBadSignature = errors.New("manifest signature does not verify")

// Sign serializes m and signs it with the PKCS#1 RSA key in privateKeyPEM.
func Sign(m Manifest, privateKeyPEM []byte) (JWS, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return JWS{}, err
	}
	priv, err := parseRSAPrivateKey(privateKeyPEM)
	if err != nil {
		return JWS{}, err
	}
	hb, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	protected := base64.RawURLEncoding.EncodeToString(hb)
	pl := base64.RawURLEncoding.EncodeToString(payload)

	h := sha256.Sum256([]byte(protected + "." + pl))
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
	if err != nil {
		return JWS{}, err
	}
	return JWS{
		Protected: protected,
		Payload:   pl,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}, nil
}

// Verify checks sig against pub and returns the signed manifest.
func Verify(sig JWS, pub *rsa.PublicKey) (Manifest, error) {
	var m Manifest
	raw, err := base64.RawURLEncoding.DecodeString(sig.Signature)
	if err != nil {
		return m, fmt.Errorf("decode signature: %w", err)
	}
	h := sha256.Sum256([]byte(sig.Protected + "." + sig.Payload))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], raw); err != nil {
		return m, ErrBadSignature
	}
	payload, err := base64.RawURLEncoding.DecodeString(sig.Payload)
	if err != nil {
		return m, fmt.Errorf("decode payload: %w", err)
	}
	err = json.Unmarshal(payload, &m)
	return m, err
}

// SignFile signs m with the key at keyPath and writes the JWS to out.
func SignFile(m Manifest, keyPath, out string) error {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return err
	}
	sig, err := Sign(m, keyPEM)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no pem block")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
