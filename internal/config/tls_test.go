package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSelfSigned(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey: %v", err)
	}

	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return certFile, keyFile
}

func TestLoadTLS_EmptyPathsFallBack(t *testing.T) {
	cfg, err := LoadTLS("", "")
	if err != nil {
		t.Fatalf("LoadTLS: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil tls config for empty paths")
	}
}

func TestLoadTLS_MissingFilesFallBack(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadTLS(filepath.Join(dir, "nope.pem"), filepath.Join(dir, "nope.key"))
	if err != nil {
		t.Fatalf("LoadTLS: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil tls config for missing files")
	}
}

func TestLoadTLS_ValidPair(t *testing.T) {
	certFile, keyFile := writeSelfSigned(t, t.TempDir())
	cfg, err := LoadTLS(certFile, keyFile)
	if err != nil {
		t.Fatalf("LoadTLS: %v", err)
	}
	if cfg == nil || len(cfg.Certificates) != 1 {
		t.Fatalf("expected one loaded certificate, got %+v", cfg)
	}
}

func TestLoadTLS_GarbageMaterialErrors(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certFile, []byte("not a cert"), 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	cfg, err := LoadTLS(certFile, keyFile)
	if err == nil {
		t.Fatal("expected error for unparsable material")
	}
	if cfg != nil {
		t.Fatal("expected nil tls config on parse failure")
	}
}
