// Package pemfile generates and locates the server's key material:
// an RSA host key, its SSH public key, and a self-signed certificate
// for the WebSocket endpoint.
package pemfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"time"

	gossh "golang.org/x/crypto/ssh"
)

type KeyParams struct {
	Hostname      string
	KeyPath       string
	SSHPubKeyPath string
	HTTPSCertPath string
}

// Ensure returns the key paths under dir, generating the files on
// first use.
func Ensure(dir string, hostname string) (KeyParams, error) {
	params := KeyParams{
		Hostname:      hostname,
		KeyPath:       filepath.Join(dir, "private.pem"),
		SSHPubKeyPath: filepath.Join(dir, "public.pem"),
		HTTPSCertPath: filepath.Join(dir, "cert.pem"),
	}
	if _, err := os.Stat(params.KeyPath); err == nil {
		return params, nil
	} else if !os.IsNotExist(err) {
		return KeyParams{}, err
	}
	if err := params.Generate(); err != nil {
		return KeyParams{}, err
	}
	return params, nil
}

func (k KeyParams) Generate() error {
	privateKey, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return err
	}
	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)

	if err := os.WriteFile(k.KeyPath, pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: keyBytes,
		}),
		0600,
	); err != nil {
		return err
	}

	pub, err := gossh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return err
	}
	if err := os.WriteFile(k.SSHPubKeyPath, gossh.MarshalAuthorizedKey(pub), 0600); err != nil {
		return err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(0),
		Subject:               pkix.Name{CommonName: k.Hostname},
		SignatureAlgorithm:    x509.SHA256WithRSA,
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(100, 0, 0),
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyAgreement | x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return err
	}
	return os.WriteFile(k.HTTPSCertPath, pem.EncodeToMemory(
		&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: derBytes,
		},
	), 0600)
}
