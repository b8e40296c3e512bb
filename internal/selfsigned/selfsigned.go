// SPDX-License-Identifier: GPL-3.0-or-later

// Package selfsigned generates self-signed ECDSA certificates
// for running TLS-based protocols over the virtual fabric.
package selfsigned

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"time"
)

// Certificate is a self-signed certificate along with the
// pool that clients need to verify it.
type Certificate struct {
	// Cert is the certificate to use on the server side.
	Cert tls.Certificate

	// Pool contains the certificate as the only root.
	Pool *x509.CertPool

	// ServerName is the first name of the certificate.
	ServerName string
}

// New generates a self-signed certificate valid for the given DNS names.
//
// The key is ECDSA P-256 and the certificate is valid for one day.
func New(names ...string) (*Certificate, error) {
	if len(names) < 1 {
		return nil, errors.New("selfsigned: need at least one name")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: names[0]},
		DNSNames:              names,
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return &Certificate{
		Cert: tls.Certificate{
			Certificate: [][]byte{der},
			PrivateKey:  key,
			Leaf:        leaf,
		},
		Pool:       pool,
		ServerName: names[0],
	}, nil
}

// ServerConfig returns a [*tls.Config] for the server side.
func (c *Certificate) ServerConfig(nextProtos ...string) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.Cert},
		NextProtos:   nextProtos,
		MinVersion:   tls.VersionTLS13,
	}
}

// ClientConfig returns a [*tls.Config] for the client side.
func (c *Certificate) ClientConfig(nextProtos ...string) *tls.Config {
	return &tls.Config{
		RootCAs:    c.Pool,
		ServerName: c.ServerName,
		NextProtos: nextProtos,
		MinVersion: tls.VersionTLS13,
	}
}
