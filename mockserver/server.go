package mockserver

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cserve-project/cserve-test-harness/framework"
	"github.com/cserve-project/cserve-test-harness/servicedef"
)

const shutdownTimeout = time.Second * 2

// Run starts the mock server's listeners, prints the readiness marker to out, and serves until
// ctx is cancelled. Everything the server logs also goes to out, one line per message, the way
// the real server writes its log to the console.
func Run(ctx context.Context, config Config, out io.Writer) error {
	logger := framework.NewWriterLogger(out, nil)
	logger.Printf("cserver mock starting (port %d, ssl port %d)", config.Port, config.SSLPort)

	if config.Mode == ModeExitEarly {
		logger.Println("fatal: configuration rejected")
		return errors.New("exiting early as requested")
	}
	if config.Mode == ModeLongOutput {
		logger.Println(strings.Repeat("x", 200000))
	}

	handler := NewHandler(config, logger)
	defer handler.Close() //nolint:errcheck
	var servers []*http.Server

	plain, err := net.Listen("tcp", fmt.Sprintf(":%d", config.Port))
	if err != nil {
		return err
	}
	servers = append(servers, serve(plain, handler, nil))

	if config.SSLPort != 0 {
		cert, err := loadOrGenerateCertificate(config.CertFile, config.KeyFile)
		if err != nil {
			shutdown(servers)
			return err
		}
		secure, err := net.Listen("tcp", fmt.Sprintf(":%d", config.SSLPort))
		if err != nil {
			shutdown(servers)
			return err
		}
		servers = append(servers, serve(secure, handler, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
	}

	switch config.Mode {
	case ModeNeverReady:
	case ModeDelayedMark:
		time.Sleep(time.Millisecond * 300)
		logger.Println(servicedef.ReadyMarker)
	default:
		logger.Println(servicedef.ReadyMarker)
	}

	<-ctx.Done()
	if config.Mode == ModeIgnoreTerm {
		logger.Println("ignoring shutdown request")
		time.Sleep(time.Hour) // wait to be killed
	}
	logger.Println("cserver mock shutting down")
	shutdown(servers)
	return nil
}

func serve(l net.Listener, handler http.Handler, tlsConfig *tls.Config) *http.Server {
	server := &http.Server{
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second, // arbitrary but non-infinite timeout to avoid Slowloris Attack
	}
	go func() {
		if tlsConfig != nil {
			_ = server.ServeTLS(l, "", "")
		} else {
			_ = server.Serve(l)
		}
	}()
	return server
}

func shutdown(servers []*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range servers {
		_ = s.Shutdown(ctx)
	}
}

func loadOrGenerateCertificate(certFile, keyFile string) (tls.Certificate, error) {
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("could not load TLS certificate: %w", err)
		}
		return cert, nil
	}
	return GenerateSelfSignedCertificate()
}

// GenerateSelfSignedCertificate creates a throwaway certificate for localhost.
func GenerateSelfSignedCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "localhost"},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour * 24),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, nil
}
