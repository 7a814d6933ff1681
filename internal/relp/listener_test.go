//file: internal/relp/listener_test.go

package relp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFinalizeListenerRequiresPort(t *testing.T) {
	eng := NewEngine(nil)
	lsn := eng.NewListener()
	if err := eng.FinalizeListener(lsn); !errors.Is(err, ErrMissingPort) {
		t.Errorf("FinalizeListener() error = %v, want ErrMissingPort", err)
	}
	if eng.NumListeners() != 0 {
		t.Errorf("NumListeners() = %d, want 0", eng.NumListeners())
	}
}

func TestFinalizeListenerRejectsDoubleFinalize(t *testing.T) {
	eng := NewEngine(nil)
	lsn := eng.NewListener()
	lsn.SetPort("0")
	if err := eng.FinalizeListener(lsn); err != nil {
		t.Fatalf("FinalizeListener() error = %v", err)
	}
	if err := eng.FinalizeListener(lsn); err == nil {
		t.Error("second FinalizeListener() succeeded, want error")
	}
	eng.Close()
}

func TestListenerFailureDoesNotAffectOthers(t *testing.T) {
	eng := NewEngine(nil)

	good := eng.NewListener()
	good.SetPort("0")
	if err := eng.FinalizeListener(good); err != nil {
		t.Fatalf("FinalizeListener(good) error = %v", err)
	}

	// TLS without certificate files cannot finalize.
	bad := eng.NewListener()
	bad.SetPort("0")
	bad.EnableTLS()
	if err := eng.FinalizeListener(bad); err == nil {
		t.Fatal("FinalizeListener(bad) succeeded, want error")
	}

	if eng.NumListeners() != 1 {
		t.Errorf("NumListeners() = %d, want 1", eng.NumListeners())
	}
	if good.Addr() == nil {
		t.Error("good listener lost its binding")
	}
	eng.Close()
}

func TestListenerOptionAccessors(t *testing.T) {
	eng := NewEngine(nil)
	lsn := eng.NewListener()
	lsn.SetPort("2514")

	if lsn.TLSEnabled() || lsn.CompressionEnabled() || lsn.DHBits() != 0 || lsn.Priority() != nil {
		t.Fatal("fresh listener carries non-default options")
	}

	priority := PrioritySecure128
	lsn.EnableTLS()
	lsn.EnableTLSCompression()
	lsn.SetDHBits(2048)
	lsn.SetPriority(&priority)

	if !lsn.TLSEnabled() {
		t.Error("TLSEnabled() = false after EnableTLS")
	}
	if !lsn.CompressionEnabled() {
		t.Error("CompressionEnabled() = false after EnableTLSCompression")
	}
	if lsn.DHBits() != 2048 {
		t.Errorf("DHBits() = %d, want 2048", lsn.DHBits())
	}
	if lsn.Priority() == nil || *lsn.Priority() != PrioritySecure128 {
		t.Errorf("Priority() = %v, want SECURE128", lsn.Priority())
	}
}

func TestFinalizeListenerRejectsUnknownPriority(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t)

	eng := NewEngine(nil)
	lsn := eng.NewListener()
	lsn.SetPort("0")
	lsn.EnableTLS()
	lsn.SetTLSFiles(certFile, keyFile, "")
	bogus := "PFS-ONLY"
	lsn.SetPriority(&bogus)

	if err := eng.FinalizeListener(lsn); err == nil {
		t.Error("FinalizeListener() accepted an unknown priority string")
	}
}

func TestTLSListenerRoundTrip(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t)

	h := &collectingHandler{}
	eng := NewEngine(nil)
	eng.EnableCommand(CmdSyslog, CommandRequired)
	eng.SetReceiveHandler(h.receive)

	priority := PriorityNormal
	addr := addTestListener(t, eng, func(l *Listener) {
		l.EnableTLS()
		l.SetDHBits(2048)
		l.SetPriority(&priority)
		l.SetTLSFiles(certFile, keyFile, "")
	})
	done := runEngine(eng)

	client, err := Dial(addr, WithClientTLS(&tls.Config{InsecureSkipVerify: true}))
	if err != nil {
		t.Fatalf("Dial() over TLS error = %v", err)
	}
	if err := client.Send([]byte("encrypted event")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	client.Close()

	waitForEvents(t, h, 1)
	if h.payloads[0] != "encrypted event" {
		t.Errorf("payload = %q, want %q", h.payloads[0], "encrypted event")
	}

	eng.RequestStop()
	waitStopped(t, done)
}

func TestMixedTLSAndPlainListeners(t *testing.T) {
	certFile, keyFile := writeTestCertificate(t)

	h := &collectingHandler{}
	eng := NewEngine(nil)
	eng.EnableCommand(CmdSyslog, CommandRequired)
	eng.SetReceiveHandler(h.receive)

	plainAddr := addTestListener(t, eng, nil)
	priority := PrioritySecure128
	var secured *Listener
	tlsAddr := addTestListener(t, eng, func(l *Listener) {
		secured = l
		l.EnableTLS()
		l.EnableTLSCompression()
		l.SetDHBits(4096)
		l.SetPriority(&priority)
		l.SetTLSFiles(certFile, keyFile, "")
	})

	// TLS options bind to their listener; the plain one keeps defaults.
	if secured == nil || !secured.TLSEnabled() {
		t.Fatal("secured listener lost its TLS option")
	}
	for _, l := range eng.listeners {
		if l == secured {
			continue
		}
		if l.TLSEnabled() || l.CompressionEnabled() || l.DHBits() != 0 || l.Priority() != nil {
			t.Error("plain listener picked up the secured listener's options")
		}
	}

	done := runEngine(eng)

	plain, err := Dial(plainAddr)
	if err != nil {
		t.Fatalf("Dial(plain) error = %v", err)
	}
	if err := plain.Send([]byte("plain event")); err != nil {
		t.Fatalf("Send(plain) error = %v", err)
	}
	plain.Close()

	enc, err := Dial(tlsAddr, WithClientTLS(&tls.Config{InsecureSkipVerify: true}))
	if err != nil {
		t.Fatalf("Dial(tls) error = %v", err)
	}
	if err := enc.Send([]byte("encrypted event")); err != nil {
		t.Fatalf("Send(tls) error = %v", err)
	}
	enc.Close()

	waitForEvents(t, h, 2)
	eng.RequestStop()
	waitStopped(t, done)
}

// writeTestCertificate generates a self-signed certificate for loopback use
// and writes it as PEM files under a test temp dir.
func writeTestCertificate(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "relp-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	dir := t.TempDir()
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
