package tls

import (
	"context"
	gotls "crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/casatester/casatester/pkg/duration"
)

// Sentinel errors for TLS inspection.
var (
	// ErrHandshake indicates the dial or the handshake failed.
	ErrHandshake = errors.New("tls: handshake failed")

	// ErrUnknownProfile indicates a profile name that does not exist.
	ErrUnknownProfile = errors.New("tls: unknown client hello profile")
)

// State describes a completed handshake.
type State struct {
	Version            uint16
	VersionName        string
	CipherSuite        string
	NegotiatedProtocol string
	ServerName         string
	Profile            string
	PeerCertificates   []*x509.Certificate
}

// Leaf returns the server's leaf certificate, or nil.
func (s *State) Leaf() *x509.Certificate {
	if s == nil || len(s.PeerCertificates) == 0 {
		return nil
	}
	return s.PeerCertificates[0]
}

// AtLeastTLS12 reports whether the negotiated version is TLS 1.2 or newer.
func (s *State) AtLeastTLS12() bool {
	return s != nil && s.Version >= gotls.VersionTLS12
}

// ContextDialer opens the TCP connection the handshake runs over.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Inspector performs handshakes. Certificates are not verified; the caller
// judges them from State.
type Inspector struct {
	profile Profile
	dialer  ContextDialer
	timeout time.Duration
}

// NewInspector returns an inspector using the named profile. A nil dialer
// dials directly.
func NewInspector(profile string, dialer ContextDialer) (*Inspector, error) {
	p, err := ProfileByName(profile)
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = &net.Dialer{Timeout: duration.DialTimeout}
	}
	return &Inspector{profile: p, dialer: dialer, timeout: duration.TLSHandshake}, nil
}

// Profile returns the profile name in use.
func (i *Inspector) Profile() string { return i.profile.Name }

// Handshake connects to host:port, completes a TLS handshake and closes the
// connection.
func (i *Inspector) Handshake(ctx context.Context, host, port string) (*State, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	addr := net.JoinHostPort(host, port)

	conn, err := i.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrHandshake, addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	uconn := utls.UClient(conn, &utls.Config{
		ServerName:         host,
		InsecureSkipVerify: true, //nolint:gosec // certificates are judged by the caller
	}, i.profile.hello)
	if err := uconn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHandshake, addr, err)
	}

	cs := uconn.ConnectionState()
	return &State{
		Version:            cs.Version,
		VersionName:        gotls.VersionName(cs.Version),
		CipherSuite:        gotls.CipherSuiteName(cs.CipherSuite),
		NegotiatedProtocol: cs.NegotiatedProtocol,
		ServerName:         host,
		Profile:            i.profile.Name,
		PeerCertificates:   cs.PeerCertificates,
	}, nil
}
