// Package tls inspects a server's TLS configuration by performing a
// handshake with a browser-like ClientHello. Using a real browser
// fingerprint means the server negotiates what it would negotiate with
// users rather than with a Go client.
package tls

import (
	"fmt"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// Profile is a named ClientHello fingerprint.
type Profile struct {
	Name        string
	Description string
	hello       utls.ClientHelloID
}

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "chrome"

var profiles = []Profile{
	{Name: "chrome", Description: "Chrome 120", hello: utls.HelloChrome_120},
	{Name: "firefox", Description: "Firefox 120", hello: utls.HelloFirefox_120},
	{Name: "safari", Description: "Safari 16", hello: utls.HelloSafari_16_0},
	{Name: "edge", Description: "Edge 106", hello: utls.HelloEdge_106},
	{Name: "go", Description: "Go crypto/tls defaults", hello: utls.HelloGolang},
}

// Profiles returns the available profiles.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ProfileByName looks a profile up case-insensitively. An empty name
// selects DefaultProfile.
func ProfileByName(name string) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultProfile
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}
