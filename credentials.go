package softphone

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// Credentials identify the local user to the signaling server.
type Credentials struct {
	Username string
	Password string
	// ServerAddress is the server's IPv4 address in dotted-quad form.
	ServerAddress string
}

// Validate checks that every field is present and that ServerAddress is a
// dotted-quad IPv4 address without leading zeros.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}
	if c.ServerAddress == "" {
		return fmt.Errorf("%w: server address is required", ErrInvalidCredentials)
	}
	addr, err := netip.ParseAddr(c.ServerAddress)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidCredentials, c.ServerAddress)
	}
	return nil
}

// ServerURL derives the server URL for these credentials: the scheme and
// port come from configured, the host is ServerAddress. A configured URL
// without a port uses DefaultServerPort.
func (c Credentials) ServerURL(configured string) string {
	scheme, port := "ws", DefaultServerPort
	if u, err := url.Parse(configured); err == nil {
		if u.Scheme != "" {
			scheme = u.Scheme
		}
		if p := u.Port(); p != "" {
			port = p
		}
	}
	return scheme + "://" + net.JoinHostPort(c.ServerAddress, port)
}
