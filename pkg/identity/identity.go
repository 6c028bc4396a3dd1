// Package identity supplies the stable identity token ("MAC") a peer
// is known by across connections.
package identity

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoHardwareAddress is returned when no usable network interface
// carries a hardware address.
var ErrNoHardwareAddress = errors.New("no hardware address available")

// Provider returns the opaque stable identity token for this machine.
type Provider interface {
	MAC() (string, error)
}

// Hardware resolves the identity from the first non-loopback network
// interface with a hardware address.
type Hardware struct{}

// MAC returns the hardware address formatted as AA:BB:CC:DD:EE:FF.
func (Hardware) MAC() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return strings.ToUpper(iface.HardwareAddr.String()), nil
	}

	return "", ErrNoHardwareAddress
}

// Static is a fixed identity token, useful for tests and for running
// several engines in one process without colliding identities.
type Static string

// MAC returns the fixed token.
func (s Static) MAC() (string, error) { return string(s), nil }
