// Package stun discovers the process's externally visible address by
// asking a public STUN server, the one-shot bootstrap step mentioned in
// spec §1 that every other rendezvous step depends on.
package stun

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/stun"

	"duet/application"
	"duet/domain/errkind"
)

// defaultServer is a well-known public STUN server, used when the caller
// has no preference.
const defaultServer = "stun.l.google.com:19302"

const requestTimeout = 5 * time.Second

// Discoverer implements application.PublicAddressDiscoverer over a single
// configured STUN server.
type Discoverer struct {
	server string
}

var _ application.PublicAddressDiscoverer = (*Discoverer)(nil)

// New builds a Discoverer against server, or defaultServer if empty.
func New(server string) *Discoverer {
	if server == "" {
		server = defaultServer
	}
	return &Discoverer{server: server}
}

// Discover opens a UDP socket to the configured STUN server and returns the
// public IP it reports back via a Binding request.
func (d *Discoverer) Discover(ctx context.Context) (net.IP, error) {
	conn, err := net.Dial("udp", d.server)
	if err != nil {
		return nil, fmt.Errorf("%w: dial stun server: %v", errkind.ErrConnection, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(requestTimeout))
	}

	client, err := stun.NewClient(conn)
	if err != nil {
		return nil, fmt.Errorf("%w: build stun client: %v", errkind.ErrConnection, err)
	}
	defer client.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	var publicIP net.IP
	var doErr error
	err = client.Do(message, func(res stun.Event) {
		if res.Error != nil {
			doErr = res.Error
			return
		}
		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			doErr = fmt.Errorf("%w: read xor-mapped address: %v", errkind.ErrConnection, err)
			return
		}
		publicIP = xorAddr.IP
	})
	if err != nil {
		return nil, fmt.Errorf("%w: stun request: %v", errkind.ErrConnection, err)
	}
	if doErr != nil {
		return nil, doErr
	}
	if publicIP == nil {
		return nil, fmt.Errorf("%w: stun server returned no address", errkind.ErrConnection)
	}
	return publicIP, nil
}
