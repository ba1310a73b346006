package receiver

import (
	"context"
	"fmt"
	"net"
)

// Dialer opens the packet socket a session reads from.
type Dialer interface {
	ListenPacket(ctx context.Context, host string, port int) (net.PacketConn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, host string, port int) (net.PacketConn, error)

// ListenPacket calls f.
func (f DialerFunc) ListenPacket(ctx context.Context, host string, port int) (net.PacketConn, error) {
	return f(ctx, host, port)
}

// UDPDialer binds a UDP socket on all interfaces at the GDL90 port.
// Receivers broadcast or unicast to that port; the host is used only for
// source filtering.
type UDPDialer struct{}

// ListenPacket implements Dialer.
func (UDPDialer) ListenPacket(ctx context.Context, host string, port int) (net.PacketConn, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on udp port %d: %w", port, err)
	}
	return conn, nil
}

// LookupFunc resolves a host name, matching net.Resolver.LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// resolveSource returns the IP datagrams must come from, or nil to accept
// any source. Unspecified, broadcast and multicast hosts accept any source.
func resolveSource(ctx context.Context, lookup LookupFunc, host string) (net.IP, error) {
	if host == "" {
		return nil, nil
	}

	ip := net.ParseIP(host)
	if ip == nil {
		addrs, err := lookup(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve receiver host %q: %w", host, err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("failed to resolve receiver host %q: no addresses", host)
		}
		ip = addrs[0].IP
	}

	if ip.IsUnspecified() || ip.IsMulticast() || ip.Equal(net.IPv4bcast) {
		return nil, nil
	}
	return ip, nil
}

// sourceIP extracts the IP from a datagram source address.
func sourceIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	}
	if addr == nil {
		return nil
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
