package receiver

import (
	"context"
	"net"
	"sync"
	"time"
)

type packet struct {
	data []byte
	from net.Addr
}

// fakeConn is an in-memory net.PacketConn fed by tests.
type fakeConn struct {
	packets chan packet
	errs    chan error
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		packets: make(chan packet, 64),
		errs:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) send(data []byte, from string) {
	c.packets <- packet{data: data, from: &net.UDPAddr{IP: net.ParseIP(from), Port: 4000}}
}

func (c *fakeConn) fail(err error) {
	c.errs <- err
}

func (c *fakeConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case pkt := <-c.packets:
		return copy(p, pkt.data), pkt.from, nil
	case err := <-c.errs:
		return 0, nil, err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteTo(p []byte, addr net.Addr) (int, error) { return len(p), nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) LocalAddr() net.Addr                { return &net.UDPAddr{Port: 4000} }
func (c *fakeConn) SetDeadline(t time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// fakeDialer hands out a new fakeConn per call and remembers them.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	hosts []string
	err   error
}

func (d *fakeDialer) ListenPacket(ctx context.Context, host string, port int) (net.PacketConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hosts = append(d.hosts, host)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

// eventually polls cond until it holds or the timeout elapses.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
