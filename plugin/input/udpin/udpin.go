// Package udpin implements spec.md §6.1's input-plugin interface over a UDP
// socket, grounded directly in the teacher's UDPListener (udp.go): a single
// reader goroutine, SO_REUSEADDR/SO_REUSEPORT for multi-process fan-in, and
// a buffered channel moving packet ownership from the socket goroutine to
// whatever calls GetPacket, so a slow preprocessor never blocks the kernel
// receive path longer than the channel's capacity allows.
package udpin

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"

	"github.com/CESNET/ipfixcol-sub004/decode"
	"github.com/CESNET/ipfixcol-sub004/obs"
	"github.com/CESNET/ipfixcol-sub004/plugin"
	"github.com/CESNET/ipfixcol-sub004/source"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// PacketBufferSize bounds one read from the socket. IPFIX/NetFlow messages
// are limited to 65535 bytes by the wire header's length field.
var PacketBufferSize = 65535

// ChannelBufferSize is how many already-read datagrams may queue between
// the socket goroutine and GetPacket callers before the socket read loop
// blocks.
var ChannelBufferSize = 64

type packet struct {
	buf  []byte
	addr *net.UDPAddr
	sig  plugin.Signal
	err  error
}

// Plugin implements plugin.InputPlugin for a UDP listener bound to one
// address.
type Plugin struct {
	BindAddr string
}

// params, when non-empty, is a YAML document of the same shape as Plugin and
// overrides BindAddr; this lets a config.Input spell `bind_addr` directly
// without the caller pre-building a Plugin value.
func (p Plugin) Init(params []byte) (plugin.InputHandle, error) {
	if len(params) > 0 {
		var override struct {
			BindAddr string `yaml:"bind_addr"`
		}
		if err := yaml.Unmarshal(params, &override); err != nil {
			return nil, err
		}
		if override.BindAddr != "" {
			p.BindAddr = override.BindAddr
		}
	}

	h := &handle{bindAddr: p.BindAddr, packets: make(chan packet, ChannelBufferSize)}
	if err := h.listen(); err != nil {
		return nil, err
	}
	return h, nil
}

type handle struct {
	bindAddr string
	packets  chan packet

	listener net.PacketConn
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (h *handle) listen() error {
	addr, err := net.ResolveUDPAddr("udp", h.bindAddr)
	if err != nil {
		return err
	}

	listenConfig := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			ctrlErr := c.Control(func(fd uintptr) {
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return sockErr
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := listenConfig.ListenPacket(ctx, "udp", addr.String())
	if err != nil {
		cancel()
		return err
	}
	h.listener = conn
	h.cancel = cancel

	h.wg.Add(1)
	go h.readLoop()
	return nil
}

func (h *handle) readLoop() {
	defer h.wg.Done()
	defer close(h.packets)

	logger := obs.FromContext(context.Background(), "component", "udpin", "addr", h.bindAddr)
	buf := make([]byte, PacketBufferSize)
	for {
		n, addr, err := h.listener.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				h.packets <- packet{sig: plugin.SignalClosed}
				return
			}
			logger.Error(err, "udp read failed")
			h.packets <- packet{sig: plugin.SignalError, err: err}
			return
		}

		copied := make([]byte, n)
		copy(copied, buf[:n])
		udpAddr, _ := addr.(*net.UDPAddr)
		h.packets <- packet{buf: copied, addr: udpAddr}
	}
}

// GetPacket implements plugin.InputHandle, spec.md §6.1.
func (h *handle) GetPacket() ([]byte, source.Info, decode.SourceStatus, plugin.Signal, error) {
	p, ok := <-h.packets
	if !ok {
		return nil, source.Info{}, decode.StatusClosed, plugin.SignalClosed, nil
	}
	if p.sig != plugin.SignalNone {
		return nil, source.Info{}, decode.StatusClosed, p.sig, p.err
	}

	info := source.Info{Transport: "udp"}
	if p.addr != nil {
		info.Addr = p.addr.IP
		info.Port = uint16(p.addr.Port)
	}
	return p.buf, info, decode.StatusOpened, plugin.SignalNone, nil
}

func (h *handle) Close() error {
	h.cancel()
	err := h.listener.Close()
	h.wg.Wait()
	return err
}
