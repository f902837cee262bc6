package datatype

import (
	"fmt"
	"net"
)

func decodeAddress(k Kind, buf []byte) (Value, error) {
	want := int(k.DefaultLength())
	if len(buf) != want {
		return Value{}, fmt.Errorf("datatype: %w: %s expects %d bytes, got %d", ErrIllegalEncoding, k, want, len(buf))
	}
	return Value{Kind: k, Raw: buf}, nil
}

// MAC interprets a decoded Value of Kind Mac as a hardware address. The
// returned net.HardwareAddr aliases Value.Raw.
func (v Value) MAC() net.HardwareAddr {
	return net.HardwareAddr(v.Raw)
}

// IP interprets a decoded Value of Kind IPv4 or IPv6 as a net.IP. The
// returned value aliases Value.Raw.
func (v Value) IP() net.IP {
	return net.IP(v.Raw)
}

// EncodeMAC writes a hardware address in its native 6-byte form.
func EncodeMAC(addr net.HardwareAddr) []byte {
	return append([]byte(nil), addr...)
}

// EncodeIPv4 writes an IPv4 address in its native 4-byte form.
func EncodeIPv4(ip net.IP) []byte {
	v4 := ip.To4()
	return append([]byte(nil), v4...)
}

// EncodeIPv6 writes an IPv6 address in its native 16-byte form.
func EncodeIPv6(ip net.IP) []byte {
	v6 := ip.To16()
	return append([]byte(nil), v6...)
}
