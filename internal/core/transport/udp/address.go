package udp

import (
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/dep2p/go-udpmesh/pkg/types"
)

// resolve 将地址与端口解析为 IPv4 套接字地址
//
// 优先按 IPv4 字面量解析，否则通过 DNS 查询 "udp4"。
func resolve(address string, port uint16) (*unix.SockaddrInet4, error) {
	if addr, err := netip.ParseAddr(address); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
		}
		return &unix.SockaddrInet4{Addr: addr.As4(), Port: int(port)}, nil
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(address, "0"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, address, err)
	}
	ip4 := udpAddr.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}

	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// endpointOf 将套接字地址转换为端点
func endpointOf(sa unix.Sockaddr) types.Endpoint {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return types.Endpoint{Address: netip.AddrFrom4(a.Addr).String(), Port: uint16(a.Port)}
	case *unix.SockaddrInet6:
		return types.Endpoint{Address: netip.AddrFrom16(a.Addr).Unmap().String(), Port: uint16(a.Port)}
	default:
		return types.Endpoint{}
	}
}
