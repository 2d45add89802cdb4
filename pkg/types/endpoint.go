package types

import (
	"net"
	"strconv"
)

// Endpoint 节点网络端点
//
// 值类型。PeerID() 生成节点表使用的规范键 "address:port"。
type Endpoint struct {
	// Address 主机地址（IP 或主机名）
	Address string `json:"address"`

	// Port UDP 端口
	Port uint16 `json:"port"`
}

// NewEndpoint 创建端点
func NewEndpoint(address string, port uint16) Endpoint {
	return Endpoint{Address: address, Port: port}
}

// IsValid 端点是否有效
func (e Endpoint) IsValid() bool {
	return e.Port > 0 && e.Address != ""
}

// PeerID 返回规范节点 ID
//
// IPv4 与主机名形如 "127.0.0.1:9000"，IPv6 带方括号。
func (e Endpoint) PeerID() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(int(e.Port)))
}

// String 返回可读字符串
func (e Endpoint) String() string {
	return e.PeerID()
}

// ParsePeerID 从节点 ID 解析端点
//
// 输入格式错误时返回零值 Endpoint 与 *PeerIDError（可用
// errors.Is(err, ErrInvalidPeerID) 判断），不会 panic。
func ParsePeerID(peerID string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(peerID)
	if err != nil {
		return Endpoint{}, &PeerIDError{PeerID: peerID, Reason: "missing host:port separator"}
	}
	if host == "" {
		return Endpoint{}, &PeerIDError{PeerID: peerID, Reason: "empty address"}
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, &PeerIDError{PeerID: peerID, Reason: "port is not a 16-bit number"}
	}
	if port == 0 {
		return Endpoint{}, &PeerIDError{PeerID: peerID, Reason: "port is zero"}
	}

	return Endpoint{Address: host, Port: uint16(port)}, nil
}

// MustParsePeerID 解析节点 ID，失败时 panic（仅用于测试和常量）
func MustParsePeerID(peerID string) Endpoint {
	ep, err := ParsePeerID(peerID)
	if err != nil {
		panic(err)
	}
	return ep
}
