package discovery

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 载荷字段编号
//
//	DiscoveryResponse { uint64 request_id = 1; }
//	PeerList          { repeated string peer_id = 2; }
const (
	fieldRequestID protowire.Number = 1
	fieldPeerID    protowire.Number = 2
)

// EncodeDiscoveryResponse 编码发现应答载荷
func EncodeDiscoveryResponse(requestID uint64) []byte {
	b := protowire.AppendTag(nil, fieldRequestID, protowire.VarintType)
	return protowire.AppendVarint(b, requestID)
}

// DecodeDiscoveryResponse 解码发现应答载荷，返回请求 ID
func DecodeDiscoveryResponse(b []byte) (uint64, error) {
	var (
		requestID uint64
		found     bool
	)
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldRequestID && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			requestID, found = v, true
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: missing request_id", ErrMalformedPayload)
	}
	return requestID, nil
}

// EncodePeerList 编码节点列表载荷
func EncodePeerList(peerIDs []string) []byte {
	var b []byte
	for _, id := range peerIDs {
		b = protowire.AppendTag(b, fieldPeerID, protowire.BytesType)
		b = protowire.AppendString(b, id)
	}
	return b
}

// DecodePeerList 解码节点列表载荷
func DecodePeerList(b []byte) ([]string, error) {
	var ids []string
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == fieldPeerID && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			ids = append(ids, v)
			return n, nil
		}
		return skipField(num, typ, b)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// walkFields 依次读取字段，fn 返回值部分消耗的字节数
func walkFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("%w: field %d: %v", ErrMalformedPayload, num, err)
		}
		b = b[m:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, nil
}
