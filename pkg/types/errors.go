// Package types 定义 udpmesh 的公共数据结构
//
// 本文件定义所有公共错误类型。
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPeerID 无效的节点 ID
	ErrInvalidPeerID = errors.New("invalid peer ID")

	// ErrInvalidEndpoint 无效端点（地址为空或端口为 0）
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// PeerIDError 节点 ID 解析错误
type PeerIDError struct {
	// PeerID 原始输入
	PeerID string
	// Reason 失败原因
	Reason string
}

func (e *PeerIDError) Error() string {
	return fmt.Sprintf("invalid peer ID %q: %s", e.PeerID, e.Reason)
}

// Unwrap 返回 ErrInvalidPeerID，便于 errors.Is 判断
func (e *PeerIDError) Unwrap() error {
	return ErrInvalidPeerID
}
