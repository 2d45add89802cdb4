package peerstore

import "errors"

var (
	// ErrNotFound 节点未找到
	ErrNotFound = errors.New("peer not found")

	// ErrPeerTableFull 节点表已满
	ErrPeerTableFull = errors.New("peer table full")
)
