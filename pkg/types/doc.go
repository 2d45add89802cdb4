// Package types 定义 udpmesh 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - endpoint.go - Endpoint 与 PeerID 编解码
//   - peer.go     - Peer 节点表条目
//   - message.go  - MessageType, MessageHeader, Message
//   - events.go   - 事件和类型（封闭集合）及主题名
//   - errors.go   - 公共错误定义
//
// wire format 的编解码位于 internal/core/codec。
package types
