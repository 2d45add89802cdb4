// Package metrics 提供节点运行指标
//
// 基于 prometheus/client_golang 暴露计数器与仪表，注册到调用方提供的
// Registerer（未提供时使用私有 Registry）：
//
//	udpmesh_datagrams_sent_total          已发送数据报
//	udpmesh_datagrams_received_total      已接收数据报
//	udpmesh_bytes_sent_total              已发送字节
//	udpmesh_bytes_received_total          已接收字节
//	udpmesh_io_errors_total{op}           I/O 失败
//	udpmesh_decode_errors_total           解码失败
//	udpmesh_dropped_messages_total{reason} 丢弃消息
//	udpmesh_peers                         当前节点表大小
//	udpmesh_events_dispatched_total{topic} 已分发事件
//
// 另外以 RateMeter 统计最近 60 秒的收发速率，供 Snapshot 使用。
//
// 所有记录方法对 nil *Metrics 安全，组件可在未启用指标时直接调用。
package metrics
