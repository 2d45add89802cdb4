// Package eventbus 实现同步事件分发
//
// Dispatcher 按主题保存处理器列表：
//   - Subscribe 追加处理器（保持顺序，允许重复），返回可取消的 Subscription
//   - Dispatch 在发布者 goroutine 中按订阅顺序依次调用处理器；
//     前一个处理器返回后才调用下一个，第一个错误中止后续处理器并返回给发布者
//   - 分发时只持有读锁复制处理器快照，处理器内可再次订阅或发布
//
// # 使用示例
//
//	d := eventbus.New()
//	sub := eventbus.SubscribeTyped(d, func(ctx context.Context, ev types.PeerConnected) error {
//	    fmt.Println("connected:", ev.Endpoint)
//	    return nil
//	})
//	defer sub.Cancel()
//
//	err := d.Dispatch(ctx, types.PeerConnected{Endpoint: ep})
package eventbus
