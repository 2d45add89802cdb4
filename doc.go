// Package udpmesh 实现基于 UDP 的点对点网格节点
//
// 节点拥有一个 UDP 套接字（由完成队列反应器驱动）、一张节点表和一个
// 事件分发器，并在运行期间执行三个后台循环：
//   - 接收循环：解码数据报，处理发现/心跳协议，交付 Data 消息
//   - 健康检查：移除超时节点并向其余活跃节点发送心跳
//   - 发现循环：定期向活跃节点广播 Discovery
//
// # 快速开始
//
//	node, err := udpmesh.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	udpmesh.SubscribeTyped(node, func(ctx context.Context, ev types.MessageReceived) error {
//	    fmt.Printf("%s: %s\n", ev.From, ev.Message.Payload)
//	    return nil
//	})
//
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	_ = node.AddPeer(ctx, types.MustParsePeerID("127.0.0.1:9001"))
//	_ = node.Broadcast(ctx, []byte("hello"))
//
// # 事件
//
// 事件在发布者 goroutine 中同步分发。处理器内可以调用节点的查询与发送
// 方法，但不能调用 Start/Stop/Close。
package udpmesh
