package reactor

// poller 等待套接字就绪或提交唤醒
type poller interface {
	// wait 阻塞直至 fd 可能就绪或被唤醒；EINTR/EAGAIN 由实现重试
	wait() error
	// wake 唤醒 wait
	wake() error
	// close 释放轮询资源（不关闭被监听的 fd）
	close() error
}
