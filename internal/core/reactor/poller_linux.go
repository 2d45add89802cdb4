//go:build linux

package reactor

import (
	"encoding/binary"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// epollPoller 基于 epoll + eventfd 的轮询器
//
// 套接字以边沿触发注册；反应器在每次等待前把挂起操作尝试到 EAGAIN，
// 因此不会错过就绪边沿。
type epollPoller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
}

func newPoller(fd int) (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, &IOError{Op: "epoll_create", Errno: errnoOf(err)}
	}

	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, &IOError{Op: "eventfd", Errno: errnoOf(err)}
	}

	p := &epollPoller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, 4),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLET,
		Fd:     int32(fd),
	}); err != nil {
		_ = p.close()
		return nil, &IOError{Op: "epoll_ctl", Errno: errnoOf(err)}
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakefd),
	}); err != nil {
		_ = p.close()
		return nil, &IOError{Op: "epoll_ctl", Errno: errnoOf(err)}
	}

	return p, nil
}

func (p *epollPoller) wait() error {
	for {
		n, err := unix.EpollWait(p.epfd, p.events, -1)
		if err == unix.EINTR || err == unix.EAGAIN {
			continue
		}
		if err != nil {
			return &IOError{Op: "epoll_wait", Errno: errnoOf(err)}
		}
		for i := 0; i < n; i++ {
			if int(p.events[i].Fd) == p.wakefd {
				p.drainWake()
			}
		}
		return nil
	}
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakefd, buf[:]); err != nil {
			return
		}
	}
}

func (p *epollPoller) wake() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.wakefd, buf[:])
	if err == unix.EAGAIN {
		// 计数器已满，说明唤醒尚未被消费
		return nil
	}
	return err
}

func (p *epollPoller) close() error {
	return multierr.Combine(unix.Close(p.wakefd), unix.Close(p.epfd))
}

func errnoOf(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}
