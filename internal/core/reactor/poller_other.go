//go:build !linux

package reactor

func newPoller(int) (poller, error) {
	return nil, ErrUnsupportedPlatform
}
