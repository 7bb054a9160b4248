package cache

import "time"

// chanMutex is a mutex with a bounded-wait Lock, used wherever §5 requires
// a suspension point to honour a timeout instead of blocking forever
// (cache mutations default to a 1s budget, startup load to 5s).
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) Lock(timeout time.Duration) bool {
	select {
	case <-m:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (m chanMutex) Unlock() {
	m <- struct{}{}
}
