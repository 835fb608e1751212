// Package netpoller implements dcb.Poller over the OS-native readiness
// multiplexer: epoll on Linux, kqueue on Darwin/BSD. It is the concrete
// Poller collaborator the DCB core is written against (spec §6): the
// core never touches epoll/kqueue directly, only this package does.
//
// Several worker goroutines (Poller.Run) share the same underlying
// epoll/kqueue descriptor, each blocking in its own wait syscall; the
// kernel distributes ready fds across whichever worker happens to be
// waiting. LiveWorkers reports which worker ids are currently inside
// Run's loop (blocked in the wait syscall or dispatching), a superset of
// the workers that may be mid-dispatch, which is the bitmask the DCB
// close path snapshots (spec §4.6 step 2, §4.7).
//
// Grounded on eventloop/poller_linux.go and eventloop/poller_darwin.go's
// FastPoller: direct fd-keyed registration table protected by an
// RWMutex, syscall outside the lock, callback copied under the lock
// then invoked outside it.
package netpoller
