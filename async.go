package multidns

import (
	"sync/atomic"

	"github.com/gammazero/workerpool"
	"github.com/miekg/dns"
)

// Process-wide counter producing unique async handles.
var nextHandle atomic.Uint64

func newHandle() Handle {
	return Handle(nextHandle.Add(1))
}

// Pool hosting the blocking sends behind Group.SendAsync. Per-server attempts
// run on their own goroutines, so pool workers never wait on each other.
var asyncPool = workerpool.New(8)

// SendAsync sends a query against the group in the background. The result is
// delivered through the listener, tagged with the returned handle. Exactly
// one of the listener's methods is invoked, exactly once.
func (g *Group) SendAsync(q *dns.Msg, l Listener) Handle {
	h := newHandle()
	asyncPool.Submit(func() {
		a, err := g.Send(q)
		if err != nil {
			l.OnException(h, err)
			return
		}
		l.OnMessage(h, a)
	})
	return h
}
