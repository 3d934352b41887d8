package multidns

import (
	"sync"

	"github.com/miekg/dns"
)

// answer is one entry in the per-query response queue: a response message or
// an I/O error, tagged with the index of the server it came from.
type answer struct {
	msg *dns.Msg
	err error
	res int
}

// idTable maps in-flight async handles to the index of the server they were
// dispatched to. take removes the entry, so each handle resolves at most once.
type idTable struct {
	mu sync.Mutex
	m  map[Handle]int
}

func newIDTable() *idTable {
	return &idTable{m: make(map[Handle]int)}
}

func (t *idTable) take(h Handle) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.m[h]
	if ok {
		delete(t.m, h)
	}
	return res, ok
}

// receiver bridges per-server callbacks into the response queue of one query.
// The queue is buffered for the maximum number of dispatches the query can
// make, so callbacks never block even after the query has returned.
type receiver struct {
	ids   *idTable
	queue chan answer
}

var _ Listener = &receiver{}

func newReceiver(capacity int) *receiver {
	return &receiver{
		ids:   newIDTable(),
		queue: make(chan answer, capacity),
	}
}

// dispatch sends q to the member with index res. The id-table lock is held
// across SendAsync so the handle is registered before the member can deliver
// its callback.
func (rc *receiver) dispatch(q *dns.Msg, member Resolver, res int) {
	rc.ids.mu.Lock()
	defer rc.ids.mu.Unlock()
	h := member.SendAsync(q, rc)
	rc.ids.m[h] = res
}

// OnMessage implements Listener. Callbacks for unknown (or already resolved)
// handles are dropped.
func (rc *receiver) OnMessage(h Handle, m *dns.Msg) {
	if res, ok := rc.ids.take(h); ok {
		rc.queue <- answer{msg: m, res: res}
	}
}

// OnException implements Listener.
func (rc *receiver) OnException(h Handle, err error) {
	if res, ok := rc.ids.take(h); ok {
		rc.queue <- answer{err: err, res: res}
	}
}
