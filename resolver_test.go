package multidns

import (
	"sync"
	"time"

	"github.com/miekg/dns"
)

// testResolver is a scriptable group member. It records the number of
// attempts made against it and the transport settings applied to it. The
// response for each attempt comes from fn, which is run on its own goroutine
// like a real transport would.
type testResolver struct {
	name string
	fn   func(attempt int, q *dns.Msg) (*dns.Msg, error)

	// Invoked synchronously on every dispatch, used to observe dispatch order.
	record func(name string)

	mu   sync.Mutex
	sent int

	port             int
	tcp              bool
	ignoreTruncation bool
	edns             int
	tsigName         string
	tsigSecret       string
	timeout          time.Duration
}

var _ Resolver = &testResolver{}

func (r *testResolver) Send(q *dns.Msg) (*dns.Msg, error) {
	r.mu.Lock()
	r.sent++
	attempt := r.sent
	r.mu.Unlock()
	return r.fn(attempt, q)
}

func (r *testResolver) SendAsync(q *dns.Msg, l Listener) Handle {
	h := newHandle()
	r.mu.Lock()
	r.sent++
	attempt := r.sent
	r.mu.Unlock()
	if r.record != nil {
		r.record(r.name)
	}
	go func() {
		m, err := r.fn(attempt, q)
		if err != nil {
			l.OnException(h, err)
			return
		}
		l.OnMessage(h, m)
	}()
	return h
}

func (r *testResolver) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

func (r *testResolver) SetPort(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.port = port
}

func (r *testResolver) SetTCP(flag bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tcp = flag
}

func (r *testResolver) SetIgnoreTruncation(flag bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignoreTruncation = flag
}

func (r *testResolver) SetEDNS(level int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edns = level
}

func (r *testResolver) SetTSIGKey(name, secret string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tsigName, r.tsigSecret = name, secret
}

func (r *testResolver) SetTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = d
}

func (r *testResolver) String() string {
	return r.name
}

// timeoutError mimics the error of a timed-out network read.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// respondWith returns a stub response function that waits for the given
// delay, then returns m.
func respondWith(m *dns.Msg, delay time.Duration) func(int, *dns.Msg) (*dns.Msg, error) {
	return func(int, *dns.Msg) (*dns.Msg, error) {
		time.Sleep(delay)
		return m, nil
	}
}

// failWith returns a stub response function that waits for the given delay,
// then returns err.
func failWith(err error, delay time.Duration) func(int, *dns.Msg) (*dns.Msg, error) {
	return func(int, *dns.Msg) (*dns.Msg, error) {
		time.Sleep(delay)
		return nil, err
	}
}

func testQuery() *dns.Msg {
	q := new(dns.Msg)
	q.SetQuestion("test.com.", dns.TypeA)
	return q
}

func testResponse(q *dns.Msg, rcode int) *dns.Msg {
	a := new(dns.Msg)
	a.SetRcode(q, rcode)
	return a
}
