package multidns

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// A slow member may still be blocked in its stub function when the group
// returns, so "never responds" is modeled as a delay well above any test
// deadline.
const never = 5 * time.Second

func TestGroupFastestWins(t *testing.T) {
	q := testQuery()
	respA := testResponse(q, dns.RcodeSuccess)
	respB := testResponse(q, dns.RcodeSuccess)

	a := &testResolver{name: "a", fn: respondWith(respA, 10*time.Millisecond)}
	b := &testResolver{name: "b", fn: respondWith(respB, never)}
	c := &testResolver{name: "c", fn: respondWith(respB, never)}

	g, err := NewGroupWith(a, b, c)
	require.NoError(t, err)
	g.SetRetries(2)

	start := time.Now()
	m, err := g.Send(q)
	require.NoError(t, err)
	require.Same(t, respA, m)
	require.Less(t, time.Since(start), time.Second)

	// All three members were started once, none was retried.
	require.Equal(t, 1, a.attempts())
	require.Equal(t, 1, b.attempts())
	require.Equal(t, 1, c.attempts())
}

func TestGroupErrorThenSuccess(t *testing.T) {
	q := testQuery()
	respB := testResponse(q, dns.RcodeSuccess)

	a := &testResolver{name: "a", fn: failWith(errors.New("connection refused"), 0)}
	b := &testResolver{name: "b", fn: respondWith(respB, 30*time.Millisecond)}
	c := &testResolver{name: "c", fn: respondWith(respB, never)}

	g, err := NewGroupWith(a, b, c)
	require.NoError(t, err)
	g.SetRetries(2)

	m, err := g.Send(q)
	require.NoError(t, err)
	require.Same(t, respB, m)

	// The hard error dropped the first server from the rotation, so it was
	// not given its second attempt.
	require.Equal(t, 1, a.attempts())
}

func TestGroupNXDomainBeatsServfail(t *testing.T) {
	q := testQuery()
	servfailA := testResponse(q, dns.RcodeServerFailure)
	nxdomain := testResponse(q, dns.RcodeNameError)
	servfailC := testResponse(q, dns.RcodeServerFailure)

	a := &testResolver{name: "a", fn: respondWith(servfailA, 10*time.Millisecond)}
	b := &testResolver{name: "b", fn: respondWith(nxdomain, 30*time.Millisecond)}
	c := &testResolver{name: "c", fn: respondWith(servfailC, 50*time.Millisecond)}

	g, err := NewGroupWith(a, b, c)
	require.NoError(t, err)
	g.SetRetries(2)

	m, err := g.Send(q)
	require.NoError(t, err)
	require.Same(t, nxdomain, m)

	// Failed responses drop the server from the rotation.
	require.Equal(t, 1, a.attempts())
	require.Equal(t, 1, b.attempts())
	require.Equal(t, 1, c.attempts())
}

func TestGroupServfailOnlyIsReturned(t *testing.T) {
	q := testQuery()
	servfail := testResponse(q, dns.RcodeServerFailure)

	a := &testResolver{name: "a", fn: respondWith(servfail, 0)}

	g, err := NewGroupWith(a)
	require.NoError(t, err)

	m, err := g.Send(q)
	require.NoError(t, err)
	require.Same(t, servfail, m)
}

func TestGroupAllErrors(t *testing.T) {
	q := testQuery()
	errA := errors.New("refused a")
	errB := errors.New("refused b")
	errC := errors.New("refused c")

	a := &testResolver{name: "a", fn: failWith(errA, 0)}
	b := &testResolver{name: "b", fn: failWith(errB, 20*time.Millisecond)}
	c := &testResolver{name: "c", fn: failWith(errC, 40*time.Millisecond)}

	g, err := NewGroupWith(a, b, c)
	require.NoError(t, err)
	g.SetRetries(2)

	_, err = g.Send(q)
	require.ErrorIs(t, err, errA)
}

func TestGroupTransientErrorRetries(t *testing.T) {
	q := testQuery()
	respB := testResponse(q, dns.RcodeSuccess)

	// The first server times out on both attempts. Timeouts keep it in the
	// rotation, so it is retried up to the attempt limit.
	a := &testResolver{name: "a", fn: failWith(timeoutError{}, 0)}
	b := &testResolver{name: "b", fn: respondWith(respB, 50*time.Millisecond)}

	g, err := NewGroupWith(a, b)
	require.NoError(t, err)
	g.SetRetries(2)

	m, err := g.Send(q)
	require.NoError(t, err)
	require.Same(t, respB, m)
	require.Equal(t, 2, a.attempts())
}

func TestGroupExhaustedReturnsFirstError(t *testing.T) {
	q := testQuery()

	a := &testResolver{name: "a", fn: failWith(timeoutError{}, 0)}
	b := &testResolver{name: "b", fn: failWith(timeoutError{}, 5*time.Millisecond)}

	g, err := NewGroupWith(a, b)
	require.NoError(t, err)
	g.SetRetries(2)

	_, err = g.Send(q)
	require.Error(t, err)
	require.ErrorIs(t, err, timeoutError{})

	// Bounded retries even for servers that stay in the rotation.
	require.Equal(t, 2, a.attempts())
	require.Equal(t, 2, b.attempts())
}

func TestGroupLoadBalance(t *testing.T) {
	q := testQuery()
	resp := testResponse(q, dns.RcodeSuccess)

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	a := &testResolver{name: "a", fn: respondWith(resp, 20*time.Millisecond), record: record}
	b := &testResolver{name: "b", fn: respondWith(resp, 20*time.Millisecond), record: record}
	c := &testResolver{name: "c", fn: respondWith(resp, 20*time.Millisecond), record: record}

	g, err := NewGroupWith(a, b, c)
	require.NoError(t, err)
	g.SetLoadBalance(true)

	// The scan start rotates between queries.
	for _, first := range []string{"a", "b", "c", "a"} {
		mu.Lock()
		order = nil
		mu.Unlock()

		_, err = g.Send(q)
		require.NoError(t, err)

		mu.Lock()
		require.NotEmpty(t, order)
		require.Equal(t, first, order[0])
		mu.Unlock()
	}
}

func TestGroupNoResolvers(t *testing.T) {
	_, err := NewGroupWith()
	require.ErrorIs(t, err, ErrNoResolvers)

	_, err = NewGroupFromServers(nil)
	require.ErrorIs(t, err, ErrNoResolvers)
}

func TestGroupFanOutSetters(t *testing.T) {
	members := []*testResolver{{name: "a"}, {name: "b"}, {name: "c"}}
	g, err := NewGroupWith(members[0], members[1], members[2])
	require.NoError(t, err)

	g.SetPort(5353)
	g.SetTCP(true)
	g.SetIgnoreTruncation(true)
	g.SetEDNS(0)
	g.SetTSIGKey("example.", "c2VjcmV0")
	g.SetTimeout(time.Second)

	for _, m := range members {
		m.mu.Lock()
		require.Equal(t, 5353, m.port)
		require.True(t, m.tcp)
		require.True(t, m.ignoreTruncation)
		require.Equal(t, 0, m.edns)
		require.Equal(t, "example.", m.tsigName)
		require.Equal(t, "c2VjcmV0", m.tsigSecret)
		require.Equal(t, time.Second, m.timeout)
		m.mu.Unlock()
	}
}

func TestGroupResolverList(t *testing.T) {
	a := &testResolver{name: "a"}
	b := &testResolver{name: "b"}

	g, err := NewGroupWith(a)
	require.NoError(t, err)

	g.AddResolver(b)
	require.Len(t, g.GetResolvers(), 2)
	require.Equal(t, b, g.GetResolver(1))

	// Members added later get the same short default timeout as members
	// built at construction.
	b.mu.Lock()
	require.Equal(t, quantum, b.timeout)
	b.mu.Unlock()

	require.Nil(t, g.GetResolver(2))
	require.Nil(t, g.GetResolver(-1))

	g.DeleteResolver(a)
	require.Len(t, g.GetResolvers(), 1)
	require.Equal(t, b, g.GetResolver(0))
}

func TestGroupFromServersDefaults(t *testing.T) {
	g, err := NewGroupFromServers([]string{"192.0.2.1", "192.0.2.2:5353"})
	require.NoError(t, err)

	resolvers := g.GetResolvers()
	require.Len(t, resolvers, 2)
	require.Equal(t, "192.0.2.1:53", resolvers[0].String())
	require.Equal(t, "192.0.2.2:5353", resolvers[1].String())

	for _, r := range resolvers {
		require.Equal(t, quantum, r.(*Client).timeout)
	}
}
