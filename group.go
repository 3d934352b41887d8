package multidns

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

const (
	// Timeout of a single attempt for members created by the group. Kept
	// short so retry pressure builds while the overall query is still
	// within typical caller timeouts.
	quantum = 20 * time.Second

	// Default number of attempts per server for one query.
	defaultRetries = 3
)

// Group is a resolver that sends queries to multiple servers, sending a query
// multiple times per server if necessary. Members are tried in order with one
// outstanding attempt per server, a server that returns a failed response or
// a hard I/O error is dropped from the rotation for the rest of the query.
// The first NOERROR response wins, failed responses are arbitrated with
// NXDOMAIN preferred over other failure codes.
type Group struct {
	mu          sync.RWMutex
	resolvers   []Resolver
	retries     int
	loadBalance bool
	// Start of the dispatch scan, advanced once per query when load
	// balancing. Racing updates can skip or repeat a rotation, which only
	// costs an uneven query distribution.
	lbStart atomic.Uint32
	metrics *GroupMetrics
}

var _ Resolver = &Group{}

// NewGroup returns a group with one member per nameserver found in the
// system resolver configuration. If none can be found, a single member
// querying localhost is created. Member timeouts are set short to leave room
// for retries.
func NewGroup() (*Group, error) {
	servers := findServers()
	if len(servers) == 0 {
		servers = []string{defaultServer}
	}
	return NewGroupFromServers(servers)
}

// NewGroupFromServers returns a group with one member per server address.
// Addresses without a port are assigned the default DNS port. Member
// timeouts are set short to leave room for retries.
func NewGroupFromServers(servers []string) (*Group, error) {
	if len(servers) == 0 {
		return nil, ErrNoResolvers
	}
	g := newGroup()
	for _, server := range servers {
		c := NewClient(server)
		c.SetTimeout(quantum)
		g.resolvers = append(g.resolvers, c)
	}
	return g, nil
}

// NewGroupWith returns a group that adopts the given pre-built resolvers
// as-is, leaving their timeouts untouched.
func NewGroupWith(resolvers ...Resolver) (*Group, error) {
	if len(resolvers) == 0 {
		return nil, ErrNoResolvers
	}
	g := newGroup()
	g.resolvers = append(g.resolvers, resolvers...)
	return g, nil
}

func newGroup() *Group {
	return &Group{
		retries: defaultRetries,
		metrics: NewGroupMetrics("group"),
	}
}

// Send dispatches the query against the group's servers until a response can
// be returned. It blocks until the first NOERROR response arrives, or until
// every server has either been exhausted or dropped from the rotation.
func (g *Group) Send(q *dns.Msg) (*dns.Msg, error) {
	g.mu.RLock()
	resolvers := make([]Resolver, len(g.resolvers))
	copy(resolvers, g.resolvers)
	retries := g.retries
	loadBalance := g.loadBalance
	g.mu.RUnlock()

	n := len(resolvers)
	if n == 0 {
		return nil, ErrNoResolvers
	}

	log := logger("group", q)

	var (
		sent    = make([]int, n)
		recvd   = make([]int, n)
		invalid = make([]bool, n)
		rc      = newReceiver(n * retries)
		best    *dns.Msg
		bestErr error
	)

	start := 0
	if loadBalance {
		start = int(g.lbStart.Add(1)-1) % n
	}

	for {
		// Scan for the next dispatch slot: a server with no outstanding
		// attempt, attempts left, and still in the rotation. Servers with an
		// outstanding attempt keep the query alive without a new dispatch.
		waiting := false
		dispatched := false
		for i := 0; i < n; i++ {
			r := (start + i) % n
			if sent[r] == recvd[r] && sent[r] < retries && !invalid[r] {
				log.WithFields(logrus.Fields{
					"server":  resolvers[r].String(),
					"attempt": sent[r] + 1,
				}).Debug("dispatching query")
				g.metrics.dispatch.Add(resolvers[r].String(), 1)
				rc.dispatch(q, resolvers[r], r)
				sent[r]++
				waiting = true
				dispatched = true
				break
			}
			if recvd[r] < sent[r] {
				waiting = true
			}
		}
		if !waiting {
			break
		}
		if dispatched {
			// Start the remaining servers before blocking on a response.
			continue
		}

		a := <-rc.queue
		recvd[a.res]++

		if a.err != nil {
			log.WithError(a.err).WithField("server", resolvers[a.res].String()).Debug("server returned error")
			g.metrics.failure.Add(resolvers[a.res].String(), 1)
			if !isTransient(a.err) {
				invalid[a.res] = true
			}
			if bestErr == nil {
				bestErr = a.err
			}
			continue
		}

		if a.msg.Rcode == dns.RcodeSuccess {
			log.WithField("server", resolvers[a.res].String()).Debug("server returned answer")
			g.metrics.answered.Add(1)
			return a.msg, nil
		}

		// A failed response is held in case nothing better arrives.
		// Authoritative non-existence beats generic failure.
		log.WithFields(logrus.Fields{
			"server": resolvers[a.res].String(),
			"rcode":  rCode(a.msg),
		}).Debug("server returned failure code")
		if best == nil || (a.msg.Rcode == dns.RcodeNameError && best.Rcode != dns.RcodeNameError) {
			best = a.msg
		}
		g.metrics.stashed.Add(1)
		invalid[a.res] = true
	}

	if best != nil {
		g.metrics.answered.Add(1)
		return best, nil
	}
	if bestErr != nil {
		return nil, bestErr
	}
	return nil, ErrNoResponse
}

// AddResolver adds a member to the group. Like members built at construction
// it is given the short per-attempt timeout.
func (g *Group) AddResolver(r Resolver) {
	r.SetTimeout(quantum)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolvers = append(g.resolvers, r)
}

// DeleteResolver removes a member from the group.
func (g *Group) DeleteResolver(r Resolver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	filtered := make([]Resolver, 0, len(g.resolvers))
	for _, member := range g.resolvers {
		if member == r {
			continue
		}
		filtered = append(filtered, member)
	}
	g.resolvers = filtered
}

// GetResolver returns the i'th member of the group, or nil if there is none.
func (g *Group) GetResolver(i int) Resolver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i < 0 || i >= len(g.resolvers) {
		return nil
	}
	return g.resolvers[i]
}

// GetResolvers returns all members of the group.
func (g *Group) GetResolvers() []Resolver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	resolvers := make([]Resolver, len(g.resolvers))
	copy(resolvers, g.resolvers)
	return resolvers
}

// SetLoadBalance determines whether the server the dispatch scan starts with
// rotates between queries. Without it, servers are always tried in the order
// they were added.
func (g *Group) SetLoadBalance(flag bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadBalance = flag
}

// SetRetries sets the number of attempts per server for one query.
func (g *Group) SetRetries(retries int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retries = retries
}

// SetPort sets the port on all members.
func (g *Group) SetPort(port int) {
	for _, r := range g.GetResolvers() {
		r.SetPort(port)
	}
}

// SetTCP sets the TCP flag on all members.
func (g *Group) SetTCP(flag bool) {
	for _, r := range g.GetResolvers() {
		r.SetTCP(flag)
	}
}

// SetIgnoreTruncation sets truncation handling on all members.
func (g *Group) SetIgnoreTruncation(flag bool) {
	for _, r := range g.GetResolvers() {
		r.SetIgnoreTruncation(flag)
	}
}

// SetEDNS sets the EDNS level on all members.
func (g *Group) SetEDNS(level int) {
	for _, r := range g.GetResolvers() {
		r.SetEDNS(level)
	}
}

// SetTSIGKey sets the TSIG key on all members.
func (g *Group) SetTSIGKey(name, secret string) {
	for _, r := range g.GetResolvers() {
		r.SetTSIGKey(name, secret)
	}
}

// SetTimeout sets the per-attempt timeout on all members.
func (g *Group) SetTimeout(d time.Duration) {
	for _, r := range g.GetResolvers() {
		r.SetTimeout(d)
	}
}

func (g *Group) String() string {
	var s []string
	for _, resolver := range g.GetResolvers() {
		s = append(s, resolver.String())
	}
	return fmt.Sprintf("Group(%s)", strings.Join(s, ";"))
}
