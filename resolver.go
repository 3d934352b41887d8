package multidns

import (
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// Handle identifies an in-flight asynchronous query. It is returned by
// SendAsync and passed back to the listener so a callback can be correlated
// with the query that caused it.
type Handle uint64

// Listener receives the outcome of an asynchronous send. For every handle
// returned by SendAsync, exactly one of the two methods is invoked, exactly
// once, on a goroutine other than the one that called SendAsync.
type Listener interface {
	OnMessage(h Handle, m *dns.Msg)
	OnException(h Handle, err error)
}

// Resolver is the interface shared by single-server and multi-server
// resolvers. Send performs one blocking lookup, SendAsync performs the same
// lookup in the background and delivers the result through the listener.
//
// The setters configure the transport of the resolver. On a group they are
// fanned out to every member.
type Resolver interface {
	Send(q *dns.Msg) (*dns.Msg, error)
	SendAsync(q *dns.Msg, l Listener) Handle

	// SetPort sets the port queries are sent to.
	SetPort(port int)

	// SetTCP makes the resolver use TCP rather than UDP.
	SetTCP(flag bool)

	// SetIgnoreTruncation determines whether truncated responses are
	// returned as-is instead of being retried over TCP.
	SetIgnoreTruncation(flag bool)

	// SetEDNS sets the EDNS version attached to outgoing queries, only 0
	// is meaningful. A negative value disables EDNS.
	SetEDNS(level int)

	// SetTSIGKey sets the key outgoing messages are signed with. The
	// secret is base64-encoded. An empty name disables signing.
	SetTSIGKey(name, secret string)

	// SetTimeout sets how long to wait for the response of a single attempt.
	SetTimeout(d time.Duration)

	fmt.Stringer
}
