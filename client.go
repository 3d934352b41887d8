package multidns

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// Address used by NewGroup when the system configuration yields no servers.
const defaultServer = "127.0.0.1:53"

// Timeout of a single attempt unless overridden with SetTimeout.
const defaultTimeout = 5 * time.Second

// Client is a DNS resolver for a single upstream server. It sends plain wire
// format queries over UDP by default and can be switched to TCP. Truncated
// UDP responses are retried over TCP unless that is disabled.
type Client struct {
	mu               sync.RWMutex
	host             string
	port             int
	tcp              bool
	ignoreTruncation bool
	edns             int
	tsigName         string
	tsigSecret       string
	timeout          time.Duration
}

var _ Resolver = &Client{}

// NewClient returns a resolver for the given server address. The address can
// be a hostname or IP, with or without a port.
func NewClient(addr string) *Client {
	host, portStr, err := net.SplitHostPort(addr)
	port := 53
	if err != nil {
		host = addr
	} else if p, err := strconv.Atoi(portStr); err == nil {
		port = p
	}
	return &Client{
		host:    host,
		port:    port,
		edns:    -1,
		timeout: defaultTimeout,
	}
}

// Send a query to the server and wait for the response.
func (c *Client) Send(q *dns.Msg) (*dns.Msg, error) {
	c.mu.RLock()
	addr := c.addrLocked()
	tcp := c.tcp
	ignoreTruncation := c.ignoreTruncation
	edns := c.edns
	tsigName, tsigSecret := c.tsigName, c.tsigSecret
	timeout := c.timeout
	c.mu.RUnlock()

	// Packing a message is not always a read-only operation, make a copy
	q = q.Copy()
	if edns >= 0 && q.IsEdns0() == nil {
		q.SetEdns0(dns.DefaultMsgSize, false)
	}

	client := &dns.Client{Timeout: timeout}
	if tcp {
		client.Net = "tcp"
	}
	if tsigName != "" {
		client.TsigSecret = map[string]string{tsigName: tsigSecret}
		q.SetTsig(tsigName, dns.HmacSHA256, 300, time.Now().Unix())
	}

	logger(addr, q).Debug("sending query")
	a, _, err := client.Exchange(q, addr)
	if err != nil {
		return nil, err
	}

	// The truncated UDP response only carries part of the answer, ask
	// again over TCP for the whole message.
	if a.Truncated && !tcp && !ignoreTruncation {
		logger(addr, q).Debug("truncated response, retrying over tcp")
		tcpClient := &dns.Client{Net: "tcp", Timeout: timeout, TsigSecret: client.TsigSecret}
		a, _, err = tcpClient.Exchange(q, addr)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// SendAsync sends a query to the server in the background. The result is
// delivered through the listener, tagged with the returned handle.
func (c *Client) SendAsync(q *dns.Msg, l Listener) Handle {
	h := newHandle()
	go func() {
		a, err := c.Send(q)
		if err != nil {
			l.OnException(h, err)
			return
		}
		l.OnMessage(h, a)
	}()
	return h
}

// SetPort sets the port queries are sent to.
func (c *Client) SetPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.port = port
}

// SetTCP makes the resolver use TCP rather than UDP.
func (c *Client) SetTCP(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tcp = flag
}

// SetIgnoreTruncation determines whether truncated responses are returned
// as-is instead of being retried over TCP.
func (c *Client) SetIgnoreTruncation(flag bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignoreTruncation = flag
}

// SetEDNS sets the EDNS version attached to outgoing queries, only 0 is
// meaningful. A negative value disables EDNS.
func (c *Client) SetEDNS(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edns = level
}

// SetTSIGKey sets the key outgoing messages are signed with. The secret is
// base64-encoded. An empty name disables signing.
func (c *Client) SetTSIGKey(name, secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name == "" {
		c.tsigName, c.tsigSecret = "", ""
		return
	}
	c.tsigName, c.tsigSecret = dns.Fqdn(name), secret
}

// SetTimeout sets how long to wait for the response of a single attempt.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

func (c *Client) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addrLocked()
}

func (c *Client) addrLocked() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}
