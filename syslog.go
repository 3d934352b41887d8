package multidns

import (
	"fmt"
	"strings"

	syslog "github.com/RackSec/srslog"
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Syslog forwards every query unmodified and logs the content to syslog.
type Syslog struct {
	Resolver
	writer *syslog.Writer
	opt    SyslogOptions
}

var _ Resolver = &Syslog{}

type SyslogOptions struct {
	// "udp", "tcp", "unix". Empty connects to the local syslog socket
	Network string

	// Remote address, defaults to local syslog server
	Address string

	// Priority value as per https://pkg.go.dev/log/syslog#Priority
	Priority int

	// Syslog tag
	Tag string

	// Log requests and/or responses
	LogRequest  bool
	LogResponse bool
}

// NewSyslog returns a resolver that wraps another one and sends query details
// via syslog.
func NewSyslog(resolver Resolver, opt SyslogOptions) *Syslog {
	writer, err := syslog.Dial(opt.Network, opt.Address, syslog.Priority(opt.Priority), opt.Tag)
	if err != nil {
		// Log any error but don't block if this fails
		logrus.New().WithError(err).Error("failed to initialize syslog")
	}
	return &Syslog{
		Resolver: resolver,
		writer:   writer,
		opt:      opt,
	}
}

// Send passes a DNS query through unmodified. Query details are sent via syslog.
func (r *Syslog) Send(q *dns.Msg) (*dns.Msg, error) {
	if r.opt.LogRequest {
		msg := fmt.Sprintf("qid=%d type=query qtype=%s qname=%s", q.Id, qType(q), qName(q))
		r.write(q, msg)
	}

	a, err := r.Resolver.Send(q)
	if err == nil && a != nil && r.opt.LogResponse {
		if a.Rcode == dns.RcodeSuccess {
			for i, rr := range a.Answer {
				s := strings.ReplaceAll(rr.String(), "\t", " ")
				msg := fmt.Sprintf("qid=%d type=response n=%d answer=%q", a.Id, i, s)
				r.write(q, msg)
			}
		} else {
			msg := fmt.Sprintf("qid=%d type=response rcode=%s", a.Id, rCode(a))
			r.write(q, msg)
		}
	}
	return a, err
}

// SendAsync routes the asynchronous send through Send so logging applies.
func (r *Syslog) SendAsync(q *dns.Msg, l Listener) Handle {
	h := newHandle()
	asyncPool.Submit(func() {
		a, err := r.Send(q)
		if err != nil {
			l.OnException(h, err)
			return
		}
		l.OnMessage(h, a)
	})
	return h
}

func (r *Syslog) write(q *dns.Msg, msg string) {
	if r.writer == nil {
		return
	}
	if _, err := r.writer.Write([]byte(msg)); err != nil {
		logger("syslog", q).WithError(err).Error("failed to send syslog")
	}
}
