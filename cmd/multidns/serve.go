package main

import (
	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrandall/multidns"
)

const defaultListen = "127.0.0.1:53"

func runServe(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(opt.configFile)
	if err != nil {
		return err
	}
	r, err := buildResolver(config)
	if err != nil {
		return err
	}

	addr := config.Listener.Address
	if addr == "" {
		addr = defaultListen
	}

	handler := forwardHandler(r)
	udp := &dns.Server{Addr: addr, Net: "udp", Handler: handler}
	tcp := &dns.Server{Addr: addr, Net: "tcp", Handler: handler}

	multidns.Log.WithField("addr", addr).Info("starting listeners")
	errCh := make(chan error, 2)
	go func() { errCh <- udp.ListenAndServe() }()
	go func() { errCh <- tcp.ListenAndServe() }()
	return errors.Wrap(<-errCh, "listener failed")
}

// forwardHandler answers every incoming query through the resolver group,
// responding with SERVFAIL when no upstream produced a response.
func forwardHandler(r multidns.Resolver) dns.HandlerFunc {
	return func(w dns.ResponseWriter, q *dns.Msg) {
		a, err := r.Send(q)
		if err != nil {
			multidns.Log.WithError(err).Error("failed to resolve query")
			a = new(dns.Msg).SetRcode(q, dns.RcodeServerFailure)
		}
		if err := w.WriteMsg(a); err != nil {
			multidns.Log.WithError(err).Error("failed to write response")
		}
	}
}
