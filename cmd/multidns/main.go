package main

import (
	"fmt"
	"os"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jrandall/multidns"
)

var opt options

type options struct {
	configFile  string
	debug       bool
	servers     []string
	retries     int
	loadBalance bool
	tcp         bool
	timeout     int
}

func main() {
	cmd := &cobra.Command{
		Use:   "multidns",
		Short: "Multi-server DNS stub resolver",
		Long: `Multi-server DNS stub resolver.

Queries are dispatched against a set of upstream servers in
parallel with bounded per-server retries. The first successful
response wins, failed responses are arbitrated so authoritative
non-existence beats generic failure.

Upstream servers are taken from flags, a config file, or the
system resolver configuration, in that order.
`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opt.configFile, "config", "c", "", "config file")
	cmd.PersistentFlags().BoolVar(&opt.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringSliceVarP(&opt.servers, "server", "s", nil, "upstream server address")
	cmd.PersistentFlags().IntVar(&opt.retries, "retries", 0, "attempts per server")
	cmd.PersistentFlags().BoolVar(&opt.loadBalance, "load-balance", false, "rotate the first server tried")
	cmd.PersistentFlags().BoolVar(&opt.tcp, "tcp", false, "query over TCP")
	cmd.PersistentFlags().IntVar(&opt.timeout, "timeout", 0, "per-attempt timeout in seconds")

	query := &cobra.Command{
		Use:     "query NAME [TYPE]",
		Short:   "Look up a name and print the response",
		Example: `  multidns query example.com MX`,
		Args:    cobra.RangeArgs(1, 2),
		RunE:    runQuery,
	}
	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Run a DNS listener forwarding to the upstream group",
		Example: `  multidns -c config.toml serve`,
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}
	cmd.AddCommand(query, serve)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Build the resolver group from flags and the config file. Flags win over
// the file, the system configuration is the fallback.
func buildResolver(cfg config) (multidns.Resolver, error) {
	if opt.debug {
		multidns.Log.SetLevel(logrus.DebugLevel)
	}

	servers := opt.servers
	if len(servers) == 0 {
		servers = cfg.Resolver.Servers
	}

	var g *multidns.Group
	var err error
	if len(servers) > 0 {
		g, err = multidns.NewGroupFromServers(servers)
	} else {
		g, err = multidns.NewGroup()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to build resolver group")
	}

	if retries := pickInt(opt.retries, cfg.Resolver.Retries); retries > 0 {
		g.SetRetries(retries)
	}
	if opt.loadBalance || cfg.Resolver.LoadBalance {
		g.SetLoadBalance(true)
	}
	if opt.tcp || cfg.Resolver.TCP {
		g.SetTCP(true)
	}
	if timeout := pickInt(opt.timeout, cfg.Resolver.Timeout); timeout > 0 {
		g.SetTimeout(time.Duration(timeout) * time.Second)
	}
	if cfg.Resolver.EDNS != nil {
		g.SetEDNS(*cfg.Resolver.EDNS)
	}
	if cfg.Resolver.TSIGName != "" {
		g.SetTSIGKey(cfg.Resolver.TSIGName, cfg.Resolver.TSIGSecret)
	}

	if cfg.Syslog.Enabled {
		return multidns.NewSyslog(g, multidns.SyslogOptions{
			Network:     cfg.Syslog.Network,
			Address:     cfg.Syslog.Address,
			Priority:    cfg.Syslog.Priority,
			Tag:         cfg.Syslog.Tag,
			LogRequest:  cfg.Syslog.LogRequest,
			LogResponse: cfg.Syslog.LogResponse,
		}), nil
	}
	return g, nil
}

func pickInt(flag, file int) int {
	if flag != 0 {
		return flag
	}
	return file
}

func runQuery(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(opt.configFile)
	if err != nil {
		return err
	}
	r, err := buildResolver(config)
	if err != nil {
		return err
	}

	qtype := dns.TypeA
	if len(args) > 1 {
		var ok bool
		qtype, ok = dns.StringToType[args[1]]
		if !ok {
			return errors.Errorf("unknown query type '%s'", args[1])
		}
	}

	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(args[0]), qtype)
	q.RecursionDesired = true

	a, err := r.Send(q)
	if err != nil {
		return errors.Wrap(err, "query failed")
	}
	fmt.Println(a)
	return nil
}
