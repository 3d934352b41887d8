package multidns

import (
	"net"

	"github.com/miekg/dns"
)

// System resolver configuration consulted by NewGroup. A variable so tests
// can point it elsewhere.
var resolvConf = "/etc/resolv.conf"

// findServers returns the system's configured nameservers as host:port
// addresses. An unreadable or empty configuration yields nil.
func findServers() []string {
	conf, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		Log.WithError(err).Debug("unable to read system resolver configuration")
		return nil
	}
	var servers []string
	for _, server := range conf.Servers {
		servers = append(servers, net.JoinHostPort(server, conf.Port))
	}
	return servers
}
