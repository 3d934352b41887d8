package main

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type config struct {
	Title    string
	Resolver resolver
	Listener listener
	Syslog   syslogOptions
}

type resolver struct {
	Servers     []string
	Retries     int
	LoadBalance bool `toml:"load-balance"`
	TCP         bool `toml:"tcp"`
	Timeout     int
	EDNS        *int   `toml:"edns"`
	TSIGName    string `toml:"tsig-name"`
	TSIGSecret  string `toml:"tsig-secret"`
}

type listener struct {
	Address string
}

type syslogOptions struct {
	Enabled     bool
	Network     string
	Address     string
	Priority    int
	Tag         string
	LogRequest  bool `toml:"log-request"`
	LogResponse bool `toml:"log-response"`
}

// loadConfig reads a config file and returns the decoded structure. An empty
// name yields a zero config.
func loadConfig(name string) (config, error) {
	var c config
	if name == "" {
		return c, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return c, errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()
	_, err = toml.NewDecoder(f).Decode(&c)
	return c, errors.Wrap(err, "failed to parse config file")
}
