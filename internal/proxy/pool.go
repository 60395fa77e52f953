package proxy

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/CaitMS/Web-Exploration-Engine/config"
)

var ErrMissingCredentials = errors.New("proxy username or password not set")

type Credentials struct {
	Username string
	Password string
}

// Pool hands out proxy servers in round-robin order. It is safe for concurrent use.
type Pool struct {
	servers []string
	creds   Credentials
	enabled bool
	next    atomic.Uint64
}

func NewPool(cfg *config.ProxyConfig) *Pool {
	p := &Pool{
		enabled: cfg.Enabled,
		creds:   Credentials{Username: cfg.Username, Password: cfg.Password},
	}
	for _, s := range strings.Split(cfg.Servers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			p.servers = append(p.servers, s)
		}
	}

	return p
}

func (p *Pool) Enabled() bool {
	return p.enabled && len(p.servers) > 0
}

// GetProxy returns the next proxy server, or an empty string when proxying is disabled.
func (p *Pool) GetProxy() string {
	if !p.Enabled() {
		return ""
	}
	i := p.next.Add(1) - 1
	return p.servers[i%uint64(len(p.servers))]
}

func (p *Pool) Credentials() (Credentials, error) {
	if p.creds.Username == "" || p.creds.Password == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return p.creds, nil
}
