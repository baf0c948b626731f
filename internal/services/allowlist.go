package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// AllowList restricts the hosts and ports a step may call, so the engine
// cannot be used to reach arbitrary network endpoints.
type AllowList struct {
	hosts   map[string]bool
	minPort int
	maxPort int
}

// NewAllowList creates an AllowList from the configured hostnames and port
// range. An empty host list denies every target.
func NewAllowList(hosts []string, minPort, maxPort int) *AllowList {
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(h)] = true
	}
	return &AllowList{hosts: set, minPort: minPort, maxPort: maxPort}
}

// Check returns an error when the target URL is not permitted. No network
// activity takes place here.
func (a *AllowList) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid target URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if !a.hosts[host] {
		return fmt.Errorf("host %q is not on the allow-list", host)
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid target port %q", p)
		}
	}
	if port < a.minPort || port > a.maxPort {
		return fmt.Errorf("port %d is outside the permitted range %d-%d", port, a.minPort, a.maxPort)
	}

	return nil
}
