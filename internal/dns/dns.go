package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Public resolvers raced when the system resolver cannot answer.
var publicDNS = []string{
	"1.1.1.1",                // Cloudflare
	"1.0.0.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.8.8",                // Google
	"8.8.4.4",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"208.67.222.222",         // Cisco OpenDNS
}

const (
	localTimeout  = 1 * time.Second
	publicTimeout = 2 * time.Second
)

// Lookup resolves host with the system resolver and falls back to racing
// public resolvers. IPv4 answers are preferred.
func Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	lctx, cancel := context.WithTimeout(ctx, localTimeout)
	ip, err := resolve(lctx, &net.Resolver{}, host)
	cancel()
	if err == nil {
		return ip, nil
	}

	return race(ctx, host)
}

// DialContext dials addr after resolving its host with Lookup.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := Lookup(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func race(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, publicTimeout)
	defer cancel()

	results := make(chan string, len(publicDNS))
	for _, server := range publicDNS {
		go func(server string) {
			r := &net.Resolver{
				PreferGo: true,
				Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
				},
			}
			ip, err := resolve(ctx, r, host)
			if err != nil {
				ip = ""
			}
			results <- ip
		}(server)
	}

	for range publicDNS {
		select {
		case ip := <-results:
			if ip != "" {
				return ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("resolve %s: %w", host, ctx.Err())
		}
	}
	return "", fmt.Errorf("resolve %s: all %d public resolvers failed", host, len(publicDNS))
}

func resolve(ctx context.Context, r *net.Resolver, host string) (string, error) {
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("no addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}
