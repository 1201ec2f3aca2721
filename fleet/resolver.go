package fleet

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const fallbackNameserver = "127.0.0.53:53"

// SRVTarget is one answer of an SRV lookup.
type SRVTarget struct {
	Host     string
	Port     uint16
	Priority uint16
	Weight   uint16
}

// Address returns host:port.
func (t SRVTarget) Address() string {
	return net.JoinHostPort(strings.TrimSuffix(t.Host, "."), strconv.Itoa(int(t.Port)))
}

// SRVResolver looks up the control plane endpoints published under a DNS name.
type SRVResolver interface {
	LookupSRV(ctx context.Context, name string) ([]SRVTarget, error)
}

// DNSResolver queries a nameserver directly for SRV records.
type DNSResolver struct {
	nameserver string
	client     *dns.Client
}

// NewDNSResolver creates a resolver using nameserver ("host:port").
// An empty nameserver uses the first entry of /etc/resolv.conf, or the local
// stub resolver if that cannot be read.
func NewDNSResolver(nameserver string, timeout time.Duration) *DNSResolver {
	if nameserver == "" {
		nameserver = fallbackNameserver
		if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(conf.Servers) > 0 {
			nameserver = net.JoinHostPort(conf.Servers[0], conf.Port)
		}
	}
	return &DNSResolver{
		nameserver: nameserver,
		client:     &dns.Client{Timeout: timeout},
	}
}

// LookupSRV returns the SRV targets of name ordered by priority, then by descending weight.
func (r *DNSResolver) LookupSRV(ctx context.Context, name string) ([]SRVTarget, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	m.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, m, r.nameserver)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup of %s failed: %w", name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("SRV lookup of %s failed: %s", name, dns.RcodeToString[in.Rcode])
	}

	targets := make([]SRVTarget, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			targets = append(targets, SRVTarget{
				Host:     srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	sortTargets(targets)
	return targets, nil
}

func sortTargets(targets []SRVTarget) {
	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority < targets[j].Priority
		}
		return targets[i].Weight > targets[j].Weight
	})
}
