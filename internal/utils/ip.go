package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
)

// Allowlist matches client addresses against CIDR blocks. An empty list allows everyone.
type Allowlist struct {
	nets []*net.IPNet
}

func NewAllowlist(cidrs []string) (*Allowlist, error) {
	a := &Allowlist{}
	for _, cidr := range cidrs {
		_, block, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
		}
		a.nets = append(a.nets, block)
	}
	return a, nil
}

// Allows checking if the IP address enters one of the allowed subnetworks
func (a *Allowlist) Allows(ip string) bool {
	if len(a.nets) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, block := range a.nets {
		if block.Contains(parsed) {
			return true
		}
	}
	return false
}

// Middleware rejects requests whose peer address is outside the allowlist with 403.
// Forwarding headers are not consulted; see KeepPeerAddr.
func (a *Allowlist) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allows(PeerIP(r)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RemoteIP returns r.RemoteAddr without the port.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type peerAddrKey struct{}

// KeepPeerAddr records the connection address before any middleware rewrites
// r.RemoteAddr from X-Real-IP or X-Forwarded-For.
func KeepPeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PeerIP returns the address recorded by KeepPeerAddr, falling back to RemoteIP.
func PeerIP(r *http.Request) string {
	addr, ok := r.Context().Value(peerAddrKey{}).(string)
	if !ok {
		return RemoteIP(r)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
