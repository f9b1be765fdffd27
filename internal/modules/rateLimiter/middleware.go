package rateLimiter

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"authapi/internal/modules/respond"
)

const LimitExceededMessage = "Rate limit exceeded. Try again later."

var ErrInvalidProxy = errors.New("not an IP address or CIDR")

// KeyFunc derives the client identity used to partition limiter state.
type KeyFunc func(r *http.Request) string

// RemoteIPKeyFunc keys on the host part of RemoteAddr, the socket peer.
// Forwarded headers are ignored.
func RemoteIPKeyFunc(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

// HeaderKeyFunc keys on a request header (an API key or subject id) and falls
// back to the remote IP when the header is empty. The client controls the
// header, so use it only behind a proxy that sets or strips it.
func HeaderKeyFunc(header string) KeyFunc {
	return func(r *http.Request) string {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
			return v
		}
		return RemoteIPKeyFunc(r)
	}
}

// TrustedProxyKeyFunc honours X-Forwarded-For only when the socket peer is one
// of trustedProxies (IPs or CIDRs). The chain is walked right to left and the
// first address that is not a trusted proxy is the client.
func TrustedProxyKeyFunc(trustedProxies []string) (KeyFunc, error) {
	prefixes := make([]netip.Prefix, 0, len(trustedProxies))
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			addr, addrErr := netip.ParseAddr(raw)
			if addrErr != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, ErrInvalidProxy)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, prefix.Masked())
	}

	trusted := func(addr netip.Addr) bool {
		addr = addr.Unmap()
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		remote := RemoteIPKeyFunc(r)
		peer, err := netip.ParseAddr(remote)
		if err != nil || !trusted(peer) {
			return remote
		}

		hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				continue
			}
			if !trusted(hop) {
				return hop.Unmap().String()
			}
		}
		return remote
	}, nil
}

// Middleware runs the limiter before anything else on the wrapped route.
func Middleware(limiter *FixedWindowLimiter, keyFn KeyFunc, logger *zap.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = RemoteIPKeyFunc
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			dec := limiter.CheckAndRecord(key)
			if !dec.Allowed {
				logger.Info("Rate limit exceeded",
					zap.String("client", key),
					zap.String("path", r.URL.Path),
					zap.String("reason", string(dec.Reason)))
				if dec.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(dec.RetryAfter.Seconds()))))
				}
				respond.Error(w, http.StatusTooManyRequests, LimitExceededMessage)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
