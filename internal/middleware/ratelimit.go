package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type window struct {
	count int
	until time.Time
}

// RateLimit allows limit requests per client IP in each fixed window of
// length per. Windows are kept in an expiring cache so idle clients age out.
// Safe methods are only counted when limitReads is true.
func RateLimit(limit int, per time.Duration, limitReads bool) func(http.Handler) http.Handler {
	var mu sync.Mutex
	windows := cache.New(per, 2*per)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || (!limitReads && (r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions)) {
				next.ServeHTTP(w, r)
				return
			}
			ip := clientIPForRateLimit(r)
			now := time.Now()
			mu.Lock()
			var win *window
			if v, ok := windows.Get(ip); ok {
				win = v.(*window)
			}
			if win == nil || now.After(win.until) {
				win = &window{until: now.Add(per)}
				windows.Set(ip, win, per)
			}
			if win.count >= limit {
				retry := int(win.until.Sub(now).Seconds()) + 1
				mu.Unlock()
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
				return
			}
			win.count++
			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
