package server

import (
	"net"
	"net/http"
)

// LocalhostOnly rejects requests whose connection does not originate from a
// loopback address. It inspects r.RemoteAddr, so it must run before any
// middleware that rewrites it from forwarding headers.
func LocalhostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			writeErrors(w, http.StatusForbidden, "access is restricted to localhost")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
