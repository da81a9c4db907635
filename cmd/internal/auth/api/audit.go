package authapi

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Audit events go to the structured log. Passwords, hashes and tokens are never attached.

func (h *Handler) auditRegister(ctx context.Context, username string, ip net.IP) {
	h.log.InfoContext(ctx, "auth.register.success", "username", username, "ip", ipString(ip))
}

func (h *Handler) auditLoginSuccess(ctx context.Context, username string, ip net.IP) {
	h.log.InfoContext(ctx, "auth.login.success", "username", username, "ip", ipString(ip))
}

func (h *Handler) auditLoginFailed(ctx context.Context, identifier string, ip net.IP, reason string) {
	h.log.WarnContext(ctx, "auth.login.fail", "identifier", identifier, "ip", ipString(ip), "reason", reason)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
