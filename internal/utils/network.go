package utils

import (
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRealIP returns the client address recorded in the booking audit log.
//
// Order: X-Real-IP, then the first public address in X-Forwarded-For,
// then the first address in X-Forwarded-For, then gin's ClientIP.
// Private and loopback addresses in X-Real-IP are ignored because our
// ingress only sets it for public clients.
func GetRealIP(c *gin.Context) string {
	if addr, ok := parseAddr(c.GetHeader("X-Real-IP")); ok && isPublic(addr) {
		return addr.String()
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		var first string
		for _, part := range strings.Split(forwarded, ",") {
			addr, ok := parseAddr(part)
			if !ok {
				continue
			}
			if first == "" {
				first = addr.String()
			}
			if isPublic(addr) {
				return addr.String()
			}
		}
		if first != "" {
			return first
		}
	}

	return c.ClientIP()
}

// GetUserAgent extracts the User-Agent header from the request
func GetUserAgent(c *gin.Context) string {
	ua := c.Request.UserAgent()
	if ua == "" {
		return "Unknown"
	}
	return ua
}

func parseAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isPublic(addr netip.Addr) bool {
	return !addr.IsPrivate() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() && !addr.IsUnspecified()
}
