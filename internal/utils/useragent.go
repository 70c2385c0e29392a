package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo is the client summary stored with each booking audit entry
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	BrowserVer string `json:"browser_ver"`
	IsBot      bool   `json:"is_bot"`
	Platform   string `json:"platform"` // android, ios, windows, mac, linux
}

var tabletMarkers = []string{"ipad", "tablet", "kindle", "sm-t", "nexus 7", "nexus 9", "nexus 10"}

// platforms maps lowercased OS names onto coarse platforms. Order matters:
// "android" must be checked before "linux".
var platforms = []struct{ marker, platform string }{
	{"android", "android"},
	{"iphone", "ios"},
	{"ipad", "ios"},
	{"ios", "ios"},
	{"windows", "windows"},
	{"mac os", "mac"},
	{"cros", "chromeos"},
	{"chrome os", "chromeos"},
	{"linux", "linux"},
}

// ParseUserAgent summarises a User-Agent header for audit records
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{DeviceType: "unknown", OS: "Unknown", Browser: "Unknown", Platform: "unknown"}
	}

	parser := ua.New(userAgent)
	browser, version := parser.Browser()
	osInfo := parser.OSInfo()

	info := DeviceInfo{
		DeviceType: "desktop",
		OS:         strings.TrimSpace(osInfo.Name + " " + osInfo.Version),
		Browser:    browser,
		BrowserVer: version,
		IsBot:      parser.Bot(),
		Platform:   "unknown",
	}
	if info.OS == "" {
		info.OS = "Unknown"
	}
	if info.Browser == "" {
		info.Browser = "Unknown"
	}

	lower := strings.ToLower(userAgent)
	if parser.Mobile() {
		info.DeviceType = "mobile"
		for _, marker := range tabletMarkers {
			if strings.Contains(lower, marker) {
				info.DeviceType = "tablet"
				break
			}
		}
	}

	osName := strings.ToLower(osInfo.Name)
	for _, p := range platforms {
		if strings.Contains(osName, p.marker) {
			info.Platform = p.platform
			break
		}
	}

	return info
}
