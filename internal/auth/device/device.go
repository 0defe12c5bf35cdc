// Package device turns User-Agent headers into short labels for login logs.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns a display name such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if ua.Bot() {
		browser = "Bot " + browser
	}
	platform := ua.OS()
	if platform == "" {
		platform = ua.Platform()
	}

	browser = strings.TrimSpace(browser)
	platform = strings.TrimSpace(platform)
	if browser == "" {
		browser = "Unknown Browser"
	}
	if platform == "" {
		platform = "Unknown OS"
	}
	return browser + " on " + platform
}
