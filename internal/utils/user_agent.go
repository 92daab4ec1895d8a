package utils

import (
	"strings"

	browser "github.com/itzngga/fake-useragent"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36 Edg/136.0.0.0"

// RandomUserAgent returns a desktop browser identity for a new account record.
func RandomUserAgent() string {
	if ua := strings.TrimSpace(browser.Chrome()); ua != "" {
		return ua
	}
	return defaultUserAgent
}

// NormalizeUserAgent backfills records created before user agents were stored.
func NormalizeUserAgent(ua string) string {
	if strings.TrimSpace(ua) == "" {
		return defaultUserAgent
	}
	return ua
}
