package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// DeviceInfo is a coarse description of the submitting client, recorded in
// audit entry metadata for forensics. It never influences authorization.
type DeviceInfo struct {
	Browser string
	OS      string
	Mobile  bool
	Display string
}

// Device parses the User-Agent header into context for audit enrichment.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := ParseUserAgent(r.UserAgent())
		ctx := context.WithValue(r.Context(), ContextKeyDevice, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDevice returns the parsed device info, zero value if absent.
func GetDevice(ctx context.Context) DeviceInfo {
	info, _ := ctx.Value(ContextKeyDevice).(DeviceInfo)
	return info
}

// ParseUserAgent builds a DeviceInfo from a raw User-Agent string.
func ParseUserAgent(raw string) DeviceInfo {
	if raw == "" {
		return DeviceInfo{Display: "Unknown Device"}
	}

	ua := useragent.New(raw)
	name, _ := ua.Browser()
	info := DeviceInfo{
		Browser: name,
		OS:      ua.OS(),
		Mobile:  ua.Mobile(),
	}

	display := strings.TrimSpace(name + " on " + ua.OS())
	if display == "on" {
		display = "Unknown Device"
	}
	info.Display = display
	return info
}
