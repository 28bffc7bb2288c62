// Package classifier derives a visitor profile (browser family, device class,
// client IP, country and OS) from the metadata of a single redirect request.
package classifier

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/mssola/useragent"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

// IPLookup resolves the public IP address as seen by an external service.
type IPLookup interface {
	LookupPublicIP(ctx context.Context) (string, error)
}

// CountryLookup resolves the country name of an IP address.
type CountryLookup interface {
	LookupCountry(ctx context.Context, ip string) (string, error)
}

// forwardedHeaders are checked in order; the first non-empty one wins.
var forwardedHeaders = []string{
	"X-Forwarded-For",
	"X-Real-Ip",
	"X-Client-Ip",
	"Cf-Connecting-Ip",
	"True-Client-Ip",
}

// Lookup steps reported when a lookup fails.
const (
	StepSelfIP  = "self_ip"
	StepCountry = "country"
)

var mobileKeywords = []string{"Mobile", "Android", "iPhone", "webOS", "BlackBerry", "Windows Phone"}

// Classifier builds visitor profiles. Lookup failures never fail a classification,
// they leave the corresponding profile field empty.
type Classifier struct {
	ipLookup      IPLookup
	countryLookup CountryLookup
	logger        *slog.Logger
}

// New creates a Classifier. Either lookup may be nil to disable it.
func New(ipLookup IPLookup, countryLookup CountryLookup, logger *slog.Logger) *Classifier {
	return &Classifier{
		ipLookup:      ipLookup,
		countryLookup: countryLookup,
		logger:        logger,
	}
}

// Classify returns the profile of the visitor that issued the request described by meta.
// The alias only annotates lookup failure logs.
func (c *Classifier) Classify(ctx context.Context, alias string, meta entity.RequestMeta) entity.VisitorProfile {
	const op = "classifier.Classifier.Classify"

	ua := meta.UserAgent()

	p := entity.VisitorProfile{
		Browser: ParseBrowser(ua),
		Device:  ParseDevice(ua),
		OS:      ParseOS(ua),
		IP:      ClientIP(meta),
	}

	if p.IP == "" && c.ipLookup != nil {
		ip, err := c.ipLookup.LookupPublicIP(ctx)
		if err != nil {
			c.logger.Warn("failed to resolve visitor ip",
				slog.String("op", op),
				slog.String("alias", alias),
				slog.String("step", StepSelfIP),
				slog.Any("err", err),
			)
		} else {
			p.IP = ip
		}
	}

	if p.IP != "" && c.countryLookup != nil {
		country, err := c.countryLookup.LookupCountry(ctx, p.IP)
		if err != nil {
			c.logger.Warn("failed to resolve visitor country",
				slog.String("op", op),
				slog.String("alias", alias),
				slog.String("step", StepCountry),
				slog.String("ip", p.IP),
				slog.Any("err", err),
			)
		} else {
			p.Country = country
		}
	}

	return p
}

// ParseBrowser returns the browser family of a User-Agent string.
// Edge is checked before Chrome since Edge user agents also mention Chrome.
func ParseBrowser(ua string) entity.Browser {
	switch {
	case strings.Contains(ua, "Firefox/"):
		return entity.BrowserFirefox
	case strings.Contains(ua, "Edge/"), strings.Contains(ua, "Edg/"):
		return entity.BrowserEdge
	case strings.Contains(ua, "Chrome/"):
		return entity.BrowserChrome
	case strings.Contains(ua, "Safari/"):
		return entity.BrowserSafari
	default:
		return entity.BrowserOther
	}
}

// ParseDevice returns the device class of a User-Agent string. Tablets take
// precedence over mobile devices.
func ParseDevice(ua string) entity.Device {
	if isTablet(ua) {
		return entity.DeviceTablet
	}

	for _, kw := range mobileKeywords {
		if strings.Contains(ua, kw) {
			return entity.DeviceMobile
		}
	}

	return entity.DeviceDesktop
}

func isTablet(ua string) bool {
	lower := strings.ToLower(ua)

	if strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet") {
		return true
	}

	// Android without a later "mobile" token.
	i := strings.LastIndex(lower, "android")
	return i >= 0 && !strings.Contains(lower[i:], "mobile")
}

// ParseOS returns the operating system name of a User-Agent string, or "" if unknown.
func ParseOS(ua string) string {
	if ua == "" {
		return ""
	}
	return useragent.New(ua).OS()
}

// ClientIP returns the client address found in forwarding headers or, failing
// that, the peer address. It returns "" when the address is missing or not routable.
func ClientIP(meta entity.RequestMeta) string {
	raw := ""
	for _, h := range forwardedHeaders {
		if v := meta.Header.Get(h); v != "" {
			raw = strings.TrimSpace(strings.Split(v, ",")[0])
			break
		}
	}

	if raw == "" {
		raw = meta.RemoteAddr
		if host, _, err := net.SplitHostPort(raw); err == nil {
			raw = host
		}
	}

	if !usable(raw) {
		return ""
	}
	return raw
}

func usable(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	return !addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}
