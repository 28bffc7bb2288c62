package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/linkpulse/internal/entity"
)

const (
	uaFirefoxDesktop = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	uaEdgeDesktop    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36 Edg/100.0.1185.36"
	uaChromeDesktop  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaSafariIPhone   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaSafariIPad     = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaAndroidPhone   = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	uaAndroidTablet  = "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type MockIPLookup struct {
	mock.Mock
}

func (m *MockIPLookup) LookupPublicIP(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockCountryLookup struct {
	mock.Mock
}

func (m *MockCountryLookup) LookupCountry(ctx context.Context, ip string) (string, error) {
	args := m.Called(ctx, ip)
	return args.String(0), args.Error(1)
}

func TestParseBrowser(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want entity.Browser
	}{
		{name: "firefox", ua: uaFirefoxDesktop, want: entity.BrowserFirefox},
		{name: "edge wins over chrome", ua: uaEdgeDesktop, want: entity.BrowserEdge},
		{name: "legacy edge", ua: "Mozilla/5.0 (Windows NT 10.0) Chrome/70.0 Safari/537.36 Edge/18.19582", want: entity.BrowserEdge},
		{name: "chrome wins over safari", ua: uaChromeDesktop, want: entity.BrowserChrome},
		{name: "safari", ua: uaSafariIPhone, want: entity.BrowserSafari},
		{name: "curl", ua: "curl/8.4.0", want: entity.BrowserOther},
		{name: "empty", ua: "", want: entity.BrowserOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBrowser(tt.ua))
		})
	}
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want entity.Device
	}{
		{name: "desktop", ua: uaFirefoxDesktop, want: entity.DeviceDesktop},
		{name: "iphone", ua: uaSafariIPhone, want: entity.DeviceMobile},
		{name: "ipad wins over mobile keywords", ua: uaSafariIPad, want: entity.DeviceTablet},
		{name: "android phone", ua: uaAndroidPhone, want: entity.DeviceMobile},
		{name: "android without mobile", ua: uaAndroidTablet, want: entity.DeviceTablet},
		{name: "generic tablet", ua: "Mozilla/5.0 (Tablet; rv:68.0) Gecko/68.0 Firefox/68.0", want: entity.DeviceTablet},
		{name: "blackberry", ua: "BlackBerry9700/5.0.0.351 Profile/MIDP-2.1", want: entity.DeviceMobile},
		{name: "empty", ua: "", want: entity.DeviceDesktop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDevice(tt.ua))
		})
	}
}

func TestParseOS(t *testing.T) {
	assert.Empty(t, ParseOS(""))
	assert.NotEmpty(t, ParseOS(uaChromeDesktop))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		header     http.Header
		remoteAddr string
		want       string
	}{
		{
			name:       "first forwarded value",
			header:     http.Header{"X-Forwarded-For": {" 203.0.113.7 , 10.0.0.1"}},
			remoteAddr: "10.0.0.2:5000",
			want:       "203.0.113.7",
		},
		{
			name:   "header order",
			header: http.Header{"X-Real-Ip": {"198.51.100.1"}, "Cf-Connecting-Ip": {"198.51.100.2"}},
			want:   "198.51.100.1",
		},
		{
			name:       "peer address",
			remoteAddr: "198.51.100.9:443",
			want:       "198.51.100.9",
		},
		{
			name:       "ipv6 peer address",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{name: "loopback", remoteAddr: "127.0.0.1:8080", want: ""},
		{name: "ipv6 loopback", remoteAddr: "[::1]:8080", want: ""},
		{name: "private 10", header: http.Header{"X-Forwarded-For": {"10.1.2.3"}}, want: ""},
		{name: "private 192.168", header: http.Header{"X-Forwarded-For": {"192.168.0.10"}}, want: ""},
		{name: "private 172", header: http.Header{"X-Forwarded-For": {"172.16.5.4"}}, want: ""},
		{name: "garbage", header: http.Header{"X-Forwarded-For": {"unknown"}}, want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := entity.RequestMeta{Header: tt.header, RemoteAddr: tt.remoteAddr}

			assert.Equal(t, tt.want, ClientIP(meta))
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errLookup := errors.New("lookup failed")

	t.Run("forwarded ip with country", func(t *testing.T) {
		ipLookup := new(MockIPLookup)
		countryLookup := new(MockCountryLookup)
		countryLookup.On("LookupCountry", mock.Anything, "203.0.113.7").Once().Return("Germany", nil)

		c := New(ipLookup, countryLookup, logger)
		p := c.Classify(context.Background(), "abc123", entity.RequestMeta{
			Header: http.Header{
				"User-Agent":      {uaFirefoxDesktop},
				"X-Forwarded-For": {"203.0.113.7"},
			},
		})

		assert.Equal(t, entity.BrowserFirefox, p.Browser)
		assert.Equal(t, entity.DeviceDesktop, p.Device)
		assert.Equal(t, "203.0.113.7", p.IP)
		assert.Equal(t, "Germany", p.Country)
		ipLookup.AssertNotCalled(t, "LookupPublicIP", mock.Anything)
		countryLookup.AssertExpectations(t)
	})

	t.Run("private ip falls back to self ip service", func(t *testing.T) {
		ipLookup := new(MockIPLookup)
		ipLookup.On("LookupPublicIP", mock.Anything).Once().Return("198.51.100.4", nil)
		countryLookup := new(MockCountryLookup)
		countryLookup.On("LookupCountry", mock.Anything, "198.51.100.4").Once().Return("France", nil)

		c := New(ipLookup, countryLookup, logger)
		p := c.Classify(context.Background(), "abc123", entity.RequestMeta{RemoteAddr: "127.0.0.1:4321"})

		assert.Equal(t, "198.51.100.4", p.IP)
		assert.Equal(t, "France", p.Country)
		ipLookup.AssertExpectations(t)
		countryLookup.AssertExpectations(t)
	})

	t.Run("self ip service failure", func(t *testing.T) {
		ipLookup := new(MockIPLookup)
		ipLookup.On("LookupPublicIP", mock.Anything).Once().Return("", errLookup)
		countryLookup := new(MockCountryLookup)

		c := New(ipLookup, countryLookup, logger)
		p := c.Classify(context.Background(), "abc123", entity.RequestMeta{
			Header:     http.Header{"User-Agent": {uaSafariIPad}},
			RemoteAddr: "10.0.0.1:4321",
		})

		assert.Empty(t, p.IP)
		assert.Empty(t, p.Country)
		assert.Equal(t, entity.DeviceTablet, p.Device)
		countryLookup.AssertNotCalled(t, "LookupCountry", mock.Anything, mock.Anything)
	})

	t.Run("geolocation failure", func(t *testing.T) {
		countryLookup := new(MockCountryLookup)
		countryLookup.On("LookupCountry", mock.Anything, "203.0.113.7").Once().Return("", errLookup)

		c := New(nil, countryLookup, logger)
		p := c.Classify(context.Background(), "abc123", entity.RequestMeta{RemoteAddr: "203.0.113.7:1000"})

		assert.Equal(t, "203.0.113.7", p.IP)
		assert.Empty(t, p.Country)
		countryLookup.AssertExpectations(t)
	})

	t.Run("lookups disabled", func(t *testing.T) {
		c := New(nil, nil, logger)
		p := c.Classify(context.Background(), "abc123", entity.RequestMeta{RemoteAddr: "127.0.0.1:1000"})

		assert.Empty(t, p.IP)
		assert.Empty(t, p.Country)
		assert.Equal(t, entity.BrowserOther, p.Browser)
		assert.Equal(t, entity.DeviceDesktop, p.Device)
	})
}

func TestClassifier_Classify_LogsFailedStep(t *testing.T) {
	errLookup := errors.New("lookup failed")

	t.Run("self ip", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		ipLookup := new(MockIPLookup)
		ipLookup.On("LookupPublicIP", mock.Anything).Once().Return("", errLookup)

		c := New(ipLookup, nil, logger)
		c.Classify(context.Background(), "spring-sale", entity.RequestMeta{RemoteAddr: "10.0.0.1:4321"})

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "spring-sale", entry["alias"])
		assert.Equal(t, StepSelfIP, entry["step"])
		assert.Equal(t, "lookup failed", entry["err"])
	})

	t.Run("country", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		countryLookup := new(MockCountryLookup)
		countryLookup.On("LookupCountry", mock.Anything, "203.0.113.7").Once().Return("", errLookup)

		c := New(nil, countryLookup, logger)
		c.Classify(context.Background(), "spring-sale", entity.RequestMeta{RemoteAddr: "203.0.113.7:1000"})

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "spring-sale", entry["alias"])
		assert.Equal(t, StepCountry, entry["step"])
		assert.Equal(t, "203.0.113.7", entry["ip"])
	})
}
