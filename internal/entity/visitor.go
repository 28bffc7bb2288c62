package entity

import (
	"net/http"
	"time"
)

// Browser is the browser family a visit is classified into.
type Browser string

const (
	BrowserChrome  Browser = "chrome"
	BrowserSafari  Browser = "safari"
	BrowserFirefox Browser = "firefox"
	BrowserEdge    Browser = "edge"
	BrowserOther   Browser = "other"
)

// Device is the device class a visit is classified into.
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceDesktop Device = "desktop"
	DeviceTablet  Device = "tablet"
)

// VisitorProfile is the classification of a single visit.
// IP and Country are empty when they could not be resolved.
type VisitorProfile struct {
	Browser Browser
	Device  Device
	IP      string
	Country string
	OS      string
}

// RequestMeta is the request metadata a visit is classified from.
type RequestMeta struct {
	Header     http.Header
	RemoteAddr string
}

// UserAgent returns the User-Agent header of the request.
func (m RequestMeta) UserAgent() string {
	return m.Header.Get("User-Agent")
}

// Visit is a single redirect to be folded into the analytics of a link.
type Visit struct {
	Alias string
	Meta  RequestMeta
	At    time.Time // At is the moment the redirect was served.
}
