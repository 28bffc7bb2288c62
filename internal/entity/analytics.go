package entity

import (
	"sort"
	"time"
)

const (
	// HoursPerDay is the number of buckets of the hourly histogram.
	HoursPerDay = 24
	// DailyRetention is the maximum number of days kept in the daily series.
	DailyRetention = 30
	// UnknownCountry groups visits whose country could not be resolved.
	UnknownCountry = "Unknown"
	// DateLayout is the layout of daily series keys.
	DateLayout = "2006-01-02"
)

// DeviceStats counts visits per device class.
type DeviceStats struct {
	Mobile  int64 `json:"mobile"`
	Desktop int64 `json:"desktop"`
	Tablet  int64 `json:"tablet"`
}

// BrowserStats counts visits per browser family.
type BrowserStats struct {
	Chrome  int64 `json:"chrome"`
	Safari  int64 `json:"safari"`
	Firefox int64 `json:"firefox"`
	Edge    int64 `json:"edge"`
	Other   int64 `json:"other"`
}

// CountryClicks counts visits from a single country.
type CountryClicks struct {
	Country string `json:"country"`
	Clicks  int64  `json:"clicks"`
}

// HourlyClicks counts visits made during one hour of the day.
type HourlyClicks struct {
	Hour   int   `json:"hour"`
	Clicks int64 `json:"clicks"`
}

// DailyClicks counts visits made during one calendar day.
type DailyClicks struct {
	Date         string `json:"date"`
	TotalClicks  int64  `json:"totalClicks"`
	UniqueClicks int64  `json:"uniqueClicks"`
}

// Analytics is the rolling click aggregate of a link.
//
// Geography is kept in first-seen order and only ever grows. HourlyClicks always has
// HoursPerDay entries indexed by hour. DailyClicks is sorted by date, holds at most one
// entry per date and at most DailyRetention entries.
type Analytics struct {
	Devices      DeviceStats     `json:"devices"`
	Browsers     BrowserStats    `json:"browsers"`
	Geography    []CountryClicks `json:"geography"`
	HourlyClicks []HourlyClicks  `json:"hourlyClicks"`
	DailyClicks  []DailyClicks   `json:"dailyClicks"`
}

// NewAnalytics returns an empty aggregate with all hourly buckets set to zero.
func NewAnalytics() Analytics {
	return Analytics{
		Geography:    []CountryClicks{},
		HourlyClicks: zeroHours(),
		DailyClicks:  []DailyClicks{},
	}
}

func zeroHours() []HourlyClicks {
	hours := make([]HourlyClicks, HoursPerDay)
	for h := range hours {
		hours[h].Hour = h
	}
	return hours
}

func (a *Analytics) record(p VisitorProfile, unique bool, at time.Time) {
	a.addHour(at.Hour())
	a.addBrowser(p.Browser)
	a.addDevice(p.Device)
	a.addCountry(p.Country)
	a.addDay(at.Format(DateLayout), unique)
}

func (a *Analytics) addHour(hour int) {
	if len(a.HourlyClicks) != HoursPerDay {
		hours := zeroHours()
		for _, h := range a.HourlyClicks {
			if h.Hour >= 0 && h.Hour < HoursPerDay {
				hours[h.Hour].Clicks += h.Clicks
			}
		}
		a.HourlyClicks = hours
	}

	a.HourlyClicks[hour].Clicks++
}

func (a *Analytics) addBrowser(b Browser) {
	switch b {
	case BrowserChrome:
		a.Browsers.Chrome++
	case BrowserSafari:
		a.Browsers.Safari++
	case BrowserFirefox:
		a.Browsers.Firefox++
	case BrowserEdge:
		a.Browsers.Edge++
	default:
		a.Browsers.Other++
	}
}

func (a *Analytics) addDevice(d Device) {
	switch d {
	case DeviceMobile:
		a.Devices.Mobile++
	case DeviceTablet:
		a.Devices.Tablet++
	default:
		a.Devices.Desktop++
	}
}

func (a *Analytics) addCountry(country string) {
	if country == "" {
		country = UnknownCountry
	}

	for i := range a.Geography {
		if a.Geography[i].Country == country {
			a.Geography[i].Clicks++
			return
		}
	}

	a.Geography = append(a.Geography, CountryClicks{Country: country, Clicks: 1})
}

func (a *Analytics) addDay(date string, unique bool) {
	var uniqueInc int64
	if unique {
		uniqueInc = 1
	}

	n := len(a.DailyClicks)

	switch {
	case n > 0 && a.DailyClicks[n-1].Date == date:
		a.DailyClicks[n-1].TotalClicks++
		a.DailyClicks[n-1].UniqueClicks += uniqueInc
	case n == 0 || a.DailyClicks[n-1].Date < date:
		a.DailyClicks = append(a.DailyClicks, DailyClicks{
			Date:         date,
			TotalClicks:  1,
			UniqueClicks: uniqueInc,
		})
	default:
		// Late visit: a newer day is already recorded.
		i := sort.Search(n, func(i int) bool {
			return a.DailyClicks[i].Date >= date
		})
		if a.DailyClicks[i].Date == date {
			a.DailyClicks[i].TotalClicks++
			a.DailyClicks[i].UniqueClicks += uniqueInc
			return
		}

		a.DailyClicks = append(a.DailyClicks, DailyClicks{})
		copy(a.DailyClicks[i+1:], a.DailyClicks[i:])
		a.DailyClicks[i] = DailyClicks{Date: date, TotalClicks: 1, UniqueClicks: uniqueInc}
	}

	if excess := len(a.DailyClicks) - DailyRetention; excess > 0 {
		a.DailyClicks = append([]DailyClicks(nil), a.DailyClicks[excess:]...)
	}
}

func (a Analytics) clone() Analytics {
	c := a
	c.Geography = append([]CountryClicks{}, a.Geography...)
	c.HourlyClicks = append([]HourlyClicks{}, a.HourlyClicks...)
	c.DailyClicks = append([]DailyClicks{}, a.DailyClicks...)
	return c
}
