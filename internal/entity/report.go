package entity

import "time"

// TopLinksLimit is the number of most visited links shown in a dashboard overview.
const TopLinksLimit = 3

// Dashboard is the read-only projection of all links owned by a user.
type Dashboard struct {
	Overview Overview
	Links    []LinkSummary // Links is sorted by creation time, newest first.
}

// Overview summarizes the links of a user.
type Overview struct {
	TotalShortURLs int
	TotalRedirects int64
	TopLinks       []TopLink
}

// TopLink is an entry of the most visited links list.
type TopLink struct {
	Alias  string
	Clicks int64
}

// LinkSummary is a row of the dashboard table.
type LinkSummary struct {
	Alias     string
	TargetURL string
	Title     string
	Clicks    int64
	CreatedAt time.Time
}
