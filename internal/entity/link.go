// Package entity defines the domain of the service: short links, the click analytics
// aggregate attached to every link, the classified visitor profile and the errors
// shared by every layer.
package entity

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrAliasExists is returned when attempting to create a link with an alias that is already taken.
	ErrAliasExists = errors.New("alias exists")
	// ErrLinkNotFound is returned when no link is registered under the requested alias.
	ErrLinkNotFound = errors.New("link not found")
	// ErrForbidden is returned when the requester does not own the link it asks analytics for.
	ErrForbidden = errors.New("access to link forbidden")
	// ErrVersionConflict is returned by a store when a link was modified after it had been loaded.
	ErrVersionConflict = errors.New("link version conflict")
	// ErrInvalidAlias is returned when a custom alias does not match the alias format.
	ErrInvalidAlias = errors.New("invalid alias")
)

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,30}$`)

// ValidAlias reports whether s can be used as a custom alias: 3 to 30 letters,
// digits, dashes or underscores.
func ValidAlias(s string) bool {
	return aliasPattern.MatchString(s)
}

// ShortLink represents a shortened URL together with its click analytics.
type ShortLink struct {
	ID        int64     // ID is the unique identifier of the link in the store.
	Alias     string    // Alias is the short code the link is resolved by.
	TargetURL string    // TargetURL is the destination visitors are redirected to.
	OwnerID   *string   // OwnerID references the owning user, nil for anonymous links.
	Title     string    // Title is the display label of the link.
	Clicks    Clicks    // Clicks holds the total and unique click counters.
	Analytics Analytics // Analytics holds the rolling click aggregates.
	Version   int64     // Version is incremented on every persisted visit.
	CreatedAt time.Time // CreatedAt is the timestamp when the link was created.
	UpdatedAt time.Time // UpdatedAt is the timestamp when the link was last updated.
}

// Clicks contains the click counters of a link.
type Clicks struct {
	Total  int64 `json:"total"`
	Unique int64 `json:"unique"`
}

// DefaultTitle returns the placeholder title of a link created without one.
func DefaultTitle(alias string) string {
	return "Untitled: " + alias
}

// NewShortLink returns a link with zero-initialized analytics.
func NewShortLink(alias, targetURL, title string, ownerID *string, now time.Time) *ShortLink {
	if title == "" {
		title = DefaultTitle(alias)
	}

	return &ShortLink{
		Alias:     alias,
		TargetURL: targetURL,
		OwnerID:   ownerID,
		Title:     title,
		Analytics: NewAnalytics(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedBy reports whether userID owns the link. Anonymous links are owned by nobody.
func (l *ShortLink) OwnedBy(userID string) bool {
	return l.OwnerID != nil && userID != "" && *l.OwnerID == userID
}

// RecordVisit folds one classified visit into the counters and the analytics aggregate.
// A visit without a resolved IP is never counted as unique.
func (l *ShortLink) RecordVisit(p VisitorProfile, unique bool, at time.Time) {
	unique = unique && p.IP != ""

	l.Clicks.Total++
	if unique {
		l.Clicks.Unique++
	}

	l.Analytics.record(p, unique, at)
	l.UpdatedAt = at
}

// Clone returns a deep copy of the link.
func (l *ShortLink) Clone() *ShortLink {
	c := *l
	if l.OwnerID != nil {
		owner := *l.OwnerID
		c.OwnerID = &owner
	}
	c.Analytics = l.Analytics.clone()
	return &c
}
