package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultUserPageLimit  = 10
	DefaultAdminPageLimit = 20
	MaxPageLimit          = 100
	DefaultRecentLimit    = 10
)

// ListQuery filters and pages order listings. From and To bound createdAt inclusively.
type ListQuery struct {
	Page   int
	Limit  int
	Status OrderStatus
	UserID string
	From   *time.Time
	To     *time.Time
}

// Normalize clamps paging values, using defaultLimit when none was given.
func (q ListQuery) Normalize(defaultLimit int) ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

// Validate rejects unknown status filters and inverted date ranges.
func (q ListQuery) Validate() error {
	if q.Status != "" && !q.Status.Valid() {
		return NewValidationError("Invalid order status: %s", q.Status)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return NewValidationError("from must not be after to")
	}
	return nil
}

// Skip is the number of documents preceding the requested page.
func (q ListQuery) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination computes the page count for total matches.
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// OrderPage is a page of orders, newest first.
type OrderPage struct {
	Orders     []*Order   `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Stats summarises orders. Revenue is only computed for the unscoped view.
type Stats struct {
	Total     int64    `json:"total"`
	Pending   int64    `json:"pending"`
	Delivered int64    `json:"delivered"`
	Cancelled int64    `json:"cancelled"`
	Revenue   *float64 `json:"revenue"`
}

// PublicIDGenerator produces a candidate public id for a new order.
type PublicIDGenerator func(now time.Time) string

// FormatPublicID renders ORD-<last 6 digits of unix millis>-<3 digit suffix>.
func FormatPublicID(now time.Time, suffix int) string {
	return fmt.Sprintf("ORD-%06d-%03d", now.UnixMilli()%1_000_000, suffix%1000)
}

// NewPublicID is the default generator with a random suffix.
func NewPublicID(now time.Time) string {
	return FormatPublicID(now, rand.IntN(1000))
}
