package markets

import (
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	DefaultTopSize  = 10
	MaxTopSize      = 20
)

// Status filters
const (
	StatusAll      = "all"
	StatusActive   = "active"
	StatusClosed   = "closed"
	StatusArchived = "archived"
)

// Sort keys accepted by the listing
const (
	SortReward    = "reward"
	SortVolume    = "volume"
	SortLiquidity = "liquidity"
	SortMinSize   = "minSize"
	SortMaxSpread = "maxSpread"
	SortEndDate   = "endDate"
	SortQuestion  = "question"
)

// sortFields maps sort keys to document fields
var sortFields = map[string]string{
	SortReward:    "clobRewards.0.rewardsDailyRate",
	SortVolume:    "volumeNum",
	SortLiquidity: "liquidityNum",
	SortMinSize:   "rewardsMinSize",
	SortMaxSpread: "rewardsMaxSpread",
	SortEndDate:   "endDate",
	SortQuestion:  "question",
}

// ListQuery is a normalized market listing request
type ListQuery struct {
	Page      int
	Limit     int
	Search    string
	Status    string
	SortBy    string
	SortOrder string
}

// Descending reports whether results are sorted high to low
func (q ListQuery) Descending() bool {
	return q.SortOrder != "asc"
}

// Skip returns the number of documents before the requested page
func (q ListQuery) Skip() int64 {
	return int64(q.Page-1) * int64(q.Limit)
}

// ParseListQuery normalizes raw query string values
func ParseListQuery(page, limit, search, status, sortBy, sortOrder string) ListQuery {
	q := ListQuery{
		Page:      max(1, leadingInt(page, 1)),
		Limit:     ClampLimit(limit, DefaultPageSize, MaxPageSize),
		Search:    strings.TrimSpace(search),
		Status:    status,
		SortBy:    sortBy,
		SortOrder: "desc",
	}
	if q.Status == "" {
		q.Status = StatusAll
	}
	if _, ok := sortFields[q.SortBy]; !ok {
		q.SortBy = SortReward
	}
	if sortOrder == "asc" {
		q.SortOrder = "asc"
	}
	return q
}

// ClampLimit parses a limit and bounds it to [1, upper]
func ClampLimit(raw string, def, upper int) int {
	return min(upper, max(1, leadingInt(raw, def)))
}

// leadingInt parses the leading integer of s ("12abc" is 12).
// def is returned when s has no leading digits.
func leadingInt(s string, def int) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return def
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// overflow
		if s[0] == '-' {
			return -1
		}
		return int(^uint(0) >> 1)
	}
	return n
}
