package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an operator account stored in the users collection
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	Active       bool               `bson:"active" json:"active"`
}

// UserInfo is the public identity returned by login and verify
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserProfile is the identity returned by the profile endpoint
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

// ClobReward is one entry of a market's liquidity reward program
type ClobReward struct {
	RewardsDailyRate FlexString `bson:"rewardsDailyRate"`
}

// Market is a market document as written by the upstream ingester.
// Numeric fields arrive as strings or numbers depending on the source.
type Market struct {
	ObjectID         primitive.ObjectID `bson:"_id,omitempty"`
	ID               FlexString         `bson:"id,omitempty"`
	Question         string             `bson:"question,omitempty"`
	Slug             string             `bson:"slug,omitempty"`
	Description      string             `bson:"description,omitempty"`
	Outcomes         StringList         `bson:"outcomes,omitempty"`
	OutcomePrices    StringList         `bson:"outcomePrices,omitempty"`
	ClobRewards      []ClobReward       `bson:"clobRewards,omitempty"`
	RewardsMinSize   FlexString         `bson:"rewardsMinSize,omitempty"`
	RewardsMaxSpread FlexString         `bson:"rewardsMaxSpread,omitempty"`
	Spread           FlexString         `bson:"spread,omitempty"`
	EndDate          bson.RawValue      `bson:"endDate,omitempty"`
	VolumeNum        float64            `bson:"volumeNum,omitempty"`
	LiquidityNum     float64            `bson:"liquidityNum,omitempty"`
	Active           bool               `bson:"active,omitempty"`
	Closed           bool               `bson:"closed,omitempty"`
	Archived         bool               `bson:"archived,omitempty"`
	Monitored        bool               `bson:"monitored,omitempty"`
}

// FormattedMarket is the dashboard representation of a market
type FormattedMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Reward        string   `json:"reward"`
	MinSize       string   `json:"minSize"`
	MaxSpread     string   `json:"maxSpread"`
	Spread        string   `json:"spread"`
	EndDate       string   `json:"endDate"`
	Volume        string   `json:"volume"`
	Liquidity     string   `json:"liquidity"`
	Active        bool     `json:"active"`
	Closed        bool     `json:"closed"`
	Archived      bool     `json:"archived"`
	Monitored     bool     `json:"monitored"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	Outcomes      []string `json:"outcomes"`
	OutcomePrices []string `json:"outcomePrices"`
}

// Pagination describes the page returned by a list query
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// MarketFilters echoes the filters applied to a list query
type MarketFilters struct {
	Search    string `json:"search"`
	Status    string `json:"status"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// MarketPage is the response of the paginated market listing
type MarketPage struct {
	Data       []FormattedMarket `json:"data"`
	Pagination Pagination        `json:"pagination"`
	Filters    MarketFilters     `json:"filters"`
}

// MarketStats holds collection level counters
type MarketStats struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	Closed      int64 `json:"closed"`
	Archived    int64 `json:"archived"`
	WithRewards int64 `json:"withRewards"`
	Monitored   int64 `json:"monitored"`
}
