package markets

import (
	"strconv"
	"strings"
	"time"

	"github.com/Aidin1998/botcontrol/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Format converts a stored market into its dashboard representation.
// now is used when the end date is missing or unreadable.
func Format(m models.Market, now time.Time) models.FormattedMarket {
	out := models.FormattedMarket{
		ID:            m.ID.String(),
		Question:      orDefault(m.Question, "N/A"),
		Reward:        "0",
		MinSize:       orDefault(m.RewardsMinSize.String(), "0"),
		MaxSpread:     orDefault(m.RewardsMaxSpread.String(), "0"),
		Spread:        orDefault(m.Spread.String(), "0"),
		EndDate:       FormatDate(m.EndDate, now),
		Volume:        strconv.FormatFloat(m.VolumeNum, 'f', -1, 64),
		Liquidity:     strconv.FormatFloat(m.LiquidityNum, 'f', -1, 64),
		Active:        m.Active,
		Closed:        m.Closed,
		Archived:      m.Archived,
		Monitored:     m.Monitored,
		Slug:          m.Slug,
		Description:   m.Description,
		Outcomes:      []string(m.Outcomes),
		OutcomePrices: []string(m.OutcomePrices),
	}
	if out.ID == "" {
		out.ID = m.ObjectID.Hex()
	}
	if len(m.ClobRewards) > 0 {
		out.Reward = orDefault(m.ClobRewards[0].RewardsDailyRate.String(), "0")
	}
	if out.Outcomes == nil {
		out.Outcomes = []string{}
	}
	if out.OutcomePrices == nil {
		out.OutcomePrices = []string{}
	}
	return out
}

// FormatAll formats a slice of markets
func FormatAll(ms []models.Market, now time.Time) []models.FormattedMarket {
	out := make([]models.FormattedMarket, len(ms))
	for i, m := range ms {
		out[i] = Format(m, now)
	}
	return out
}

// FormatDate renders a stored date as ISO-8601 UTC with milliseconds.
// Accepts BSON dates, date strings and epoch milliseconds.
func FormatDate(rv bson.RawValue, now time.Time) string {
	if t, ok := parseDate(rv); ok {
		return t.UTC().Format(isoMillis)
	}
	return now.UTC().Format(isoMillis)
}

func parseDate(rv bson.RawValue) (time.Time, bool) {
	switch rv.Type {
	case bsontype.DateTime:
		return rv.Time(), true
	case bsontype.Timestamp:
		sec, _ := rv.Timestamp()
		return time.Unix(int64(sec), 0), true
	case bsontype.Double:
		return fromMillis(int64(rv.Double()))
	case bsontype.Int32:
		return fromMillis(int64(rv.Int32()))
	case bsontype.Int64:
		return fromMillis(rv.Int64())
	case bsontype.String:
		s := strings.TrimSpace(rv.StringValue())
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// fromMillis treats a zero epoch as missing
func fromMillis(ms int64) (time.Time, bool) {
	if ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
