package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func decodeMarket(t *testing.T, doc bson.M) Market {
	t.Helper()
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var m Market
	require.NoError(t, bson.Unmarshal(raw, &m))
	return m
}

func TestMarketDecodesMixedNumericFields(t *testing.T) {
	dec, err := primitive.ParseDecimal128("0.035")
	require.NoError(t, err)

	m := decodeMarket(t, bson.M{
		"id":               int32(512),
		"question":         "Will it rain?",
		"clobRewards":      bson.A{bson.M{"rewardsDailyRate": 25.5}},
		"rewardsMinSize":   int64(100),
		"rewardsMaxSpread": dec,
		"spread":           "0.02",
		"volumeNum":        1234.5,
	})

	assert.Equal(t, FlexString("512"), m.ID)
	require.Len(t, m.ClobRewards, 1)
	assert.Equal(t, "25.5", m.ClobRewards[0].RewardsDailyRate.String())
	assert.Equal(t, "100", m.RewardsMinSize.String())
	assert.Equal(t, "0.035", m.RewardsMaxSpread.String())
	assert.Equal(t, "0.02", m.Spread.String())
	assert.Equal(t, 1234.5, m.VolumeNum)
}

func TestStringListAcceptsArrayAndEncodedString(t *testing.T) {
	m := decodeMarket(t, bson.M{
		"outcomes":      bson.A{"Yes", "No"},
		"outcomePrices": `["0.61","0.39"]`,
	})
	assert.Equal(t, StringList{"Yes", "No"}, m.Outcomes)
	assert.Equal(t, StringList{"0.61", "0.39"}, m.OutcomePrices)

	m = decodeMarket(t, bson.M{"outcomes": "Yes"})
	assert.Equal(t, StringList{"Yes"}, m.Outcomes)
}

func TestFlexStringRejectsDocuments(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"spread": bson.M{"nested": true}})
	require.NoError(t, err)
	var m Market
	assert.Error(t, bson.Unmarshal(raw, &m))
}
