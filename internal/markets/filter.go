package markets

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxSearchPattern bounds the length of a search term used as a regular expression
const maxSearchPattern = 100

// searchPattern passes the term through as a regular expression.
// Terms that do not compile, or are longer than maxSearchPattern, are matched literally.
func searchPattern(term string) string {
	if len(term) <= maxSearchPattern {
		if _, err := regexp.Compile(term); err == nil {
			return term
		}
	}
	return regexp.QuoteMeta(term)
}

// withRewards matches markets that carry at least one reward program
func withRewards() bson.M {
	return bson.M{"clobRewards": bson.M{"$exists": true, "$ne": bson.A{}}}
}

// BuildFilter translates a listing query into a MongoDB filter
func BuildFilter(q ListQuery) bson.M {
	filter := withRewards()

	if q.Search != "" {
		pattern := primitive.Regex{Pattern: searchPattern(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"question": pattern},
			bson.M{"slug": pattern},
		}
	}

	switch q.Status {
	case StatusActive:
		filter["active"] = true
	case StatusClosed:
		filter["closed"] = true
	case StatusArchived:
		filter["archived"] = true
	}

	return filter
}

// BuildSort translates a listing query into a MongoDB sort document
func BuildSort(q ListQuery) bson.D {
	field, ok := sortFields[q.SortBy]
	if !ok {
		field = sortFields[SortReward]
	}
	order := -1
	if !q.Descending() {
		order = 1
	}
	return bson.D{{Key: field, Value: order}}
}

// byRewardDesc is the default ordering for widgets
func byRewardDesc() bson.D {
	return bson.D{{Key: sortFields[SortReward], Value: -1}}
}

// idFilter matches a market by its upstream id or its document id
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"$or": bson.A{bson.M{"id": id}, bson.M{"_id": oid}}}
	}
	return bson.M{"id": id}
}
