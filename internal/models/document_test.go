package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMergeFields_FlattensNestedDocuments(t *testing.T) {
	doc := bson.M{
		"title": "Loom",
		"tags":  bson.A{"weaving"},
		"stages": bson.M{
			"planning": bson.D{{Key: "peer_rating", Value: 5}},
		},
		"contacts": map[string]interface{}{"phone": "123"},
		"empty":    bson.M{},
	}

	got := mergeFields(doc)
	assert.Equal(t, bson.M{
		"title":                       "Loom",
		"tags":                        bson.A{"weaving"},
		"stages.planning.peer_rating": 5,
		"contacts.phone":              "123",
	}, got)
}

func TestApplyMerge(t *testing.T) {
	stored := bson.M{
		"title": "Old",
		"tags":  bson.A{"a", "b"},
		"stages": bson.M{
			"closure": bson.M{"peer_rating": 3, "my_rating": 9},
		},
		"created_at": "kept",
	}
	set := bson.M{
		"title":                      "New",
		"tags":                       bson.A{"c"},
		"stages.closure.peer_rating": 4,
	}

	got := applyMerge(stored, set, bson.M{"created_at": "ignored on update"})
	assert.Equal(t, bson.M{
		"title": "New",
		"tags":  bson.A{"c"},
		"stages": bson.M{
			"closure": bson.M{"peer_rating": 4, "my_rating": 9},
		},
		"created_at": "kept",
	}, got)
}

func TestApplyMerge_Insert(t *testing.T) {
	got := applyMerge(nil, bson.M{"a.b": 1}, bson.M{"created_at": "now"})
	assert.Equal(t, bson.M{"a": bson.M{"b": 1}, "created_at": "now"}, got)
}

func TestSetPath_ReplacesScalarWithDocument(t *testing.T) {
	doc := bson.M{"contacts": nil}
	setPath(doc, "contacts.website", "https://x")
	assert.Equal(t, bson.M{"contacts": bson.M{"website": "https://x"}}, doc)
}
