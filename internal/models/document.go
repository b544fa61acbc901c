package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// toDocument converts an entity into its stored document form.
func toDocument(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// fromDocument decodes a stored document into out.
func fromDocument(doc bson.M, out interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return bson.Unmarshal(raw, out)
}

// mergeFields flattens doc into dotted paths so that a $set merges nested
// documents field by field instead of replacing them. Arrays and scalars are
// leaf values. Empty nested documents produce no paths.
func mergeFields(doc bson.M) bson.M {
	out := bson.M{}
	flattenInto("", doc, out)
	return out
}

func flattenInto(prefix string, doc bson.M, out bson.M) {
	for k, v := range doc {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := asDocument(v); ok {
			flattenInto(path, nested, out)
			continue
		}
		out[path] = v
	}
}

func asDocument(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]interface{}:
		return bson.M(d), true
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

// setPath applies a single dotted-path assignment to doc, creating
// intermediate documents as needed.
func setPath(doc bson.M, path string, v interface{}) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := asDocument(cur[p])
		if !ok {
			next = bson.M{}
		}
		cur[p] = next
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

// applyMerge applies the upsert-with-merge rule of a document write to the
// stored document (nil when absent) and returns the result.
func applyMerge(stored bson.M, set bson.M, setOnInsert bson.M) bson.M {
	inserting := stored == nil
	if inserting {
		stored = bson.M{}
	}
	for path, v := range set {
		setPath(stored, path, v)
	}
	if inserting {
		for path, v := range setOnInsert {
			setPath(stored, path, v)
		}
	}
	return stored
}
