package docstore

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nimburion/taskdesk/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the identifier field assigned by the store.
const IDField = "_id"

// Document is a schemaless record. Values may be strings, numbers, booleans, time.Time,
// nested Documents or maps, and slices of those.
type Document = map[string]any

// Query selects documents. Keys are field names or operators ("$or", "$and", ...); field
// values may be literals or operator maps such as {"$regex": "^a", "$options": "i"}. An
// empty or nil Query matches every document.
type Query = map[string]any

// ParseID converts a hex identifier into an ObjectID.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &ValidationError{
			Field:  IDField,
			Reason: fmt.Sprintf("%q is not a valid identifier", id),
			Cause:  err,
		}
	}
	return oid, nil
}

// IDQuery returns a Query matching the document with the given hex identifier.
func IDQuery(id string) Query {
	return Query{IDField: id}
}

// canonicalQuery copies q into a filter the driver accepts: string identifiers become
// ObjectIDs, including inside $eq, $ne, $in and $nin and inside $and, $or and $nor clauses.
func canonicalQuery(q Query) (document.Filter, error) {
	filter := make(document.Filter, len(q))
	for key, value := range q {
		switch key {
		case IDField:
			canonical, err := canonicalIDValue(value)
			if err != nil {
				return nil, err
			}
			filter[key] = canonical
		case "$and", "$or", "$nor":
			clauses, err := canonicalClauses(key, value)
			if err != nil {
				return nil, err
			}
			filter[key] = clauses
		default:
			filter[key] = value
		}
	}
	return filter, nil
}

func canonicalClauses(operator string, value any) ([]any, error) {
	var raw []any
	switch v := value.(type) {
	case []any:
		raw = v
	case []map[string]any:
		raw = make([]any, len(v))
		for i := range v {
			raw[i] = v[i]
		}
	case bson.A:
		raw = v
	default:
		return nil, invalid(operator, "expected a list of sub-queries, got %T", value)
	}

	out := make([]any, 0, len(raw))
	for _, clause := range raw {
		sub, ok := asMap(clause)
		if !ok {
			return nil, invalid(operator, "expected a sub-query, got %T", clause)
		}
		canonical, err := canonicalQuery(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]any(canonical))
	}
	return out, nil
}

func canonicalIDValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return ParseID(v)
	case map[string]any, bson.M:
		ops, _ := asMap(v)
		out := make(map[string]any, len(ops))
		for op, operand := range ops {
			switch op {
			case "$eq", "$ne":
				canonical, err := canonicalScalarID(operand)
				if err != nil {
					return nil, err
				}
				out[op] = canonical
			case "$in", "$nin":
				canonical, err := canonicalIDList(operand)
				if err != nil {
					return nil, err
				}
				out[op] = canonical
			default:
				out[op] = operand
			}
		}
		return out, nil
	default:
		return value, nil
	}
}

func canonicalScalarID(value any) (any, error) {
	if s, ok := value.(string); ok {
		return ParseID(s)
	}
	return value, nil
}

func canonicalIDList(value any) (any, error) {
	switch v := value.(type) {
	case []string:
		out := make([]any, 0, len(v))
		for _, s := range v {
			oid, err := ParseID(s)
			if err != nil {
				return nil, err
			}
			out = append(out, oid)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			canonical, err := canonicalScalarID(item)
			if err != nil {
				return nil, err
			}
			out = append(out, canonical)
		}
		return out, nil
	default:
		return value, nil
	}
}

func asMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case bson.M:
		return map[string]any(v), true
	default:
		return nil, false
	}
}

// canonicalDocument prepares doc for insertion. A string _id must be a valid hex identifier.
func canonicalDocument(doc Document) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		out[key] = value
	}
	if id, ok := out[IDField].(string); ok {
		oid, err := ParseID(id)
		if err != nil {
			return nil, err
		}
		out[IDField] = oid
	}
	return out, nil
}

// validatePatch rejects patches that are empty, touch the identifier, or carry operators.
func validatePatch(patch Document) error {
	if len(patch) == 0 {
		return invalid("patch", "must contain at least one field")
	}
	for key := range patch {
		if key == IDField {
			return invalid(IDField, "identifiers are immutable and cannot be patched")
		}
		if key == "" || strings.HasPrefix(key, "$") {
			return invalid("patch", "field name %q is not allowed", key)
		}
	}
	return nil
}

func validateCollection(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return invalid("collection", "name is required")
	case strings.ContainsAny(name, "$\x00"):
		return invalid("collection", "name %q contains a reserved character", name)
	case strings.HasPrefix(name, "system."):
		return invalid("collection", "name %q is reserved", name)
	}
	return nil
}

// formatID renders an identifier returned by the store.
func formatID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// normalizeDocument converts a decoded BSON document into plain Go values: _id becomes its
// hex string, nested documents become maps, arrays become []any and dates become UTC time.Time.
func normalizeDocument(raw map[string]any) Document {
	if raw == nil {
		return nil
	}
	doc := make(Document, len(raw))
	for key, value := range raw {
		if key == IDField {
			doc[key] = formatID(value)
			continue
		}
		doc[key] = normalizeValue(value)
	}
	return doc
}

// normalizeValue maps decoded BSON values back to the Go types callers write: documents and
// arrays to maps and slices, dates to UTC time.Time, int32 and int64 to int.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case primitive.M:
		return normalizeNested(map[string]any(v))
	case map[string]any:
		return normalizeNested(v)
	case primitive.D:
		m := make(map[string]any, len(v))
		for _, elem := range v {
			m[elem.Key] = elem.Value
		}
		return normalizeNested(m)
	case primitive.A:
		return normalizeSlice([]any(v))
	case []any:
		return normalizeSlice(v)
	case primitive.DateTime:
		return v.Time().UTC()
	case time.Time:
		return v.UTC()
	case int32:
		return int(v)
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return v
		}
		return int(v)
	default:
		return value
	}
}

func normalizeNested(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeSlice(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = normalizeValue(item)
	}
	return out
}
