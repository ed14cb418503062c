// Package bson provides a BSON codec implementation.
package bson

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zoobzio/serde"
)

// bsonCodec implements serde.Codec for BSON.
type bsonCodec struct{}

// New returns a BSON codec. BSON documents must be objects at the top
// level.
func New() serde.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return "application/bson"
}

// Marshal encodes v as BSON.
func (c *bsonCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

// Unmarshal decodes BSON data into v. Decoding into *any yields
// map[string]any documents and []any arrays.
func (c *bsonCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*any)
	if !ok {
		return bson.Unmarshal(data, v)
	}
	var doc map[string]any
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	*p = generic(doc)
	return nil
}

// generic rewrites driver container types into plain maps and slices.
func generic(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = generic(e)
		}
		return t
	case primitive.M:
		return generic(map[string]any(t))
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = generic(e.Value)
		}
		return m
	case primitive.A:
		return generic([]any(t))
	case []any:
		for i, e := range t {
			t[i] = generic(e)
		}
		return t
	case primitive.Binary:
		return t.Data
	}
	return v
}
