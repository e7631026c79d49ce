// Package chrono normalizes the timestamp representations this app's
// database can hand back and provides the client-side ordering the
// stores rely on.
//
// Documents written by older clients carry createdAt/updatedAt in a
// mix of shapes: a real BSON datetime, a wrapped
// {seconds, nanoseconds} document, epoch milliseconds as int64 or
// double, or an RFC 3339 string. Time decodes all of them into a
// single comparable instant, so reads never depend on which client
// wrote the document.
package chrono

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Time is a time.Time that decodes from every timestamp shape found
// in the database and always encodes as a BSON datetime.
type Time struct {
	time.Time
}

// Now returns the current UTC instant as a Time.
func Now() Time {
	return Time{time.Now().UTC()}
}

// At wraps a time.Time.
func At(t time.Time) Time {
	return Time{t}
}

// wrapped is the {seconds, nanoseconds} document form some clients
// write instead of a native datetime.
type wrapped struct {
	Seconds int64 `bson:"seconds"`
	Nanos   int64 `bson:"nanoseconds"`
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (t *Time) UnmarshalBSONValue(bt bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: bt, Value: data}

	switch bt {
	case bsontype.DateTime:
		t.Time = rv.Time().UTC()
	case bsontype.Int64:
		t.Time = time.UnixMilli(rv.Int64()).UTC()
	case bsontype.Int32:
		t.Time = time.UnixMilli(int64(rv.Int32())).UTC()
	case bsontype.Double:
		t.Time = time.UnixMilli(int64(rv.Double())).UTC()
	case bsontype.String:
		parsed, err := time.Parse(time.RFC3339Nano, rv.StringValue())
		if err != nil {
			return fmt.Errorf("chrono: parse %q: %w", rv.StringValue(), err)
		}
		t.Time = parsed.UTC()
	case bsontype.Timestamp:
		sec, _ := rv.Timestamp()
		t.Time = time.Unix(int64(sec), 0).UTC()
	case bsontype.EmbeddedDocument:
		var w wrapped
		if err := bson.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("chrono: wrapped timestamp: %w", err)
		}
		t.Time = time.Unix(w.Seconds, w.Nanos).UTC()
	case bsontype.Null, bsontype.Undefined:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("chrono: cannot decode %s as a timestamp", bt)
	}
	return nil
}

// MarshalBSONValue implements bson.ValueMarshaler.
// New writes always use the native datetime form.
func (t Time) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.Time)
}

// StableDesc sorts items newest-first by the instant each one
// reports, keeping the incoming order for equal instants. The backend
// cannot be trusted to order mixed timestamp shapes, so every list
// read applies this after the remote filter.
func StableDesc[T any](items []T, instant func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return instant(items[i]).After(instant(items[j]))
	})
}
