// Package codec converts relalg values, rows, and catalog metadata
// to and from the byte-string form the backing store persists, the way
// the teacher's helpers.EncodeBSON/DecodeBSON round-trip a bundle
// document through go.mongodb.org/mongo-driver/bson. Constraint
// predicates and key declarations are opaque metadata blobs from the
// store's point of view (§4.1); this package is where they get that
// shape.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/bitdancer/reldb/relalg"
)

// Encoder turns a domain Value into a bson-representable native Go
// value (string, int64, float64, bool, or primitive.Binary).
type Encoder func(relalg.Value) (interface{}, error)

// Decoder turns the bson-decoded native value back into a domain Value.
type Decoder func(raw interface{}) (relalg.Value, error)

// Registry is the per-database type registry: the concrete realization
// of spec.md §4.1's "each attribute type declares a serializer and a
// parser." Built-in scalar types are registered automatically; user
// domain types (CID, SID, ...) call Register.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]Encoder
	decoders map[string]Decoder
}

// NewRegistry returns a Registry with the built-in scalar types
// (string, int, float, bool) already registered.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
		decoders: make(map[string]Decoder),
	}
	r.Register("string",
		func(v relalg.Value) (interface{}, error) { return string(v.(relalg.String)), nil },
		func(raw interface{}) (relalg.Value, error) {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("codec: expected string, got %T", raw)
			}
			return relalg.String(s), nil
		})
	r.Register("int",
		func(v relalg.Value) (interface{}, error) { return int64(v.(relalg.Int)), nil },
		func(raw interface{}) (relalg.Value, error) {
			switch n := raw.(type) {
			case int64:
				return relalg.Int(n), nil
			case int32:
				return relalg.Int(n), nil
			case float64:
				return relalg.Int(int64(n)), nil
			default:
				return nil, fmt.Errorf("codec: expected int, got %T", raw)
			}
		})
	r.Register("float",
		func(v relalg.Value) (interface{}, error) { return float64(v.(relalg.Float)), nil },
		func(raw interface{}) (relalg.Value, error) {
			switch n := raw.(type) {
			case float64:
				return relalg.Float(n), nil
			case int64:
				return relalg.Float(n), nil
			default:
				return nil, fmt.Errorf("codec: expected float, got %T", raw)
			}
		})
	r.Register("bool",
		func(v relalg.Value) (interface{}, error) { return bool(v.(relalg.Bool)), nil },
		func(raw interface{}) (relalg.Value, error) {
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("codec: expected bool, got %T", raw)
			}
			return relalg.Bool(b), nil
		})
	return r
}

// Register binds a type tag to its encode/decode pair. Clients call
// this for every user-defined domain type before it can appear in a
// header, mirroring spec.md §3's "clients register user-defined type
// constructors" into the expression namespace, but scoped to
// serialization rather than expression evaluation.
func (r *Registry) Register(tag string, enc Encoder, dec Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[tag] = enc
	r.decoders[tag] = dec
}

func (r *Registry) encoderFor(tag string) (Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.encoders[tag]
	return e, ok
}

func (r *Registry) decoderFor(tag string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[tag]
	return d, ok
}

// EncodeValue converts v to its bson-native representation.
func (r *Registry) EncodeValue(v relalg.Value) (interface{}, error) {
	enc, ok := r.encoderFor(v.TypeTag())
	if !ok {
		return nil, fmt.Errorf("codec: no encoder registered for type %q", v.TypeTag())
	}
	return enc(v)
}

// DecodeValue reconstructs a domain Value of the given type tag from
// its bson-native representation.
func (r *Registry) DecodeValue(tag string, raw interface{}) (relalg.Value, error) {
	dec, ok := r.decoderFor(tag)
	if !ok {
		return nil, fmt.Errorf("codec: no decoder registered for type %q", tag)
	}
	return dec(raw)
}

// EncodeRow serializes a row's attribute values to a bson document,
// keyed by attribute name; the header itself is not repeated (the
// store persists it once per relation, under its m:rel: metadata key).
func (r *Registry) EncodeRow(row relalg.Row) ([]byte, error) {
	doc := bson.M{}
	for name, v := range row.AsMap() {
		native, err := r.EncodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("codec: encoding attribute %q: %w", name, err)
		}
		doc[name] = native
	}
	return bson.Marshal(doc)
}

// DecodeRow reconstructs a Row of the given header from its encoded form.
func (r *Registry) DecodeRow(header relalg.Header, data []byte) (relalg.Row, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return relalg.Row{}, fmt.Errorf("codec: decoding row: %w", err)
	}
	values := make(map[string]relalg.Value, len(header))
	for name, tag := range header {
		raw, ok := doc[name]
		if !ok {
			return relalg.Row{}, fmt.Errorf("codec: row missing attribute %q", name)
		}
		v, err := r.DecodeValue(tag, raw)
		if err != nil {
			return relalg.Row{}, fmt.Errorf("codec: decoding attribute %q: %w", name, err)
		}
		values[name] = v
	}
	return relalg.NewRow(header, values)
}

// EncodeHeader serializes a header (attribute name -> type tag).
func EncodeHeader(h relalg.Header) ([]byte, error) {
	return bson.Marshal(bson.M(toStringMap(h)))
}

// DecodeHeader reconstructs a header from its encoded form.
func DecodeHeader(data []byte) (relalg.Header, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("codec: decoding header: %w", err)
	}
	h := make(relalg.Header, len(doc))
	for name, tag := range doc {
		s, ok := tag.(string)
		if !ok {
			return nil, fmt.Errorf("codec: header attribute %q has non-string type tag", name)
		}
		h[name] = s
	}
	return h, nil
}

func toStringMap(h relalg.Header) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// EncodeKey serializes a declared key as a sorted tuple of attribute names.
func EncodeKey(attrs []string) ([]byte, error) {
	sorted := append([]string(nil), attrs...)
	sort.Strings(sorted)
	return bson.Marshal(bson.M{"attrs": sorted})
}

// DecodeKey reconstructs a declared key.
func DecodeKey(data []byte) ([]string, error) {
	var doc struct {
		Attrs []string `bson:"attrs"`
	}
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("codec: decoding key: %w", err)
	}
	return doc.Attrs, nil
}
