// Package record holds the dataset record model: parsing of one JSON line
// and extraction of the reference identifiers a record declares.
package record

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Field paths inside a record document.
const (
	ControlNumberPath = "control_number"
	ReferencesPath    = "references"
	referenceRecord   = "record"
	referenceLink     = "$ref"
)

// Record is one dataset entry. The document is kept verbatim and handed to
// recommenders as-is; only the identifier is lifted out.
type Record struct {
	// ID is the textual form of control_number: numbers keep their JSON
	// literal, strings their contents.
	ID  string
	doc gjson.Result
}

// Parse builds a Record from a single JSON object. The input must be valid
// UTF-8. When a key repeats, the last occurrence wins.
func Parse(data []byte) (Record, error) {
	if !utf8.Valid(data) {
		return Record{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalidJSON)
	}
	if !gjson.ValidBytes(data) {
		return Record{}, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Record{}, fmt.Errorf("%w: expected an object, got %s", ErrInvalidJSON, doc.Type)
	}
	id, ok := identifier(member(doc, ControlNumberPath))
	if !ok {
		return Record{}, ErrMissingControlNumber
	}
	return Record{ID: id, doc: doc}, nil
}

func identifier(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return v.Str, true
	case gjson.Number, gjson.True, gjson.False:
		return v.Raw, true
	default:
		// missing, null, object or array
		return "", false
	}
}

// member returns the last member of obj named key. gjson paths resolve to
// the first match, which disagrees with encoding/json on duplicate keys.
func member(obj gjson.Result, key string) gjson.Result {
	var out gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			out = v
		}
		return true
	})
	return out
}

// Get returns the value at a gjson path, e.g. "titles.0.title".
func (r Record) Get(path string) gjson.Result {
	return r.doc.Get(path)
}

// Field returns the top-level member named key, taking the last one when the
// key repeats.
func (r Record) Field(key string) gjson.Result {
	return member(r.doc, key)
}

// Raw returns the record document as read from the dataset.
func (r Record) Raw() []byte {
	return []byte(r.doc.Raw)
}

// Decode unmarshals the record document into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal([]byte(r.doc.Raw), v)
}

// References extracts the reference identifiers declared by the record and
// reports how many reference entries were ignored. An entry counts only when
// it holds a "record" object whose "$ref" is a string with a non-empty last
// path segment.
func (r Record) References() (ReferenceSet, int) {
	refs := make(ReferenceSet)
	entries := r.Field(ReferencesPath)
	if !entries.IsArray() {
		return refs, 0
	}
	skipped := 0
	entries.ForEach(func(_, entry gjson.Result) bool {
		if id, ok := LinkedID(entry); ok {
			refs.Add(id)
		} else {
			skipped++
		}
		return true
	})
	return refs, skipped
}

// LinkedID returns the identifier a reference entry points to.
func LinkedID(entry gjson.Result) (string, bool) {
	if !entry.IsObject() {
		return "", false
	}
	target := member(entry, referenceRecord)
	if !target.IsObject() {
		return "", false
	}
	link := member(target, referenceLink)
	if link.Type != gjson.String {
		return "", false
	}
	id := TrailingSegment(link.Str)
	return id, id != ""
}

// TrailingSegment returns the part of ref after its last '/'.
func TrailingSegment(ref string) string {
	return ref[strings.LastIndexByte(ref, '/')+1:]
}

// ReferenceSet is the set of identifiers a record references.
type ReferenceSet map[string]struct{}

// Add inserts id.
func (s ReferenceSet) Add(id string) { s[id] = struct{}{} }

// Has reports whether id is in the set.
func (s ReferenceSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s ReferenceSet) Len() int { return len(s) }

// Overlap counts the members of other that are also in s.
func (s ReferenceSet) Overlap(other ReferenceSet) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for id := range small {
		if large.Has(id) {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (s ReferenceSet) Clone() ReferenceSet {
	out := make(ReferenceSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the identifiers in ascending order.
func (s ReferenceSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
