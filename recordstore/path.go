package recordstore

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/gloudx/recordstore/predicate"
	"github.com/gloudx/recordstore/valueorder"
)

// resolvePath reads an attr_path off a record. A length-1 path is the
// index-assisted case and resolves with a plain map lookup; anything
// deeper falls back to gjson over the record's JSON rendering. A missing
// attribute at any level reports !ok, so callers apply the "missing means
// null" rule uniformly.
func resolvePath(rec *Record, path predicate.Path) (valueorder.Value, bool) {
	if len(path) == 0 {
		return valueorder.Null(), false
	}
	top, ok := rec.Get(path[0])
	if !ok {
		return valueorder.Null(), false
	}
	if len(path) == 1 {
		return top, true
	}
	data, err := json.Marshal(valueorder.ToGo(top))
	if err != nil {
		return valueorder.Null(), false
	}
	res := gjson.GetBytes(data, strings.Join(path[1:], "."))
	if !res.Exists() {
		return valueorder.Null(), false
	}
	return valueorder.FromGo(res.Value()), true
}

// lookupFor adapts resolvePath to the predicate.Lookup signature a single
// record evaluation needs.
func lookupFor(rec *Record) predicate.Lookup {
	return func(p predicate.Path) (valueorder.Value, bool) {
		return resolvePath(rec, p)
	}
}

// project builds the restricted attribute mapping a Query with a non-empty
// projection yields: deep paths are written into a fresh JSON document with
// sjson.SetBytes, and a missing path projects as null.
func project(rec *Record, paths []predicate.Path) map[string]any {
	if len(paths) == 0 {
		return rec.ToMap()
	}
	doc := []byte("{}")
	for _, p := range paths {
		v, ok := resolvePath(rec, p)
		var err error
		if !ok {
			doc, err = sjson.SetBytes(doc, p.String(), nil)
		} else {
			doc, err = sjson.SetBytes(doc, p.String(), valueorder.ToGo(v))
		}
		if err != nil {
			continue
		}
	}
	var out map[string]any
	if err := json.Unmarshal(doc, &out); err != nil {
		return map[string]any{}
	}
	return out
}
