package core

import (
	"encoding/json"
	"reflect"

	"github.com/kilupskalvis/vizedit/internal/models"
)

// OptionsEqual compares two option maps deeply. Key order never matters and
// numbers compare by value, so 25, int64(25) and 25.0 are equal. A nil map
// equals an empty one.
func OptionsEqual(a, b models.Options) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

// IsDirty reports whether the edit differs from its baseline. A name edit
// counts once made, even if the original text is typed back.
func IsDirty(state EditState, baseline Snapshot) bool {
	return state.NameChanged || !OptionsEqual(state.Options, baseline.Options)
}

func valuesEqual(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if _, ok := number(b); ok {
		return false
	}
	if a == nil || b == nil {
		return isNil(a) && isNil(b)
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ra.Kind() {
	case reflect.Map:
		if rb.Kind() != reflect.Map || ra.Type().Key().Kind() != reflect.String || rb.Type().Key().Kind() != reflect.String {
			return reflect.DeepEqual(a, b)
		}
		if ra.Len() != rb.Len() {
			return false
		}
		iter := ra.MapRange()
		for iter.Next() {
			key := reflect.ValueOf(iter.Key().String()).Convert(rb.Type().Key())
			bv := rb.MapIndex(key)
			if !bv.IsValid() || !valuesEqual(iter.Value().Interface(), bv.Interface()) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if rb.Kind() != reflect.Slice && rb.Kind() != reflect.Array {
			return false
		}
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !valuesEqual(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
