package registry

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/kilupskalvis/vizedit/internal/models"
)

// decodeLenient decodes raw into target one key at a time. Keys whose value
// cannot be coerced to the field type are skipped so the field keeps the
// default already present in target.
func decodeLenient(raw models.Options, target any) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           target,
		})
		if err != nil {
			continue
		}
		_ = dec.Decode(map[string]any{k: raw[k]})
	}
}

// encodeOptions merges the typed options over a copy of raw. Unknown keys in
// raw are carried through untouched.
func encodeOptions(raw models.Options, typed any) (models.Options, error) {
	var known map[string]any
	if err := mapstructure.Decode(typed, &known); err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	out := raw.Clone()
	for k, v := range known {
		out[k] = v
	}
	return out, nil
}

// normalize runs the lenient decode, the type's fix-up and the encode.
func normalize[T any](raw models.Options, defaults T, fix func(*T)) (models.Options, error) {
	if raw == nil {
		raw = models.Options{}
	}
	typed := defaults
	decodeLenient(raw, &typed)
	if fix != nil {
		fix(&typed)
	}
	return encodeOptions(raw, &typed)
}

// toFloat converts numeric row values to float64.
func toFloat(v any) (float64, bool) {
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
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// numericColumns returns the names of numeric columns in result order.
func numericColumns(data *models.QueryResultData) []string {
	if data == nil {
		return nil
	}
	var out []string
	for _, c := range data.Columns {
		if c.IsNumeric() {
			out = append(out, c.Name)
		}
	}
	return out
}

// knownColumns keeps only names present in data, preserving order and
// dropping duplicates. With no data every name is kept.
func knownColumns(names []string, data *models.QueryResultData) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		if data != nil {
			if _, ok := data.Column(n); !ok {
				continue
			}
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func hasColumn(data *models.QueryResultData, name string) bool {
	if data == nil {
		return true
	}
	_, ok := data.Column(name)
	return ok
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
