package segment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/unclebandit/campaign-delivery/internal/model"
)

// Kind is the comparison domain an operand was normalized into.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
)

// Value is an operand normalized for comparison. Numbers and dates compare
// on Num (dates as unix milliseconds); NaN marks an operand that could not
// be converted. Missing marks an absent customer field or rule value.
type Value struct {
	Kind    Kind
	Num     float64
	Str     string
	Missing bool
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize coerces raw into the domain named by valueType. Unknown types
// fall back to string comparison.
func Normalize(raw any, valueType string) Value {
	switch strings.ToLower(strings.TrimSpace(valueType)) {
	case model.ValueTypeNumber:
		return Value{Kind: KindNumber, Num: toNumber(raw), Missing: raw == nil}
	case model.ValueTypeDate:
		return Value{Kind: KindDate, Num: toDateMillis(raw), Missing: raw == nil}
	default:
		if raw == nil {
			return Value{Kind: KindString, Missing: true}
		}
		return Value{Kind: KindString, Str: toString(raw)}
	}
}

// Text is the operand as used by the substring operators.
func (v Value) Text() string {
	switch v.Kind {
	case KindNumber, KindDate:
		if math.IsNaN(v.Num) {
			return "NaN"
		}
		if v.Kind == KindDate {
			return time.UnixMilli(int64(v.Num)).UTC().Format(time.RFC3339)
		}
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

func toNumber(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return math.NaN()
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case time.Time:
		return float64(v.UnixMilli())
	}
	return math.NaN()
}

func toDateMillis(raw any) float64 {
	switch v := raw.(type) {
	case nil:
		return math.NaN()
	case time.Time:
		return float64(v.UnixMilli())
	case *time.Time:
		if v == nil {
			return math.NaN()
		}
		return float64(v.UnixMilli())
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return float64(t.UnixMilli())
			}
		}
		return math.NaN()
	case bool:
		return math.NaN()
	}
	// numeric inputs are taken as unix milliseconds
	return toNumber(raw)
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case json.Number:
		return v.String()
	}
	return fmt.Sprint(raw)
}
