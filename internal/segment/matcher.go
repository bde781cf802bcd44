// Package segment evaluates segment rules against customer records.
package segment

import (
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/campaign-delivery/internal/errors"
	"github.com/unclebandit/campaign-delivery/internal/model"
)

// Matches reports whether customer satisfies rule. OR needs any condition,
// AND (the default, also when unset) needs every condition.
func Matches(customer *model.Customer, rule *model.SegmentRule) bool {
	if rule.LogicType == model.LogicOR {
		for _, cond := range rule.Rules {
			if Evaluate(customer, cond) {
				return true
			}
		}
		return false
	}
	for _, cond := range rule.Rules {
		if !Evaluate(customer, cond) {
			return false
		}
	}
	return true
}

// Filter returns the customers matched by rule, preserving order.
func Filter(customers []model.Customer, rule *model.SegmentRule) []model.Customer {
	matched := make([]model.Customer, 0, len(customers))
	for i := range customers {
		if Matches(&customers[i], rule) {
			matched = append(matched, customers[i])
		}
	}
	return matched
}

// Evaluate applies a single condition. Unknown operators evaluate to false.
func Evaluate(customer *model.Customer, cond model.Condition) bool {
	raw, _ := customer.Field(cond.Field)
	left := Normalize(raw, cond.ValueType)
	right := Normalize(cond.Value, cond.ValueType)
	return compare(cond.Operator, left, right)
}

func compare(op string, a, b Value) bool {
	switch op {
	case model.OpEquals:
		return equal(a, b)
	case model.OpNotEquals:
		return !equal(a, b)
	case model.OpGreaterThan:
		return ordered(a, b, func(c int) bool { return c > 0 })
	case model.OpLessThan:
		return ordered(a, b, func(c int) bool { return c < 0 })
	case model.OpContains:
		return !a.Missing && strings.Contains(lower(a), lower(b))
	case model.OpNotContains:
		return a.Missing || !strings.Contains(lower(a), lower(b))
	case model.OpStartsWith:
		return !a.Missing && strings.HasPrefix(lower(a), lower(b))
	case model.OpEndsWith:
		return !a.Missing && strings.HasSuffix(lower(a), lower(b))
	}
	return false
}

func lower(v Value) string { return strings.ToLower(v.Text()) }

func equal(a, b Value) bool {
	if a.Kind == KindString {
		if a.Missing || b.Missing {
			return a.Missing && b.Missing
		}
		return a.Str == b.Str
	}
	// NaN never equals anything, itself included
	return a.Num == b.Num
}

func ordered(a, b Value, ok func(int) bool) bool {
	if a.Kind == KindString {
		if a.Missing || b.Missing {
			return false
		}
		return ok(strings.Compare(a.Str, b.Str))
	}
	switch {
	case a.Num > b.Num:
		return ok(1)
	case a.Num < b.Num:
		return ok(-1)
	case a.Num == b.Num:
		return ok(0)
	}
	return false // NaN involved
}

// Validate checks a rule before it is stored.
func Validate(rule *model.SegmentRule) error {
	switch rule.LogicType {
	case "", model.LogicAND, model.LogicOR:
	default:
		return appErrors.NewValidation("logicType", fmt.Sprintf("must be AND or OR, got %q", rule.LogicType))
	}
	for i, cond := range rule.Rules {
		if strings.TrimSpace(cond.Field) == "" {
			return appErrors.NewValidation(fmt.Sprintf("rules[%d].field", i), "is required")
		}
		if !model.IsKnownOperator(cond.Operator) {
			return appErrors.NewValidation(fmt.Sprintf("rules[%d].operator", i), fmt.Sprintf("unsupported operator %q", cond.Operator))
		}
	}
	return nil
}
