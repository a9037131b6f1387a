// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/vigil-monitoring/vigil-go/model"
)

// Predicate is a filter over records. Predicates built from the
// constructors in this package are analyzed for server-side pushdown;
// anything else (see Match) is evaluated client-side after page retrieval.
type Predicate interface {
	// Matches reports whether the record satisfies the predicate.
	Matches(r model.Record) bool
}

// Comparison is a single (property, operator, value) test.
//
// A property the record does not carry (a nil parent on a tree root, or a
// property of another object type) fails the comparison under every
// operator, NotEquals included. This mirrors how the server evaluates the
// same clause as a pushed filter, so a comparison matches the same records
// whether it runs remotely or locally. Use Or with MatchFunc to treat
// absent properties as matching.
type Comparison struct {
	Property model.Property
	Operator model.FilterOperator
	Value    interface{}
}

func (c Comparison) Matches(r model.Record) bool {
	actual, ok := r.Value(c.Property)
	if !ok {
		return false
	}
	switch c.Operator {
	case model.FilterEquals:
		return looseEquals(actual, c.Value)
	case model.FilterNotEquals:
		return !looseEquals(actual, c.Value)
	case model.FilterContains:
		return strings.Contains(strings.ToLower(cast.ToString(actual)), strings.ToLower(cast.ToString(c.Value)))
	case model.FilterGreater:
		return looseCompare(actual, c.Value) > 0
	case model.FilterLess:
		return looseCompare(actual, c.Value) < 0
	}
	return false
}

// Equals tests property equality. The server evaluates equality
// case-insensitively; local evaluation matches that behavior.
func Equals(p model.Property, value interface{}) Predicate {
	return Comparison{Property: p, Operator: model.FilterEquals, Value: value}
}

// NotEquals tests property inequality.
func NotEquals(p model.Property, value interface{}) Predicate {
	return Comparison{Property: p, Operator: model.FilterNotEquals, Value: value}
}

// Contains tests for a case-insensitive substring match.
func Contains(p model.Property, value interface{}) Predicate {
	return Comparison{Property: p, Operator: model.FilterContains, Value: value}
}

// GreaterThan tests a numeric (or, failing that, lexical) ordering.
func GreaterThan(p model.Property, value interface{}) Predicate {
	return Comparison{Property: p, Operator: model.FilterGreater, Value: value}
}

// LessThan is the counterpart of GreaterThan.
func LessThan(p model.Property, value interface{}) Predicate {
	return Comparison{Property: p, Operator: model.FilterLess, Value: value}
}

type conjunction struct {
	predicates []Predicate
}

func (c conjunction) Matches(r model.Record) bool {
	for _, p := range c.predicates {
		if !p.Matches(r) {
			return false
		}
	}
	return true
}

// And combines predicates so that all of them must hold.
func And(predicates ...Predicate) Predicate {
	if len(predicates) == 1 {
		return predicates[0]
	}
	return conjunction{predicates: predicates}
}

type disjunction struct {
	predicates []Predicate
}

func (d disjunction) Matches(r model.Record) bool {
	for _, p := range d.predicates {
		if p.Matches(r) {
			return true
		}
	}
	return false
}

// Or combines predicates so that at least one must hold. Disjunctions are
// never pushed server-side.
func Or(predicates ...Predicate) Predicate {
	if len(predicates) == 1 {
		return predicates[0]
	}
	return disjunction{predicates: predicates}
}

// MatchFunc adapts an arbitrary function into a Predicate. Function
// predicates are opaque to the translator and always evaluate client-side.
type MatchFunc func(r model.Record) bool

func (f MatchFunc) Matches(r model.Record) bool {
	return f(r)
}

// looseEquals compares two values the way the server does: numerically when
// both sides parse as numbers, case-insensitively otherwise.
func looseEquals(a, b interface{}) bool {
	af, aErr := cast.ToFloat64E(a)
	bf, bErr := cast.ToFloat64E(b)
	if aErr == nil && bErr == nil {
		return af == bf
	}
	return strings.EqualFold(cast.ToString(a), cast.ToString(b))
}

// looseCompare orders two values numerically when possible, falling back to
// a case-folded lexical comparison.
func looseCompare(a, b interface{}) int {
	af, aErr := cast.ToFloat64E(a)
	bf, bErr := cast.ToFloat64E(b)
	if aErr == nil && bErr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(cast.ToString(a)), strings.ToLower(cast.ToString(b)))
}
