// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"github.com/vigil-monitoring/vigil-go/model"
)

// translation is the result of analyzing a predicate for server-side
// pushdown. It is pure data; translating never issues a request.
type translation struct {
	// filters are the clauses the server will evaluate. The server ANDs
	// every filter on a request.
	filters []model.SearchFilter

	// residual is the portion that must still be evaluated client-side
	// after page retrieval. nil when the predicate pushed completely.
	residual Predicate

	// empty marks a contradiction between equality literals; the collection
	// is provably empty and no request is needed.
	empty bool
}

// translate decomposes a predicate into server filters and a residual.
//
// Top-level conjunctions split into independent clauses. A clause pushes
// when it is a comparison the server can evaluate for that property; the
// capability table may substitute a broader operator (forced Contains), in
// which case the original clause is retained as residual so the broader
// server match is narrowed locally. Disjunctions and opaque function
// predicates never push.
func translate(p Predicate) translation {
	if p == nil {
		return translation{}
	}

	var (
		filters    []model.SearchFilter
		residual   []Predicate
		equalities = map[model.Property][]interface{}{}
	)
	for _, clause := range conjuncts(p) {
		cmp, ok := clause.(Comparison)
		if !ok {
			residual = append(residual, clause)
			continue
		}
		if cmp.Operator == model.FilterEquals {
			equalities[cmp.Property] = append(equalities[cmp.Property], cmp.Value)
		}

		effective, supported := model.OperatorFor(cmp.Property, cmp.Operator)
		if !supported {
			residual = append(residual, clause)
			continue
		}
		filters = append(filters, model.NewSearchFilter(cmp.Property, effective, cmp.Value))
		if effective != cmp.Operator {
			// The server matches a superset; re-check the original locally.
			residual = append(residual, clause)
		}
	}

	for _, literals := range equalities {
		if contradictory(literals) {
			return translation{empty: true}
		}
	}

	return translation{
		filters:  filters,
		residual: combine(residual),
	}
}

// conjuncts flattens nested conjunctions into a single clause list. Any
// non-conjunction node is a clause of its own.
func conjuncts(p Predicate) []Predicate {
	c, ok := p.(conjunction)
	if !ok {
		return []Predicate{p}
	}
	var out []Predicate
	for _, sub := range c.predicates {
		out = append(out, conjuncts(sub)...)
	}
	return out
}

// contradictory reports whether a property is simultaneously required to
// equal two literals that cannot both hold.
func contradictory(literals []interface{}) bool {
	for i := 1; i < len(literals); i++ {
		if !looseEquals(literals[0], literals[i]) {
			return true
		}
	}
	return false
}

func combine(clauses []Predicate) Predicate {
	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return conjunction{predicates: clauses}
	}
}
