// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

import "github.com/spf13/cast"

// FilterOperator is a comparison the server's table API can evaluate.
//
// Note that server-side Equals is case-insensitive in practice, contrary to
// parts of the product documentation. Consumers comparing values locally
// must match that behavior or they will drop records the server kept.
type FilterOperator string

const (
	FilterEquals    FilterOperator = "eq"
	FilterNotEquals FilterOperator = "neq"
	FilterContains  FilterOperator = "contains"
	FilterGreater   FilterOperator = "greater"
	FilterLess      FilterOperator = "less"
)

// SearchFilter is a single (property, operator, value) clause evaluated
// server-side. Multiple filters on one request are ANDed by the server.
type SearchFilter struct {
	Property Property
	Operator FilterOperator
	Value    string
}

// NewSearchFilter builds a filter clause, rendering the value the way the
// wire format expects.
func NewSearchFilter(p Property, op FilterOperator, value interface{}) SearchFilter {
	return SearchFilter{
		Property: p,
		Operator: op,
		Value:    cast.ToString(value),
	}
}
