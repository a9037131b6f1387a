// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Property is the closed enumeration of queryable and writable object
// properties. The string value doubles as the wire-level column name.
type Property string

const (
	PropertyID        Property = "objid"
	PropertyName      Property = "name"
	PropertyParentID  Property = "parentid"
	PropertyType      Property = "type"
	PropertyTags      Property = "tags"
	PropertyActive    Property = "active"
	PropertyPriority  Property = "priority"
	PropertyStatus    Property = "status"
	PropertyMessage   Property = "message"
	PropertyLastValue Property = "lastvalue"
	PropertyDevice    Property = "device"
	PropertyGroup     Property = "group"
	PropertyProbe     Property = "probe"
	PropertyHost      Property = "host"
	PropertyLocation  Property = "location"
	PropertyInterval  Property = "interval"
	PropertyMethod    Property = "method"
	PropertyRecipient Property = "recipient"
	PropertyTimeTable Property = "timetable"
	PropertySensorID  Property = "sensorid"
	PropertyUnit      Property = "unit"
)

// ErrUnknownProperty is returned when a property outside the closed
// enumeration is used on a typed code path.
var ErrUnknownProperty = errors.New("property is not part of the supported set")

// capability records which filter operators the server accepts for a
// property. When Forced is set, the server only evaluates that operator;
// requests it can stand in for are substituted, anything else stays
// client-side.
type capability struct {
	Operators []FilterOperator
	Forced    FilterOperator
}

var (
	numericOps = []FilterOperator{FilterEquals, FilterNotEquals, FilterGreater, FilterLess}
	stringOps  = []FilterOperator{FilterEquals, FilterNotEquals, FilterContains}
)

// capabilities maps every supported property to what the server's table API
// can evaluate for it. Substring-only columns (free text the server indexes
// rather than matches) force Contains.
var capabilities = map[Property]capability{
	PropertyID:        {Operators: numericOps},
	PropertyParentID:  {Operators: numericOps},
	PropertyPriority:  {Operators: numericOps},
	PropertyInterval:  {Operators: numericOps},
	PropertySensorID:  {Operators: numericOps},
	PropertyName:      {Operators: stringOps},
	PropertyType:      {Operators: stringOps},
	PropertyStatus:    {Operators: stringOps},
	PropertyDevice:    {Operators: stringOps},
	PropertyGroup:     {Operators: stringOps},
	PropertyProbe:     {Operators: stringOps},
	PropertyHost:      {Operators: stringOps},
	PropertyLocation:  {Operators: stringOps},
	PropertyMethod:    {Operators: stringOps},
	PropertyRecipient: {Operators: stringOps},
	PropertyTimeTable: {Operators: stringOps},
	PropertyUnit:      {Operators: stringOps},
	PropertyActive:    {Operators: []FilterOperator{FilterEquals, FilterNotEquals}},
	PropertyTags:      {Forced: FilterContains},
	PropertyMessage:   {Forced: FilterContains},
	PropertyLastValue: {Forced: FilterContains},
}

// OperatorFor reports the operator the server will actually evaluate when
// the given one is requested against the property. The second return is
// false when the server cannot evaluate any form of the request and the
// comparison has to stay client-side.
//
// When the returned operator differs from the requested one the server-side
// match is a superset; callers keep the original comparison as a residual.
// A forced operator is substituted only when every record the requested
// comparison accepts also matches it. Contains covers Equals and Contains;
// NotEquals, Greater and Less on a forced column would exclude records the
// request accepts, so those stay client-side.
func OperatorFor(p Property, requested FilterOperator) (FilterOperator, bool) {
	c, ok := capabilities[p]
	if !ok {
		return "", false
	}
	if c.Forced != "" {
		if requested == FilterEquals || requested == c.Forced {
			return c.Forced, true
		}
		return "", false
	}
	for _, op := range c.Operators {
		if op == requested {
			return requested, true
		}
	}
	return "", false
}

// KnownProperty reports whether p belongs to the supported enumeration.
func KnownProperty(p Property) bool {
	_, ok := capabilities[p]
	return ok
}

// PropertyValue is one pending name/value assignment on an object.
type PropertyValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PropertySet is an ordered collection of property assignments sent to the
// write endpoint. Values are carried as strings; the server performs its own
// coercion.
type PropertySet struct {
	values []PropertyValue
}

// Set appends a typed property assignment. The property must belong to the
// supported enumeration.
func (ps PropertySet) Set(p Property, value interface{}) (PropertySet, error) {
	if !KnownProperty(p) {
		return ps, ErrUnknownProperty
	}
	return ps.SetRaw(string(p), cast.ToString(value)), nil
}

// SetRaw appends an assignment without any validation. Raw names and values
// are passed through untouched; a server-side rejection surfaces from the
// write request.
func (ps PropertySet) SetRaw(name, value string) PropertySet {
	next := PropertySet{values: make([]PropertyValue, 0, len(ps.values)+1)}
	next.values = append(next.values, ps.values...)
	next.values = append(next.values, PropertyValue{Name: name, Value: value})
	return next
}

// Values returns the assignments in insertion order.
func (ps PropertySet) Values() []PropertyValue {
	out := make([]PropertyValue, len(ps.values))
	copy(out, ps.values)
	return out
}

// Len returns the number of assignments.
func (ps PropertySet) Len() int {
	return len(ps.values)
}

// Key returns a canonical representation of the set, independent of
// insertion order, used to group identical mutations together.
func (ps PropertySet) Key() string {
	pairs := make([]string, 0, len(ps.values))
	for _, v := range ps.values {
		pairs = append(pairs, v.Name+"\x00"+v.Value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "\x1f")
}
