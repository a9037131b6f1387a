// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/vigil-monitoring/vigil-go/model"
)

// tableRequest captures the parameters of one simulated table round trip.
type tableRequest struct {
	ct     model.ContentType
	start  int
	count  int
	sortBy string
}

// fakeIssuer simulates the server's table API over an in-memory record set,
// mirroring the server's filter semantics (ANDed clauses, case-insensitive
// equality). It records every request so tests can assert on request
// counts, page ranges and pushed-down parameters.
type fakeIssuer struct {
	records []model.Record

	tableRequests []tableRequest
	lastFilters   []model.SearchFilter
	countRequests int

	// tableErrAt makes the table request with that start offset fail.
	tableErrAt *int
	tableErr   error
	countErr   error
}

func (f *fakeIssuer) Table(_ context.Context, ct model.ContentType, filters []model.SearchFilter, _ []string, sortBy string, start, count int) (model.Page, error) {
	f.tableRequests = append(f.tableRequests, tableRequest{ct: ct, start: start, count: count, sortBy: sortBy})
	f.lastFilters = filters
	if f.tableErrAt != nil && *f.tableErrAt == start {
		return model.Page{}, f.tableErr
	}

	matched := f.filtered(filters, sortBy)
	end := start + count
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}
	return model.Page{Records: matched[start:end], Total: len(matched)}, nil
}

func (f *fakeIssuer) TotalCount(_ context.Context, _ model.ContentType, filters []model.SearchFilter) (int, error) {
	f.countRequests++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.filtered(filters, "")), nil
}

func (f *fakeIssuer) filtered(filters []model.SearchFilter, sortBy string) []model.Record {
	out := make([]model.Record, 0, len(f.records))
	for _, r := range f.records {
		if serverMatches(r, filters) {
			out = append(out, r)
		}
	}
	if sortBy != "" {
		prop, desc := model.Property(sortBy), false
		if strings.HasPrefix(sortBy, "-") {
			prop, desc = model.Property(sortBy[1:]), true
		}
		stableSort(out, lessBy(prop, desc))
	}
	return out
}

// serverMatches evaluates filters the way the server does: every clause
// must hold, and equality ignores case.
func serverMatches(r model.Record, filters []model.SearchFilter) bool {
	for _, f := range filters {
		cmp := Comparison{Property: f.Property, Operator: f.Operator, Value: f.Value}
		if !cmp.Matches(r) {
			return false
		}
	}
	return true
}

// makeSensors builds n synthetic sensors with predictable values: IDs start
// at 1000, statuses alternate Up/Down, every sensor belongs to one of three
// devices.
func makeSensors(n int) []model.Record {
	devices := []string{"core-router", "edge-switch", "lab-server"}
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		status := model.StatusUp
		if i%2 == 1 {
			status = model.StatusDown
		}
		out = append(out, &model.Sensor{
			Object: model.Object{
				ID:       1000 + i,
				Name:     fmt.Sprintf("Sensor %d", i),
				Type:     model.ContentSensors,
				Active:   true,
				Priority: i%5 + 1,
			},
			Status: status,
			Device: devices[i%len(devices)],
		})
	}
	return out
}

func sensorIDs(records []model.Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.RecordID())
	}
	return ids
}
