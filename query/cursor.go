// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"

	"github.com/vigil-monitoring/vigil-go/model"
)

// defaultPageSize is the record window requested per round trip when the
// caller does not choose one.
const defaultPageSize = 500

// cursor walks the remote collection one page at a time. A cursor belongs
// to a single enumeration and is never shared; restarting means building a
// new cursor.
type cursor struct {
	issuer   Issuer
	ct       model.ContentType
	filters  []model.SearchFilter
	columns  []string
	sortBy   string
	pageSize int

	// requireTotal forces a dedicated count request before the first page
	// fetch so that iteration is bounded up front.
	requireTotal bool

	offset     int
	total      int
	totalKnown bool
	exhausted  bool
}

func newCursor(issuer Issuer, ct model.ContentType, filters []model.SearchFilter, columns []string, sortBy string, start, pageSize int) *cursor {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &cursor{
		issuer:   issuer,
		ct:       ct,
		filters:  filters,
		columns:  columns,
		sortBy:   sortBy,
		pageSize: pageSize,
		offset:   start,
	}
}

// fetchNext issues the request for [offset, offset+pageSize) and advances
// the offset by the number of records actually returned. Cancellation is
// observed here, before the request goes out; a cancelled fetch yields no
// partial page.
func (c *cursor) fetchNext(ctx context.Context) (model.Page, error) {
	if err := ctx.Err(); err != nil {
		return model.Page{}, err
	}

	if c.requireTotal && !c.totalKnown {
		if _, err := c.ensureTotal(ctx); err != nil {
			return model.Page{}, err
		}
	}

	count := c.pageSize
	if c.totalKnown && c.offset+count > c.total {
		count = c.total - c.offset
	}
	if count <= 0 {
		c.exhausted = true
		return model.Page{}, nil
	}

	page, err := c.issuer.Table(ctx, c.ct, c.filters, c.columns, c.sortBy, c.offset, count)
	if err != nil {
		return model.Page{}, &FetchError{ContentType: c.ct, Start: c.offset, Count: count, Err: err}
	}

	c.offset += len(page.Records)
	c.total = page.Total
	c.totalKnown = true
	if len(page.Records) < count || c.offset >= c.total {
		c.exhausted = true
	}
	return page, nil
}

// done reports whether further fetches can produce records.
func (c *cursor) done() bool {
	if c.exhausted {
		return true
	}
	return c.totalKnown && c.offset >= c.total
}

// ensureTotal returns the filtered collection size, issuing the dedicated
// zero-record count request at most once per enumeration.
func (c *cursor) ensureTotal(ctx context.Context) (int, error) {
	if c.totalKnown {
		return c.total, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	total, err := c.issuer.TotalCount(ctx, c.ct, c.filters)
	if err != nil {
		return 0, &FetchError{ContentType: c.ct, Err: err}
	}
	c.total = total
	c.totalKnown = true
	return total, nil
}
