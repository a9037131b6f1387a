// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package batch accumulates object mutations and flushes them as few
// multi-target write requests instead of one request per object.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/vigil-monitoring/vigil-go/model"
)

// ErrNilWriter is returned when a queue is built without a write issuer.
var ErrNilWriter = errors.New("write issuer cannot be nil")

// Writer is the collaborator that performs the multi-target property write.
// Implementations must be safe for external retry; the queue never retries.
type Writer interface {
	SetProperties(ctx context.Context, ids []int, props model.PropertySet) error
}

// WriteError reports a failed multi-target write together with every object
// identifier the failing request covered.
type WriteError struct {
	IDs []int
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("property write failed for %d object(s) %v: %s", len(e.IDs), e.IDs, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

type entry struct {
	id    int
	props model.PropertySet
}

// Queue collects pending (object, property set) mutations for a single
// pipeline invocation. A Queue is not safe for concurrent use; each
// invocation owns its own.
type Queue struct {
	writer  Writer
	entries []entry
}

// NewQueue builds an empty mutation queue around a write issuer.
func NewQueue(w Writer) (*Queue, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	return &Queue{writer: w}, nil
}

// Enqueue records a pending mutation. Nothing is sent until Flush. Raw
// property sets are accepted as-is; the queue batches values, it does not
// validate them.
func (q *Queue) Enqueue(id int, props model.PropertySet) {
	if props.Len() == 0 {
		return
	}
	q.entries = append(q.entries, entry{id: id, props: props})
}

// Len returns the number of pending mutations.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Discard drops every pending mutation without issuing any request. A
// pipeline that aborts before Flush calls Discard so that a cancelled batch
// never results in partial writes.
func (q *Queue) Discard() {
	q.entries = nil
}

// Flush groups pending mutations by identical property set and issues one
// write request per group, all target identifiers together. Entries are
// cleared afterwards. Failures across groups are surfaced as a single
// WriteError carrying every failing identifier; successful groups are not
// rolled back.
//
// Cancellation is observed before each request: a context cancelled before
// the first request means zero writes are issued.
func (q *Queue) Flush(ctx context.Context) error {
	groups, order := q.group()
	q.entries = nil

	var (
		failedIDs []int
		lastErr   error
	)
	for _, key := range order {
		g := groups[key]
		if err := ctx.Err(); err != nil {
			// Remaining groups are abandoned, not partially written.
			return err
		}
		if err := q.writer.SetProperties(ctx, g.ids, g.props); err != nil {
			failedIDs = append(failedIDs, g.ids...)
			lastErr = err
		}
	}
	if lastErr != nil {
		return &WriteError{IDs: failedIDs, Err: lastErr}
	}
	return nil
}

type group struct {
	props model.PropertySet
	ids   []int
}

// group buckets entries by the canonical key of their property set,
// preserving first-seen order of both groups and identifiers.
func (q *Queue) group() (map[string]*group, []string) {
	groups := map[string]*group{}
	var order []string
	for _, e := range q.entries {
		key := e.props.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{props: e.props}
			groups[key] = g
			order = append(order, key)
		}
		g.ids = append(g.ids, e.id)
	}
	return groups, order
}
