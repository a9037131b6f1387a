// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"io"
	"sort"

	"github.com/vigil-monitoring/vigil-go/model"
)

// recordIter is the internal pull protocol shared by the streaming source
// and the client-side operator stages. next returns io.EOF at the end of
// the sequence; any other error is terminal for the iterator.
type recordIter interface {
	next(ctx context.Context) (model.Record, error)
}

// sourceStream is the streaming object source: it drives a pagination
// cursor, applies the residual predicate to each page's records before
// yielding, and tracks how many RAW records it consumed. Raw bookkeeping
// (consumed, not matched) is what makes resuming from NextOffset exact.
//
// A sourceStream is single-use. After an error it stays failed; restart by
// building a new one.
type sourceStream struct {
	cur      *cursor
	residual Predicate

	buf    []model.Record
	bufIdx int
	raw    int
	start  int
	err    error
	done   bool
}

func newSourceStream(cur *cursor, residual Predicate) *sourceStream {
	return &sourceStream{
		cur:      cur,
		residual: residual,
		start:    cur.offset,
	}
}

func (s *sourceStream) next(ctx context.Context) (model.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		for s.bufIdx < len(s.buf) {
			record := s.buf[s.bufIdx]
			s.bufIdx++
			s.raw++
			if s.residual == nil || s.residual.Matches(record) {
				return record, nil
			}
		}

		if s.cur.done() {
			s.done = true
			return nil, io.EOF
		}
		page, err := s.cur.fetchNext(ctx)
		if err != nil {
			s.err = err
			return nil, err
		}
		if len(page.Records) == 0 {
			s.done = true
			return nil, io.EOF
		}
		s.buf = page.Records
		s.bufIdx = 0
	}
}

// nextOffset is the absolute offset of the first record this stream has not
// consumed. Filtered-out records count; records sitting unread in the
// current page do not.
func (s *sourceStream) nextOffset() int {
	return s.start + s.raw
}

// Stream is a lazy, resumable enumeration of matching records. No request
// is issued until Next is first called. Next returns io.EOF once the
// sequence ends; records yielded before a failure remain valid.
type Stream struct {
	it   recordIter
	base *sourceStream
}

// emptyStream is a stream that never issues a request, used when the
// descriptor is provably empty.
func emptyStream(start int) *Stream {
	return &Stream{
		it:   emptyIter{},
		base: &sourceStream{done: true, start: start},
	}
}

// Next pulls the next matching record, fetching further pages as needed.
// Cancellation is checked at each page-fetch boundary; a cancelled context
// surfaces as ctx.Err().
func (s *Stream) Next(ctx context.Context) (model.Record, error) {
	return s.it.next(ctx)
}

// NextOffset reports where in the raw remote collection a subsequent
// independent query should start so that no record is skipped or fetched
// twice, regardless of how many consumed records the residual predicate
// discarded.
func (s *Stream) NextOffset() int {
	return s.base.nextOffset()
}

// Collect drains the stream into a slice.
func (s *Stream) Collect(ctx context.Context) ([]model.Record, error) {
	var out []model.Record
	for {
		record, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, record)
	}
}

// emptyIter is the zero-request sequence used for provably empty results.
type emptyIter struct{}

func (emptyIter) next(context.Context) (model.Record, error) {
	return nil, io.EOF
}

// whereStage filters a sequence client-side.
type whereStage struct {
	src  recordIter
	pred Predicate
}

func (w *whereStage) next(ctx context.Context) (model.Record, error) {
	for {
		record, err := w.src.next(ctx)
		if err != nil {
			return nil, err
		}
		if w.pred.Matches(record) {
			return record, nil
		}
	}
}

// takeStage ends the sequence after n records without pulling further,
// which is what stops page fetches once a Take is satisfied.
type takeStage struct {
	src  recordIter
	n    int
	seen int
}

func (t *takeStage) next(ctx context.Context) (model.Record, error) {
	if t.seen >= t.n {
		return nil, io.EOF
	}
	record, err := t.src.next(ctx)
	if err != nil {
		return nil, err
	}
	t.seen++
	return record, nil
}

// skipStage discards the first n records of a sequence.
type skipStage struct {
	src     recordIter
	n       int
	skipped bool
}

func (s *skipStage) next(ctx context.Context) (model.Record, error) {
	if !s.skipped {
		s.skipped = true
		for i := 0; i < s.n; i++ {
			if _, err := s.src.next(ctx); err != nil {
				return nil, err
			}
		}
	}
	return s.src.next(ctx)
}

// sortStage materializes its input on first pull and replays it ordered.
// Only used when an OrderBy appears past the point where it could have been
// pushed to the server.
type sortStage struct {
	src      recordIter
	less     func(a, b model.Record) bool
	sorted   []model.Record
	idx      int
	prepared bool
}

func (s *sortStage) next(ctx context.Context) (model.Record, error) {
	if !s.prepared {
		records, err := collect(ctx, s.src)
		if err != nil {
			return nil, err
		}
		stableSort(records, s.less)
		s.sorted = records
		s.prepared = true
	}
	if s.idx >= len(s.sorted) {
		return nil, io.EOF
	}
	record := s.sorted[s.idx]
	s.idx++
	return record, nil
}

func collect(ctx context.Context, it recordIter) ([]model.Record, error) {
	var out []model.Record
	for {
		record, err := it.next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
}

func stableSort(records []model.Record, less func(a, b model.Record) bool) {
	sort.SliceStable(records, func(i, j int) bool {
		return less(records[i], records[j])
	})
}
