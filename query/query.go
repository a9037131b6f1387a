// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package query implements a deferred query pipeline over the monitoring
// server's paginated table API. Operators compose into an immutable
// descriptor without performing I/O; a terminal call decides how much of
// the descriptor the server can evaluate, pushes that portion into request
// parameters, and evaluates the remainder against the streamed pages.
package query

import (
	"context"
	"io"

	"github.com/vigil-monitoring/vigil-go/model"
)

type opKind int

const (
	opWhere opKind = iota
	opTake
	opSkip
	opOrderBy
)

// operation is one pending operator in a descriptor.
type operation struct {
	kind opKind
	pred Predicate
	n    int
	sort model.Property
	desc bool
}

// Query is an immutable descriptor of deferred operators over one content
// type. Operator methods return a new descriptor; terminals (ToList, Count,
// Any, First, Stream+Next) execute it. A descriptor can be executed any
// number of times; every execution re-enumerates the remote collection.
type Query struct {
	issuer   Issuer
	ct       model.ContentType
	ops      []operation
	pageSize int
	columns  []string
	start    int
	err      error
}

// Option customizes a new query descriptor.
type Option func(*Query)

// WithPageSize sets how many records each page request asks for.
func WithPageSize(n int) Option {
	return func(q *Query) {
		q.pageSize = n
	}
}

// WithColumns restricts which columns the table requests transfer.
func WithColumns(columns ...model.Property) Option {
	return func(q *Query) {
		q.columns = make([]string, 0, len(columns))
		for _, c := range columns {
			q.columns = append(q.columns, string(c))
		}
	}
}

// StartAt positions the enumeration at an absolute raw-record offset,
// typically one reported by Stream.NextOffset from an earlier query.
func StartAt(offset int) Option {
	return func(q *Query) {
		if offset < 0 {
			q.err = ErrNegativeArgument
			return
		}
		q.start = offset
	}
}

// New builds an empty descriptor targeting one content type.
func New(issuer Issuer, ct model.ContentType, opts ...Option) *Query {
	q := &Query{issuer: issuer, ct: ct}
	if issuer == nil {
		q.err = ErrNilIssuer
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// extend clones the descriptor with one more operation.
func (q *Query) extend(op operation) *Query {
	next := *q
	next.ops = make([]operation, 0, len(q.ops)+1)
	next.ops = append(next.ops, q.ops...)
	next.ops = append(next.ops, op)
	return &next
}

// Where appends a filter. Successive Where calls compose as a conjunction
// for pushdown purposes.
func (q *Query) Where(p Predicate) *Query {
	return q.extend(operation{kind: opWhere, pred: p})
}

// Take bounds the enumeration to the first n records at this point of the
// pipeline. Directly chained Take calls collapse to the minimum while the
// descriptor is still being built.
func (q *Query) Take(n int) *Query {
	if n < 0 {
		next := *q
		next.err = ErrNegativeArgument
		return &next
	}
	if last := len(q.ops) - 1; last >= 0 && q.ops[last].kind == opTake {
		next := *q
		next.ops = make([]operation, len(q.ops))
		copy(next.ops, q.ops)
		if n < next.ops[last].n {
			next.ops[last].n = n
		}
		return &next
	}
	return q.extend(operation{kind: opTake, n: n})
}

// Skip drops the first n records at this point of the pipeline.
func (q *Query) Skip(n int) *Query {
	if n < 0 {
		next := *q
		next.err = ErrNegativeArgument
		return &next
	}
	return q.extend(operation{kind: opSkip, n: n})
}

// OrderBy sorts by a property in ascending order. A later OrderBy replaces
// an earlier one when both can be pushed to the server.
func (q *Query) OrderBy(p model.Property) *Query {
	return q.extend(operation{kind: opOrderBy, sort: p})
}

// OrderByDescending sorts by a property in descending order.
func (q *Query) OrderByDescending(p model.Property) *Query {
	return q.extend(operation{kind: opOrderBy, sort: p, desc: true})
}

type stageKind int

const (
	stageWhere stageKind = iota
	stageTake
	stageSkip
	stageSort
)

type stageSpec struct {
	kind stageKind
	pred Predicate
	n    int
	sort model.Property
	desc bool
}

// plan is a compiled descriptor: the server-side portion as request
// parameters and the client-side remainder as an ordered stage list.
type plan struct {
	empty      bool
	filters    []model.SearchFilter
	residual   Predicate
	sortBy     string
	serverSkip int
	stages     []stageSpec

	// needsBound marks a Where past a Take boundary; the executor then
	// obtains the collection total up front so iteration stays bounded.
	needsBound bool
}

// fullyPushed reports whether the server evaluates the whole descriptor,
// which lets Count trust a count request instead of materializing matches.
func (p *plan) fullyPushed() bool {
	return p.residual == nil && len(p.stages) == 0
}

// compile walks the operator list left to right and decides, once, what
// pushes server-side. Where filters before any Take or Skip push; a Take or
// Skip is a boundary after which every operator evaluates client-side,
// since a server filter would change which records count against the
// boundary. An untranslatable predicate is not an error: it degrades to
// client-side evaluation of that clause.
func (q *Query) compile() (*plan, error) {
	if q.err != nil {
		return nil, q.err
	}

	var (
		p        = &plan{}
		pushPred Predicate
		boundary bool
		sawTake  bool
	)
	finishPush := func() bool {
		tr := translate(pushPred)
		if tr.empty {
			p.empty = true
			return false
		}
		p.filters = tr.filters
		p.residual = tr.residual
		return true
	}

	for _, op := range q.ops {
		switch op.kind {
		case opWhere:
			if !boundary {
				if pushPred == nil {
					pushPred = op.pred
				} else {
					pushPred = And(pushPred, op.pred)
				}
				continue
			}
			p.stages = append(p.stages, stageSpec{kind: stageWhere, pred: op.pred})
			if sawTake {
				p.needsBound = true
			}
		case opOrderBy:
			if !boundary {
				p.sortBy = string(op.sort)
				if op.desc {
					p.sortBy = "-" + p.sortBy
				}
				continue
			}
			p.stages = append(p.stages, stageSpec{kind: stageSort, sort: op.sort, desc: op.desc})
		case opTake:
			if !boundary {
				if !finishPush() {
					return p, nil
				}
				boundary = true
			}
			sawTake = true
			p.stages = append(p.stages, stageSpec{kind: stageTake, n: op.n})
		case opSkip:
			if !boundary {
				if !finishPush() {
					return p, nil
				}
				boundary = true
				if p.residual == nil && len(p.stages) == 0 {
					p.serverSkip = op.n
					continue
				}
			}
			p.stages = append(p.stages, stageSpec{kind: stageSkip, n: op.n})
		}
	}

	if !boundary {
		finishPush()
	}
	return p, nil
}

// open builds the lazy stream for one execution of the descriptor. No
// request is issued here.
func (q *Query) open() (*Stream, error) {
	p, err := q.compile()
	if err != nil {
		return nil, err
	}
	if p.empty {
		return emptyStream(q.start), nil
	}

	cur := newCursor(q.issuer, q.ct, p.filters, q.columns, p.sortBy, q.start+p.serverSkip, q.pageSize)
	cur.requireTotal = p.needsBound
	src := newSourceStream(cur, p.residual)

	var it recordIter = src
	for _, st := range p.stages {
		switch st.kind {
		case stageWhere:
			it = &whereStage{src: it, pred: st.pred}
		case stageTake:
			it = &takeStage{src: it, n: st.n}
		case stageSkip:
			it = &skipStage{src: it, n: st.n}
		case stageSort:
			it = &sortStage{src: it, less: lessBy(st.sort, st.desc)}
		}
	}
	return &Stream{it: it, base: src}, nil
}

func lessBy(p model.Property, desc bool) func(a, b model.Record) bool {
	return func(a, b model.Record) bool {
		av, _ := a.Value(p)
		bv, _ := b.Value(p)
		if desc {
			return looseCompare(av, bv) > 0
		}
		return looseCompare(av, bv) < 0
	}
}

// Stream opens a lazy enumeration of the descriptor. The first page request
// happens on the first Next call.
func (q *Query) Stream() (*Stream, error) {
	return q.open()
}

// ToList executes the descriptor and materializes every matching record.
func (q *Query) ToList(ctx context.Context) ([]model.Record, error) {
	s, err := q.open()
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

// Count executes the descriptor and returns how many records match. When
// the whole descriptor pushed server-side this is a single count request
// and no page is fetched; any residual or client-side operator forces a
// full fetch-and-filter count, since the server total cannot account for
// clauses it never saw.
func (q *Query) Count(ctx context.Context) (int, error) {
	p, err := q.compile()
	if err != nil {
		return 0, err
	}
	if p.empty {
		return 0, nil
	}
	if p.fullyPushed() {
		cur := newCursor(q.issuer, q.ct, p.filters, q.columns, p.sortBy, 0, q.pageSize)
		total, err := cur.ensureTotal(ctx)
		if err != nil {
			return 0, err
		}
		total -= q.start + p.serverSkip
		if total < 0 {
			total = 0
		}
		return total, nil
	}

	s, err := q.open()
	if err != nil {
		return 0, err
	}
	count := 0
	for {
		_, err := s.Next(ctx)
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
	}
}

// CountWhere is shorthand for Where(p).Count(ctx).
func (q *Query) CountWhere(ctx context.Context, p Predicate) (int, error) {
	return q.Where(p).Count(ctx)
}

// Any reports whether at least one record matches. The underlying stream
// stops issuing page requests as soon as a match is produced.
func (q *Query) Any(ctx context.Context) (bool, error) {
	s, err := q.open()
	if err != nil {
		return false, err
	}
	_, err = s.Next(ctx)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AnyWhere is shorthand for Where(p).Any(ctx).
func (q *Query) AnyWhere(ctx context.Context, p Predicate) (bool, error) {
	return q.Where(p).Any(ctx)
}

// First returns the first matching record, or ErrNoMatch when the
// enumeration is empty.
func (q *Query) First(ctx context.Context) (model.Record, error) {
	s, err := q.open()
	if err != nil {
		return nil, err
	}
	record, err := s.Next(ctx)
	if err == io.EOF {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FirstWhere is shorthand for Where(p).First(ctx).
func (q *Query) FirstWhere(ctx context.Context, p Predicate) (model.Record, error) {
	return q.Where(p).First(ctx)
}
