// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-monitoring/vigil-go/model"
)

func TestTakeCollapsesAtBuildTime(t *testing.T) {
	var (
		assert = assert.New(t)
		f      = &fakeIssuer{}
	)

	q := New(f, model.ContentSensors).Take(5).Take(3).Take(7)
	assert.Len(q.ops, 1, "directly chained Takes collapse to one operation")
	assert.Equal(3, q.ops[0].n)

	// and the collapse happens while building, not by executing each Take
	for a := 0; a <= 3; a++ {
		for b := 0; b <= 3; b++ {
			min := a
			if b < a {
				min = b
			}
			collapsed := New(f, model.ContentSensors).Take(a).Take(b)
			assert.Equal(min, collapsed.ops[0].n, "Take(%d).Take(%d)", a, b)
		}
	}
}

func TestTakeTakeEquivalence(t *testing.T) {
	var (
		require = require.New(t)
		assert  = assert.New(t)
		ctx     = context.Background()
	)

	for a := 0; a <= 4; a++ {
		for b := 0; b <= 4; b++ {
			f := &fakeIssuer{records: makeSensors(10)}
			chained, err := New(f, model.ContentSensors, WithPageSize(3)).Take(a).Take(b).ToList(ctx)
			require.NoError(err)

			min := a
			if b < a {
				min = b
			}
			direct, err := New(f, model.ContentSensors, WithPageSize(3)).Take(min).ToList(ctx)
			require.NoError(err)
			assert.Equal(sensorIDs(direct), sensorIDs(chained), "Take(%d).Take(%d)", a, b)
		}
	}
}

func TestQueryDescriptorIsImmutable(t *testing.T) {
	var (
		assert = assert.New(t)
		f      = &fakeIssuer{}
	)

	base := New(f, model.ContentSensors).Where(Equals(model.PropertyStatus, "Down"))
	withTake := base.Take(5)
	withMore := base.Where(GreaterThan(model.PropertyPriority, 3))

	assert.Len(base.ops, 1)
	assert.Len(withTake.ops, 2)
	assert.Len(withMore.ops, 2)
	assert.NotEqual(withTake.ops[1], withMore.ops[1])
}

func TestUnsatisfiableFilterIssuesNoRequests(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(10)}
		ctx = context.Background()
	)

	records, err := New(f, model.ContentSensors).
		Where(Equals(model.PropertyID, 4001)).
		Where(Equals(model.PropertyID, 4002)).
		ToList(ctx)
	require.NoError(err)

	assert.Empty(records)
	assert.Empty(f.tableRequests, "a contradictory filter must not reach the server")
	assert.Zero(f.countRequests)

	count, err := New(f, model.ContentSensors).
		Where(And(Equals(model.PropertyID, 4001), Equals(model.PropertyID, 4002))).
		Count(ctx)
	require.NoError(err)
	assert.Zero(count)
	assert.Zero(f.countRequests)
}

func TestCountFullyPushed(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(20)}
		ctx = context.Background()
	)

	count, err := New(f, model.ContentSensors).
		Where(Equals(model.PropertyStatus, "Down")).
		Count(ctx)
	require.NoError(err)

	assert.Equal(10, count)
	assert.Equal(1, f.countRequests)
	assert.Empty(f.tableRequests, "a fully pushed Count fetches no pages")
}

func TestCountWithResidualCountsClientSideMatches(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(20)}
		ctx = context.Background()
	)

	// OR across properties is untranslatable: the count must come from
	// materializing matches, not from any server-reported total.
	p := Or(
		Equals(model.PropertyDevice, "core-router"),
		Equals(model.PropertyStatus, "Down"),
	)
	count, err := New(f, model.ContentSensors, WithPageSize(6)).Where(p).Count(ctx)
	require.NoError(err)

	expected := 0
	for _, r := range f.records {
		if p.Matches(r) {
			expected++
		}
	}
	assert.Equal(expected, count)
	assert.Zero(f.countRequests, "the server total is not trusted for residual predicates")
	assert.NotEmpty(f.tableRequests)
}

func TestAnyShortCircuits(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(60)}
		ctx = context.Background()
	)

	// first match sits at raw index 25; with pages of 10 that is page 3
	ok, err := New(f, model.ContentSensors, WithPageSize(10)).
		Where(MatchFunc(func(r model.Record) bool { return r.RecordID() == 1025 })).
		Any(ctx)
	require.NoError(err)

	assert.True(ok)
	assert.Len(f.tableRequests, 3, "Any must stop fetching once satisfied")
}

func TestAnyOnEmptyCollection(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f = &fakeIssuer{}
	)

	ok, err := New(f, model.ContentSensors).Any(context.Background())
	require.NoError(err)
	assert.False(ok)
}

func TestFirstReturnsErrNoMatch(t *testing.T) {
	var (
		assert = assert.New(t)
		f      = &fakeIssuer{records: makeSensors(5)}
	)

	_, err := New(f, model.ContentSensors).
		Where(Equals(model.PropertyName, "no such sensor")).
		First(context.Background())
	assert.ErrorIs(err, ErrNoMatch)
}

func TestTakeStopsFetchingAtSecondMatch(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		// six pages of 500 records; names match at absolute positions
		// 3, 506 and 1006 only
		records = makeSensors(3000)
		ctx     = context.Background()
	)
	for _, i := range []int{3, 506, 1006} {
		records[i].(*model.Sensor).Name = fmt.Sprintf("Needle %d", i)
	}
	f := &fakeIssuer{records: records}

	matches, err := New(f, model.ContentSensors, WithPageSize(500)).
		Where(MatchFunc(func(r model.Record) bool {
			name, _ := r.Value(model.PropertyName)
			return strings.HasPrefix(name.(string), "Needle")
		})).
		Take(2).
		ToList(ctx)
	require.NoError(err)

	assert.Equal([]int{1003, 1506}, sensorIDs(matches))
	assert.Equal([]tableRequest{
		{ct: model.ContentSensors, start: 0, count: 500},
		{ct: model.ContentSensors, start: 500, count: 500},
	}, f.tableRequests, "no fetch may go beyond the page containing the second match")
}

func TestWhereAfterTakeEvaluatesClientSide(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(20)}
		ctx = context.Background()
	)

	// take the first 6 records, then filter: the filter must not reach the
	// server, or it would change which records count against the Take
	records, err := New(f, model.ContentSensors, WithPageSize(10)).
		Take(6).
		Where(Equals(model.PropertyStatus, "Down")).
		ToList(ctx)
	require.NoError(err)

	assert.Equal([]int{1001, 1003, 1005}, sensorIDs(records))
	assert.Empty(f.lastFilters, "no filter may be pushed past a Take boundary")
	assert.Equal(1, f.countRequests, "a count request bounds the iteration")
}

func TestSkipPushesIntoStartOffset(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(20)}
		ctx = context.Background()
	)

	records, err := New(f, model.ContentSensors, WithPageSize(10)).
		Where(Equals(model.PropertyStatus, "Down")).
		Skip(3).
		ToList(ctx)
	require.NoError(err)

	assert.Equal(3, f.tableRequests[0].start, "a Skip after fully pushed filters becomes the start offset")
	assert.Len(records, 7)
}

func TestSkipWithResidualStaysClientSide(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(20)}
		ctx = context.Background()
	)

	p := Or(
		Equals(model.PropertyStatus, "Down"),
		Equals(model.PropertyDevice, "lab-server"),
	)
	records, err := New(f, model.ContentSensors, WithPageSize(10)).
		Where(p).
		Skip(3).
		ToList(ctx)
	require.NoError(err)

	assert.Zero(f.tableRequests[0].start, "skipping matched records cannot use a raw offset")

	var expected []int
	seen := 0
	for _, r := range f.records {
		if p.Matches(r) {
			seen++
			if seen > 3 {
				expected = append(expected, r.RecordID())
			}
		}
	}
	assert.Equal(expected, sensorIDs(records))
}

func TestOrderByPushesSortColumn(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(9)}
		ctx = context.Background()
	)

	records, err := New(f, model.ContentSensors, WithPageSize(4)).
		OrderByDescending(model.PropertyID).
		ToList(ctx)
	require.NoError(err)

	assert.Equal("-objid", f.tableRequests[0].sortBy)
	assert.Equal([]int{1008, 1007, 1006, 1005, 1004, 1003, 1002, 1001, 1000}, sensorIDs(records))
}

func TestOrderByAfterTakeSortsClientSide(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(10)}
		ctx = context.Background()
	)

	records, err := New(f, model.ContentSensors, WithPageSize(10)).
		Take(4).
		OrderByDescending(model.PropertyID).
		ToList(ctx)
	require.NoError(err)

	assert.Empty(f.tableRequests[0].sortBy, "a sort past the Take boundary stays local")
	assert.Equal([]int{1003, 1002, 1001, 1000}, sensorIDs(records))
}

func TestDegradationFetchesAllAndFiltersLocally(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(12)}
		ctx = context.Background()
	)

	p := Or(
		And(Equals(model.PropertyStatus, "Down"), Equals(model.PropertyDevice, "core-router")),
		MatchFunc(func(r model.Record) bool { return r.RecordID() == 1000 }),
	)
	records, err := New(f, model.ContentSensors, WithPageSize(5)).Where(p).ToList(ctx)
	require.NoError(err)

	assert.Empty(f.lastFilters)
	var expected []int
	for _, r := range f.records {
		if p.Matches(r) {
			expected = append(expected, r.RecordID())
		}
	}
	assert.Equal(expected, sensorIDs(records))
}

func TestFetchFailurePropagatesFromTerminal(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		errAt = 5
		f     = &fakeIssuer{records: makeSensors(20), tableErrAt: &errAt, tableErr: fmt.Errorf("boom")}
		ctx   = context.Background()
	)

	records, err := New(f, model.ContentSensors, WithPageSize(5)).ToList(ctx)
	require.Error(err)
	var fetched *FetchError
	assert.ErrorAs(err, &fetched)
	assert.Len(records, 5, "records yielded before the failure remain valid")
}

func TestReEnumerationIssuesFreshRequests(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(8)}
		ctx = context.Background()
		q   = New(f, model.ContentSensors, WithPageSize(10)).Where(Equals(model.PropertyStatus, "Up"))
	)

	first, err := q.ToList(ctx)
	require.NoError(err)
	second, err := q.ToList(ctx)
	require.NoError(err)

	assert.Equal(sensorIDs(first), sensorIDs(second))
	assert.Len(f.tableRequests, 2, "each execution re-enumerates")
}

func TestNilIssuer(t *testing.T) {
	assert := assert.New(t)

	_, err := New(nil, model.ContentSensors).ToList(context.Background())
	assert.ErrorIs(err, ErrNilIssuer)
}

func TestNegativeOperatorArguments(t *testing.T) {
	var (
		assert = assert.New(t)
		f      = &fakeIssuer{}
	)

	_, err := New(f, model.ContentSensors).Take(-1).ToList(context.Background())
	assert.ErrorIs(err, ErrNegativeArgument)

	_, err = New(f, model.ContentSensors).Skip(-2).Count(context.Background())
	assert.ErrorIs(err, ErrNegativeArgument)
}
