// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-monitoring/vigil-go/model"
)

func TestCursorWalksCollection(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(25)}
		cur = newCursor(f, model.ContentSensors, nil, nil, "", 0, 10)
		ctx = context.Background()
	)

	first, err := cur.fetchNext(ctx)
	require.NoError(err)
	assert.Len(first.Records, 10)
	assert.Equal(25, first.Total)
	assert.Equal(10, cur.offset)
	assert.False(cur.done())

	second, err := cur.fetchNext(ctx)
	require.NoError(err)
	assert.Len(second.Records, 10)
	assert.False(cur.done())

	third, err := cur.fetchNext(ctx)
	require.NoError(err)
	assert.Len(third.Records, 5, "final page is short")
	assert.True(cur.done())

	assert.Equal([]tableRequest{
		{ct: model.ContentSensors, start: 0, count: 10},
		{ct: model.ContentSensors, start: 10, count: 10},
		{ct: model.ContentSensors, start: 20, count: 5},
	}, f.tableRequests)
}

func TestCursorTotalRequestedOnce(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(7)}
		cur = newCursor(f, model.ContentSensors, nil, nil, "", 0, 10)
	)

	total, err := cur.ensureTotal(context.Background())
	require.NoError(err)
	assert.Equal(7, total)

	_, err = cur.ensureTotal(context.Background())
	require.NoError(err)
	assert.Equal(1, f.countRequests, "the count request is issued at most once per enumeration")
}

func TestCursorFetchFailureTagsPageRange(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		boom    = errors.New("connection reset")
		errAt   = 10
		f       = &fakeIssuer{records: makeSensors(25), tableErrAt: &errAt, tableErr: boom}
		cur     = newCursor(f, model.ContentSensors, nil, nil, "", 0, 10)
		ctx     = context.Background()
		fetched *FetchError
	)

	_, err := cur.fetchNext(ctx)
	require.NoError(err)

	_, err = cur.fetchNext(ctx)
	require.Error(err)
	require.ErrorAs(err, &fetched)
	assert.Equal(10, fetched.Start)
	assert.Equal(10, fetched.Count)
	assert.Equal(model.ContentSensors, fetched.ContentType)
	assert.ErrorIs(err, boom)
}

func TestCursorCancellationBeforeFetch(t *testing.T) {
	var (
		assert = assert.New(t)

		f   = &fakeIssuer{records: makeSensors(25)}
		cur = newCursor(f, model.ContentSensors, nil, nil, "", 0, 10)
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cur.fetchNext(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Empty(f.tableRequests, "no request may be issued after cancellation")
}

func TestCursorClampsFinalPage(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		f   = &fakeIssuer{records: makeSensors(12)}
		cur = newCursor(f, model.ContentSensors, nil, nil, "", 0, 10)
		ctx = context.Background()
	)

	_, err := cur.fetchNext(ctx)
	require.NoError(err)

	page, err := cur.fetchNext(ctx)
	require.NoError(err)
	assert.Len(page.Records, 2)
	assert.Equal(2, f.tableRequests[1].count, "the request is clamped once the total is known")
	assert.True(cur.done())
}
