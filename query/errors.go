// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"errors"
	"fmt"

	"github.com/vigil-monitoring/vigil-go/model"
)

// Errors that can be returned by this package. Since some of these errors
// are returned wrapped, it is safest to use errors.Is() to check for them.
var (
	// ErrNoMatch is returned by First when the query yields no records.
	ErrNoMatch = errors.New("no records matched the query")

	// ErrNilIssuer is returned when a query is constructed without a
	// request issuer.
	ErrNilIssuer = errors.New("request issuer cannot be nil")

	// ErrNegativeArgument is returned when Take, Skip or a start offset is
	// given a negative count.
	ErrNegativeArgument = errors.New("operator argument cannot be negative")
)

// FetchError wraps a transport failure during a page or count fetch with
// the page range that was being requested. This package never retries;
// retry policy belongs to the request issuer.
type FetchError struct {
	ContentType model.ContentType

	// Start and Count identify the failing page range. A zero Count marks
	// a failing count request.
	Start int
	Count int

	Err error
}

func (e *FetchError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("count request for %s failed: %s", e.ContentType, e.Err)
	}
	return fmt.Sprintf("page request for %s [%d, %d) failed: %s", e.ContentType, e.Start, e.Start+e.Count, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
