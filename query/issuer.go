// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"

	"github.com/vigil-monitoring/vigil-go/model"
)

// Issuer is the pre-authenticated collaborator that performs the actual
// HTTP round trips. Implementations must be safe for external retry; this
// package never retries on its own.
type Issuer interface {
	// Table requests the half-open record window [start, start+count) of
	// the remote collection selected by the content type, filters and sort
	// column. The returned page preserves server order and carries the
	// server-reported total at fetch time.
	Table(ctx context.Context, ct model.ContentType, filters []model.SearchFilter, columns []string, sortBy string, start, count int) (model.Page, error)

	// TotalCount requests the size of the filtered collection without
	// transferring any records.
	TotalCount(ctx context.Context, ct model.ContentType, filters []model.SearchFilter) (int, error)
}
