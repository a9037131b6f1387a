// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package vigil

import (
	"context"
	"errors"

	"github.com/vigil-monitoring/vigil-go/batch"
	"github.com/vigil-monitoring/vigil-go/model"
	"github.com/vigil-monitoring/vigil-go/query"
)

var errUnexpectedRecordType = errors.New("table payload produced an unexpected record type")

// Query starts a deferred query against an arbitrary content type.
func (c *BasicClient) Query(ct model.ContentType, opts ...query.Option) *query.Query {
	if c.pageSize > 0 {
		opts = append([]query.Option{query.WithPageSize(c.pageSize)}, opts...)
	}
	return query.New(c, ct, opts...)
}

// Sensors starts a deferred query over sensors.
func (c *BasicClient) Sensors(opts ...query.Option) *query.Query {
	return c.Query(model.ContentSensors, opts...)
}

// Devices starts a deferred query over devices.
func (c *BasicClient) Devices(opts ...query.Option) *query.Query {
	return c.Query(model.ContentDevices, opts...)
}

// Groups starts a deferred query over groups.
func (c *BasicClient) Groups(opts ...query.Option) *query.Query {
	return c.Query(model.ContentGroups, opts...)
}

// Probes starts a deferred query over probes.
func (c *BasicClient) Probes(opts ...query.Option) *query.Query {
	return c.Query(model.ContentProbes, opts...)
}

// Notifications starts a deferred query over notification actions.
func (c *BasicClient) Notifications(opts ...query.Option) *query.Query {
	return c.Query(model.ContentNotifications, opts...)
}

// Schedules starts a deferred query over schedules.
func (c *BasicClient) Schedules(opts ...query.Option) *query.Query {
	return c.Query(model.ContentSchedules, opts...)
}

// Channels starts a deferred query over sensor channels.
func (c *BasicClient) Channels(opts ...query.Option) *query.Query {
	return c.Query(model.ContentChannels, opts...)
}

// GetSensors materializes every sensor matching the given predicates.
func (c *BasicClient) GetSensors(ctx context.Context, predicates ...query.Predicate) ([]*model.Sensor, error) {
	records, err := applyWheres(c.Sensors(), predicates).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.Sensor](records)
}

// GetDevices materializes every device matching the given predicates.
func (c *BasicClient) GetDevices(ctx context.Context, predicates ...query.Predicate) ([]*model.Device, error) {
	records, err := applyWheres(c.Devices(), predicates).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.Device](records)
}

// GetGroups materializes every group matching the given predicates.
func (c *BasicClient) GetGroups(ctx context.Context, predicates ...query.Predicate) ([]*model.Group, error) {
	records, err := applyWheres(c.Groups(), predicates).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.Group](records)
}

// GetProbes materializes every probe matching the given predicates.
func (c *BasicClient) GetProbes(ctx context.Context, predicates ...query.Predicate) ([]*model.Probe, error) {
	records, err := applyWheres(c.Probes(), predicates).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.Probe](records)
}

// GetNotifications materializes every notification action matching the
// given predicates.
func (c *BasicClient) GetNotifications(ctx context.Context, predicates ...query.Predicate) ([]*model.NotificationAction, error) {
	records, err := applyWheres(c.Notifications(), predicates).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.NotificationAction](records)
}

// GetSchedules materializes every schedule matching the given predicates.
func (c *BasicClient) GetSchedules(ctx context.Context, predicates ...query.Predicate) ([]*model.Schedule, error) {
	records, err := applyWheres(c.Schedules(), predicates).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.Schedule](records)
}

// GetChannels materializes every channel of the given sensor.
func (c *BasicClient) GetChannels(ctx context.Context, sensorID int) ([]*model.Channel, error) {
	records, err := c.Channels().Where(query.Equals(model.PropertySensorID, sensorID)).ToList(ctx)
	if err != nil {
		return nil, err
	}
	return typedRecords[*model.Channel](records)
}

// NewBatch returns a mutation queue that flushes through this client.
func (c *BasicClient) NewBatch() *batch.Queue {
	// the only constructor error is a nil writer, which c is not
	q, _ := batch.NewQueue(c)
	return q
}

func applyWheres(q *query.Query, predicates []query.Predicate) *query.Query {
	for _, p := range predicates {
		q = q.Where(p)
	}
	return q
}

func typedRecords[T model.Record](records []model.Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, r := range records {
		typed, ok := r.(T)
		if !ok {
			return nil, errUnexpectedRecordType
		}
		out = append(out, typed)
	}
	return out, nil
}

var _ batch.Writer = (*BasicClient)(nil)
