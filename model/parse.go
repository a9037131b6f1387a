// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	errJSONUnmarshal     = errors.New("failed unmarshaling JSON table payload")
	errUnknownContent    = errors.New("unrecognized content type in table payload")
	errMissingTotalCount = errors.New("table payload is missing the totalcount field")
)

// Page is one bounded window of records plus the total size of the remote
// collection as reported by the server at fetch time. Pages are consumed
// immediately by the streaming layer and then discarded.
type Page struct {
	Records []Record
	Total   int
}

type tableEnvelope struct {
	Total *int              `json:"totalcount"`
	Items []json.RawMessage `json:"items"`
}

// ParseTable decodes a raw table response for the given content type into
// typed records, preserving the server-returned order.
func ParseTable(ct ContentType, data []byte) (Page, error) {
	var envelope tableEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Page{}, fmt.Errorf("%w: %s", errJSONUnmarshal, err.Error())
	}
	if envelope.Total == nil {
		return Page{}, errMissingTotalCount
	}

	page := Page{
		Records: make([]Record, 0, len(envelope.Items)),
		Total:   *envelope.Total,
	}
	for _, raw := range envelope.Items {
		record, err := parseRecord(ct, raw)
		if err != nil {
			return Page{}, err
		}
		page.Records = append(page.Records, record)
	}
	return page, nil
}

func parseRecord(ct ContentType, raw json.RawMessage) (Record, error) {
	var (
		record Record
		err    error
	)
	switch ct {
	case ContentSensors:
		record, err = decodeInto(raw, &Sensor{})
	case ContentDevices:
		record, err = decodeInto(raw, &Device{})
	case ContentGroups:
		record, err = decodeInto(raw, &Group{})
	case ContentProbes:
		record, err = decodeInto(raw, &Probe{})
	case ContentNotifications:
		record, err = decodeInto(raw, &NotificationAction{})
	case ContentSchedules:
		record, err = decodeInto(raw, &Schedule{})
	case ContentChannels:
		record, err = decodeInto(raw, &Channel{})
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownContent, ct)
	}
	return record, err
}

func decodeInto(raw json.RawMessage, r Record) (Record, error) {
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("%w: %s", errJSONUnmarshal, err.Error())
	}
	return r, nil
}
