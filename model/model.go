// SPDX-FileCopyrightText: 2023 Vigil Monitoring, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

// ContentType is the category of monitoring object a table query targets.
type ContentType string

const (
	ContentSensors       ContentType = "sensors"
	ContentDevices       ContentType = "devices"
	ContentGroups        ContentType = "groups"
	ContentProbes        ContentType = "probes"
	ContentNotifications ContentType = "notifications"
	ContentSchedules     ContentType = "schedules"
	ContentChannels      ContentType = "channels"
)

// Status is the monitoring state the server reports for an object.
type Status string

const (
	StatusUnknown      Status = "Unknown"
	StatusUp           Status = "Up"
	StatusWarning      Status = "Warning"
	StatusDown         Status = "Down"
	StatusPaused       Status = "Paused"
	StatusUnusual      Status = "Unusual"
	StatusDownAcked    Status = "DownAcknowledged"
	StatusDownPartial  Status = "DownPartial"
	StatusNoProbe      Status = "NoProbe"
	StatusDisconnected Status = "Disconnected"
)

// Record is a single typed monitoring entity produced by a table query.
// Records are immutable once deserialized from a page; re-fetch to observe
// remote changes.
type Record interface {
	// RecordID returns the object's unique identifier.
	RecordID() int

	// Value resolves one of the closed set of queryable properties against
	// this record. The second return is false when the property does not
	// apply to this record type.
	Value(p Property) (interface{}, bool)
}

// Object carries the attributes common to every monitoring entity. The
// parent identifier is nil for tree roots.
type Object struct {
	ID       int         `json:"objid"`
	Name     string      `json:"name"`
	ParentID *int        `json:"parentid,omitempty"`
	Type     ContentType `json:"type"`
	Tags     string      `json:"tags,omitempty"`
	Active   bool        `json:"active"`
	Priority int         `json:"priority"`
}

func (o *Object) RecordID() int {
	return o.ID
}

// commonValue resolves the properties shared by all object types.
func (o *Object) commonValue(p Property) (interface{}, bool) {
	switch p {
	case PropertyID:
		return o.ID, true
	case PropertyName:
		return o.Name, true
	case PropertyParentID:
		if o.ParentID == nil {
			return nil, false
		}
		return *o.ParentID, true
	case PropertyType:
		return string(o.Type), true
	case PropertyTags:
		return o.Tags, true
	case PropertyActive:
		return o.Active, true
	case PropertyPriority:
		return o.Priority, true
	}
	return nil, false
}

// Sensor monitors a single aspect of a device.
type Sensor struct {
	Object
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LastValue string `json:"lastvalue,omitempty"`
	Device    string `json:"device,omitempty"`
	Group     string `json:"group,omitempty"`
	Probe     string `json:"probe,omitempty"`
	// Interval is the scanning interval in seconds.
	Interval int `json:"interval,omitempty"`
}

func (s *Sensor) Value(p Property) (interface{}, bool) {
	switch p {
	case PropertyStatus:
		return string(s.Status), true
	case PropertyMessage:
		return s.Message, true
	case PropertyLastValue:
		return s.LastValue, true
	case PropertyDevice:
		return s.Device, true
	case PropertyGroup:
		return s.Group, true
	case PropertyProbe:
		return s.Probe, true
	case PropertyInterval:
		return s.Interval, true
	}
	return s.commonValue(p)
}

// Device is a monitored host; sensors hang off of it.
type Device struct {
	Object
	Status   Status `json:"status"`
	Host     string `json:"host,omitempty"`
	Group    string `json:"group,omitempty"`
	Probe    string `json:"probe,omitempty"`
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (d *Device) Value(p Property) (interface{}, bool) {
	switch p {
	case PropertyStatus:
		return string(d.Status), true
	case PropertyHost:
		return d.Host, true
	case PropertyGroup:
		return d.Group, true
	case PropertyProbe:
		return d.Probe, true
	case PropertyLocation:
		return d.Location, true
	case PropertyMessage:
		return d.Message, true
	}
	return d.commonValue(p)
}

// Group is an organizational node in the object tree.
type Group struct {
	Object
	Status  Status `json:"status"`
	Probe   string `json:"probe,omitempty"`
	Message string `json:"message,omitempty"`
}

func (g *Group) Value(p Property) (interface{}, bool) {
	switch p {
	case PropertyStatus:
		return string(g.Status), true
	case PropertyProbe:
		return g.Probe, true
	case PropertyMessage:
		return g.Message, true
	}
	return g.commonValue(p)
}

// Probe is a remote collection endpoint reporting into the core server.
type Probe struct {
	Object
	Status    Status `json:"status"`
	Condition string `json:"condition,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (p *Probe) Value(prop Property) (interface{}, bool) {
	switch prop {
	case PropertyStatus:
		return string(p.Status), true
	case PropertyMessage:
		return p.Message, true
	}
	return p.commonValue(prop)
}

// NotificationAction describes how the server delivers an alert.
type NotificationAction struct {
	Object
	Method    string `json:"method,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

func (n *NotificationAction) Value(p Property) (interface{}, bool) {
	switch p {
	case PropertyMethod:
		return n.Method, true
	case PropertyRecipient:
		return n.Recipient, true
	}
	return n.commonValue(p)
}

// Schedule defines the time windows during which monitoring is paused or
// active for the objects it is assigned to.
type Schedule struct {
	Object
	TimeTable string `json:"timetable,omitempty"`
}

func (s *Schedule) Value(p Property) (interface{}, bool) {
	if p == PropertyTimeTable {
		return s.TimeTable, true
	}
	return s.commonValue(p)
}

// Channel is a single value series belonging to a sensor.
type Channel struct {
	Object
	SensorID  int    `json:"sensorid"`
	LastValue string `json:"lastvalue,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

func (c *Channel) Value(p Property) (interface{}, bool) {
	switch p {
	case PropertySensorID:
		return c.SensorID, true
	case PropertyLastValue:
		return c.LastValue, true
	case PropertyUnit:
		return c.Unit, true
	}
	return c.commonValue(p)
}
