package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// LogStatus is the outcome recorded for a call attempt
type LogStatus string

// Call log status constants
const (
	LogStatusCalling      LogStatus = "calling"
	LogStatusBusy         LogStatus = "busy"
	LogStatusWaiting      LogStatus = "waiting"
	LogStatusNotReceived  LogStatus = "not received"
	LogStatusSwitchOff    LogStatus = "switch off"
	LogStatusNotReachable LogStatus = "not reachable"

	// LogStatusCompleted is never written by the console but the backend
	// may report it, and the dashboard counts it.
	LogStatusCompleted LogStatus = "completed"
)

// LogStatuses lists the statuses a log may be created or updated with
var LogStatuses = []LogStatus{
	LogStatusCalling,
	LogStatusBusy,
	LogStatusWaiting,
	LogStatusNotReceived,
	LogStatusSwitchOff,
	LogStatusNotReachable,
}

// IsValidLogStatus checks if the status can be written
func IsValidLogStatus(status LogStatus) bool {
	switch status {
	case LogStatusCalling, LogStatusBusy, LogStatusWaiting,
		LogStatusNotReceived, LogStatusSwitchOff, LogStatusNotReachable:
		return true
	default:
		return false
	}
}

// CustomerRef is the denormalized customer a log points at
type CustomerRef struct {
	ID       string `json:"_id"`
	FullName string `json:"fullname"`
	Email    string `json:"email,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
}

// UnmarshalJSON accepts either the expanded object or a bare id, which the
// backend returns when it did not populate the reference.
func (r *CustomerRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("invalid customer reference: %w", err)
		}
		*r = CustomerRef{ID: id}
		return nil
	}

	type plain CustomerRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid customer reference: %w", err)
	}
	*r = CustomerRef(p)
	return nil
}

// Log represents a call log entry as returned by the CRM backend
type Log struct {
	ID        string       `json:"_id"`
	Customer  *CustomerRef `json:"customer"`
	Status    LogStatus    `json:"status"`
	StartAt   *time.Time   `json:"startAt,omitempty"`
	EndsAt    *time.Time   `json:"endsAt,omitempty"`
	FollowUp  *time.Time   `json:"followUp,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// CustomerID returns the id of the referenced customer or ""
func (l *Log) CustomerID() string {
	if l.Customer == nil {
		return ""
	}
	return l.Customer.ID
}

// CustomerName returns the referenced customer's name or ""
func (l *Log) CustomerName() string {
	if l.Customer == nil {
		return ""
	}
	return l.Customer.FullName
}

// Input returns the editable fields with the customer collapsed to its id
func (l *Log) Input() LogInput {
	return LogInput{
		Customer: l.CustomerID(),
		Status:   l.Status,
		StartAt:  l.StartAt,
		EndsAt:   l.EndsAt,
		FollowUp: l.FollowUp,
	}
}

// LogInput is the payload sent to the backend on create and update
type LogInput struct {
	Customer string     `json:"customer" validate:"required"`
	Status   LogStatus  `json:"status" validate:"required"`
	StartAt  *time.Time `json:"startAt,omitempty"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
	FollowUp *time.Time `json:"followUp,omitempty"`
}
