// Package webui serves the sync progress dashboard, its JSON API and the
// websocket progress stream.
// This file contains WebSocket message types and constants.
package webui

import (
	"time"

	"syncmonitor/progress"
	"syncmonitor/wallet"
)

// Message type constants for WebSocket communication.
const (
	// MessageTypeInitial carries the state snapshot sent once on connection.
	MessageTypeInitial = "initial"

	// MessageTypeProgress carries a sync progress report.
	MessageTypeProgress = "progress"

	// MessageTypeSyncError carries a failure published by the monitor.
	MessageTypeSyncError = "sync_error"

	// MessageTypeBalances carries freshly loaded wallet balances.
	MessageTypeBalances = "balances"

	// MessageTypeError indicates a server-side error.
	MessageTypeError = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	// Type identifies the message kind (use MessageType* constants)
	Type string `json:"type"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`

	// Data contains the type-specific payload
	Data interface{} `json:"data,omitempty"`
}

// NewWSMessage creates a message stamped with the current time.
func NewWSMessage(msgType string, data interface{}) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// ProgressData is a sync progress report as sent to clients.
type ProgressData struct {
	Current   uint64  `json:"current"`
	Highest   uint64  `json:"highest"`
	Remaining uint64  `json:"remaining"`
	Percent   float64 `json:"percent"`
	Synced    bool    `json:"synced"`

	// Raw holds every field the node reported
	Raw map[string]interface{} `json:"raw,omitempty"`
}

// SyncErrorData is a monitor failure as sent to clients.
type SyncErrorData struct {
	Kind progress.ErrorKind `json:"kind"`
}

// ErrorData contains error information sent to clients.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InitialData is the snapshot sent to a client when it connects.
type InitialData struct {
	// State is the monitor phase, e.g. "polling"
	State string `json:"state"`

	// Interval is the current poll cadence
	Interval string `json:"interval"`

	// Progress is the latest report, nil if the latest event was an error
	// or nothing has been published yet
	Progress *ProgressData `json:"progress,omitempty"`

	// Error is set when the latest event was an error
	Error *SyncErrorData `json:"error,omitempty"`

	// Balances is the last successful balance load, if any
	Balances *wallet.Snapshot `json:"balances,omitempty"`
}

// progressData converts a snapshot for the wire.
func progressData(s progress.Snapshot) ProgressData {
	return ProgressData{
		Current:   s.Current,
		Highest:   s.Highest,
		Remaining: s.Remaining(),
		Percent:   s.Percent(),
		Synced:    s.Highest > 0 && s.Synced(),
		Raw:       s.Raw,
	}
}

// NewEventMessage converts a progress event into a progress or sync_error
// message.
func NewEventMessage(ev progress.Event) WSMessage {
	if ev.IsError() {
		msg := NewWSMessage(MessageTypeSyncError, SyncErrorData{Kind: ev.Err})
		msg.Timestamp = ev.At
		return msg
	}
	var data ProgressData
	if ev.Snapshot != nil {
		data = progressData(*ev.Snapshot)
	}
	msg := NewWSMessage(MessageTypeProgress, data)
	msg.Timestamp = ev.At
	return msg
}

// NewBalancesMessage creates a balances message.
func NewBalancesMessage(snap wallet.Snapshot) WSMessage {
	return NewWSMessage(MessageTypeBalances, snap)
}

// NewErrorMessage creates an error message.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}

// NewInitialMessage creates the initial state snapshot message.
func NewInitialMessage(data InitialData) WSMessage {
	return NewWSMessage(MessageTypeInitial, data)
}
