package types

import (
	"time"
)

// Message type constants matching the wire protocol used by field devices.
const (
	MessageTypeText         = "TEXT"
	MessageTypeStatusUpdate = "STATUS_UPDATE"
	MessageTypeEmergency    = "EMERGENCY"
	MessageTypeLocation     = "LOCATION"
	MessageTypeSystem       = "SYSTEM"
)

// Message priority constants.
const (
	PriorityLow      = "LOW"
	PriorityNormal   = "NORMAL"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Status tokens a StatusEntry may carry. OFFLINE is normally assigned by
// the relay when a user's last session ends.
const (
	StatusSafe     = "SAFE"
	StatusNeedHelp = "NEED_HELP"
	StatusInjured  = "INJURED"
	StatusCritical = "CRITICAL"
	StatusOffline  = "OFFLINE"
)

// SystemSenderID identifies messages synthesized by the relay itself.
const SystemSenderID = "SYSTEM"

// Message is one unit of communication exchanged between devices.
// Timestamp is always stamped by the relay at receipt and never trusted
// from the sender. ID is assigned by the relay when the sender omits it.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Priority   string    `json:"priority"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
}

// StatusEntry is the latest known presence/condition for one user.
// At most one entry exists per UserID; Timestamp reflects the most recent
// update or the disconnect-induced transition to OFFLINE.
type StatusEntry struct {
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	Status       string    `json:"status"`
	Role         string    `json:"role,omitempty"`
	Message      string    `json:"message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	BatteryLevel int       `json:"batteryLevel"`
	HasInternet  bool      `json:"hasInternet"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
}

// Stats is a point-in-time snapshot of relay activity. The four counters are
// read independently and may reflect slightly different instants under
// concurrent load.
type Stats struct {
	ActiveConnections int       `json:"activeConnections"`
	TotalMessages     int       `json:"totalMessages"`
	ActiveUsers       int       `json:"activeUsers"`
	CriticalUsers     int       `json:"criticalUsers"`
	Timestamp         time.Time `json:"timestamp"`
}
