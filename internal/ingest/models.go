package ingest

import "gorm.io/datatypes"

// RawEvent is what a game client submits. Parameters and user properties are
// flat maps with scalar values; nested values never pass validation.
type RawEvent struct {
	UserID         string         `json:"userId"`
	DeviceID       string         `json:"deviceId"`
	Timestamp      int64          `json:"timestamp"` // epoch millis
	EventName      string         `json:"eventName"`
	Parameters     map[string]any `json:"parameters"`
	UserProperties map[string]any `json:"userProperties"`
	IsDebug        bool           `json:"isDebug"`
}

// GameEvent is a validated event in the main store. Parameter and property
// blobs are immutable once written.
type GameEvent struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         string         `gorm:"index;size:64" json:"userId"`
	DeviceID       string         `gorm:"index;size:64" json:"deviceId"`
	Timestamp      int64          `gorm:"index" json:"timestamp"`
	EventName      string         `gorm:"index;size:128" json:"eventName"`
	Parameters     datatypes.JSON `json:"parameters"`
	UserProperties datatypes.JSON `json:"userProperties"`
}

func (GameEvent) TableName() string { return "game_events" }

// ErroredGameEvent keeps a rejected event for diagnostics. Never replayed.
type ErroredGameEvent struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            string         `gorm:"size:64" json:"userId"`
	DeviceID          string         `gorm:"size:64" json:"deviceId"`
	Timestamp         int64          `json:"timestamp"`
	EventName         string         `gorm:"index;size:128" json:"eventName"`
	RawParameters     datatypes.JSON `json:"rawParameters"`
	RawUserProperties datatypes.JSON `json:"rawUserProperties"`
	ErrorReason       string         `gorm:"type:text" json:"errorReason"`
	ReceivedTimestamp int64          `gorm:"index" json:"receivedTimestamp"`
}

func (ErroredGameEvent) TableName() string { return "errored_game_events" }

// DebugGameEvent records an event flagged for inspection, valid or not.
type DebugGameEvent struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UserID            string         `gorm:"size:64" json:"userId"`
	DeviceID          string         `gorm:"index;size:64" json:"deviceId"`
	Timestamp         int64          `json:"timestamp"`
	EventName         string         `gorm:"index;size:128" json:"eventName"`
	RawParameters     datatypes.JSON `json:"rawParameters"`
	RawUserProperties datatypes.JSON `json:"rawUserProperties"`
	IsValid           bool           `json:"isValid"`
	ValidationError   string         `gorm:"type:text" json:"validationError"`
	ReceivedTimestamp int64          `gorm:"index" json:"receivedTimestamp"`
}

func (DebugGameEvent) TableName() string { return "debug_game_events" }

// PlayerData is the latest known state per user: last device, last validated
// user properties, updated opportunistically on successful non-debug ingest.
type PlayerData struct {
	UserID               string         `gorm:"primaryKey;size:64" json:"userId"`
	DeviceID             string         `gorm:"index;size:64" json:"deviceId"`
	UserProperties       datatypes.JSON `json:"userProperties"`
	LastUpdatedTimestamp int64          `json:"lastUpdatedTimestamp"`
}

func (PlayerData) TableName() string { return "player_data" }

// EventReportStat is one row of the per-event-name reporting statistics.
type EventReportStat struct {
	EventName string `json:"eventName"`
	Count     int64  `json:"count"`
}
