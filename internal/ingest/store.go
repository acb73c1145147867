package ingest

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

// EventStore persists events to one of the three destinations and serves the
// diagnostic read paths (recent listings, reporting statistics, sequences).
type EventStore struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&GameEvent{}, &ErroredGameEvent{}, &DebugGameEvent{}, &PlayerData{})
}

func NewEventStore(db *gorm.DB) *EventStore { return &EventStore{db: db} }

func (s *EventStore) SaveValid(ctx context.Context, ev *GameEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

func (s *EventStore) SaveErrored(ctx context.Context, ev *ErroredGameEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

func (s *EventStore) SaveDebug(ctx context.Context, ev *DebugGameEvent) error {
	return s.db.WithContext(ctx).Create(ev).Error
}

// RecentValid returns a page of stored events, newest first. Pages are
// zero-based, matching the HTTP surface.
func (s *EventStore) RecentValid(ctx context.Context, page, size int) ([]GameEvent, error) {
	var arr []GameEvent
	err := s.db.WithContext(ctx).Order("timestamp DESC").
		Offset(page * size).Limit(size).Find(&arr).Error
	return arr, err
}

func (s *EventStore) RecentErrored(ctx context.Context, page, size int) ([]ErroredGameEvent, error) {
	var arr []ErroredGameEvent
	err := s.db.WithContext(ctx).Order("received_timestamp DESC").
		Offset(page * size).Limit(size).Find(&arr).Error
	return arr, err
}

// RecentDebug lists debug events, optionally filtered by device.
func (s *EventStore) RecentDebug(ctx context.Context, page, size int, deviceID string) ([]DebugGameEvent, error) {
	q := s.db.WithContext(ctx).Order("received_timestamp DESC")
	if strings.TrimSpace(deviceID) != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var arr []DebugGameEvent
	err := q.Offset(page * size).Limit(size).Find(&arr).Error
	return arr, err
}

// ReportStatistics counts stored events per event name inside [start, end].
func (s *EventStore) ReportStatistics(ctx context.Context, start, end int64) ([]EventReportStat, error) {
	var out []EventReportStat
	err := s.db.WithContext(ctx).Model(&GameEvent{}).
		Select("event_name AS event_name, COUNT(*) AS count").
		Where("timestamp BETWEEN ? AND ?", start, end).
		Group("event_name").Order("count DESC").
		Scan(&out).Error
	return out, err
}

// UserStatistics is ReportStatistics narrowed to one user.
func (s *EventStore) UserStatistics(ctx context.Context, userID string, start, end int64) ([]EventReportStat, error) {
	var out []EventReportStat
	err := s.db.WithContext(ctx).Model(&GameEvent{}).
		Select("event_name AS event_name, COUNT(*) AS count").
		Where("user_id = ? AND timestamp BETWEEN ? AND ?", userID, start, end).
		Group("event_name").Order("count DESC").
		Scan(&out).Error
	return out, err
}

// UserSequence pages one user's events, newest first.
func (s *EventStore) UserSequence(ctx context.Context, userID string, page, size int) ([]GameEvent, error) {
	var arr []GameEvent
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("timestamp DESC").Offset(page * size).Limit(size).Find(&arr).Error
	return arr, err
}
