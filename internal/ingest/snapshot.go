package ingest

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotStore holds the latest known state per user. Upserts are
// last-write-wins: concurrent events for one user race and the write that
// commits last sticks. Callers needing per-user ordering must serialize
// outside this store.
type SnapshotStore struct{ db *gorm.DB }

func NewSnapshotStore(db *gorm.DB) *SnapshotStore { return &SnapshotStore{db: db} }

func (s *SnapshotStore) Upsert(ctx context.Context, userID, deviceID string, props datatypes.JSON, ts int64) error {
	rec := PlayerData{
		UserID:               userID,
		DeviceID:             deviceID,
		UserProperties:       props,
		LastUpdatedTimestamp: ts,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"device_id", "user_properties", "last_updated_timestamp"}),
	}).Create(&rec).Error
}

func (s *SnapshotStore) ByUserID(ctx context.Context, userID string) ([]PlayerData, error) {
	var arr []PlayerData
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&arr).Error
	return arr, err
}

func (s *SnapshotStore) ByDeviceID(ctx context.Context, deviceID string) ([]PlayerData, error) {
	var arr []PlayerData
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Find(&arr).Error
	return arr, err
}

// ByProperty matches a key/value pair inside the stored properties blob.
func (s *SnapshotStore) ByProperty(ctx context.Context, key, value string) ([]PlayerData, error) {
	var arr []PlayerData
	err := s.db.WithContext(ctx).
		Where(datatypes.JSONQuery("user_properties").Equals(value, key)).
		Find(&arr).Error
	return arr, err
}
