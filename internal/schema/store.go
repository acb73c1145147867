package schema

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the read side used by ingestion and analysis. Writes live on the
// concrete GormStore; the pipeline only ever reads.
type Store interface {
	// EventSchema returns the schema for an event name, or ok=false when no
	// document exists for it.
	EventSchema(ctx context.Context, eventName string) (Doc, bool, error)
	// UserPropertySchema returns the single global user-property schema, or
	// ok=false when none has been defined.
	UserPropertySchema(ctx context.Context) (Doc, bool, error)
}

// EventSchemaRecord holds one parameter schema document per event name.
type EventSchemaRecord struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	EventName       string         `gorm:"uniqueIndex;size:128;not null" json:"eventName"`
	ParameterSchema datatypes.JSON `json:"parameterSchema"`
}

func (EventSchemaRecord) TableName() string { return "event_schemas" }

// UserPropertySchemaRecord is a single-row table holding the global
// user-property schema document.
type UserPropertySchemaRecord struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	PropertySchema datatypes.JSON `json:"propertySchema"`
}

func (UserPropertySchemaRecord) TableName() string { return "user_property_schema" }

type GormStore struct{ db *gorm.DB }

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventSchemaRecord{}, &UserPropertySchemaRecord{})
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

func (s *GormStore) EventSchema(ctx context.Context, eventName string) (Doc, bool, error) {
	var rec EventSchemaRecord
	err := s.db.WithContext(ctx).Where("event_name = ?", eventName).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc, err := Parse(rec.ParameterSchema)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *GormStore) UserPropertySchema(ctx context.Context) (Doc, bool, error) {
	var rec UserPropertySchemaRecord
	err := s.db.WithContext(ctx).Order("id").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	doc, err := Parse(rec.PropertySchema)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// FindEventSchema returns the stored record for one event name, raw document
// included, or ok=false when none exists.
func (s *GormStore) FindEventSchema(ctx context.Context, eventName string) (*EventSchemaRecord, bool, error) {
	var rec EventSchemaRecord
	err := s.db.WithContext(ctx).Where("event_name = ?", eventName).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// FindUserPropertySchema returns the stored global record, or ok=false when
// none has been defined.
func (s *GormStore) FindUserPropertySchema(ctx context.Context) (*UserPropertySchemaRecord, bool, error) {
	var rec UserPropertySchemaRecord
	err := s.db.WithContext(ctx).Order("id").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// PutEventSchema creates or replaces the document for an event name. The raw
// JSON is parsed first so malformed documents never reach the table.
func (s *GormStore) PutEventSchema(ctx context.Context, eventName string, raw []byte) error {
	name := strings.TrimSpace(eventName)
	if name == "" {
		return errors.New("event name required")
	}
	if _, err := Parse(raw); err != nil {
		return err
	}
	rec := EventSchemaRecord{EventName: name, ParameterSchema: datatypes.JSON(raw)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"parameter_schema"}),
	}).Create(&rec).Error
}

func (s *GormStore) DeleteEventSchema(ctx context.Context, eventName string) error {
	return s.db.WithContext(ctx).Where("event_name = ?", eventName).Delete(&EventSchemaRecord{}).Error
}

func (s *GormStore) ListEventSchemas(ctx context.Context) ([]EventSchemaRecord, error) {
	var arr []EventSchemaRecord
	if err := s.db.WithContext(ctx).Order("event_name").Find(&arr).Error; err != nil {
		return nil, err
	}
	return arr, nil
}

// PutUserPropertySchema replaces the single global document.
func (s *GormStore) PutUserPropertySchema(ctx context.Context, raw []byte) error {
	if _, err := Parse(raw); err != nil {
		return err
	}
	var rec UserPropertySchemaRecord
	err := s.db.WithContext(ctx).Order("id").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = UserPropertySchemaRecord{PropertySchema: datatypes.JSON(raw)}
		return s.db.WithContext(ctx).Create(&rec).Error
	}
	if err != nil {
		return err
	}
	rec.PropertySchema = datatypes.JSON(raw)
	return s.db.WithContext(ctx).Save(&rec).Error
}
