package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const metaName = "registry"

// registryMeta stores the schema version of the record table
type registryMeta struct {
	Name      string `gorm:"primaryKey;size:64"`
	Version   int
	UpdatedAt time.Time
}

func (registryMeta) TableName() string {
	return "registry_meta"
}

// GormStore keeps records in a SQL table (SQLite or PostgreSQL)
type GormStore struct {
	db  *gorm.DB
	dsn string
}

// NewGormStore migrates the tables and returns the store
func NewGormStore(db *gorm.DB, location string) (*GormStore, error) {
	if err := db.AutoMigrate(&FileRecord{}, &registryMeta{}); err != nil {
		return nil, fmt.Errorf("migrate registry tables: %w", err)
	}
	return &GormStore{db: db, dsn: location}, nil
}

func (s *GormStore) Location() string {
	return s.dsn
}

func (s *GormStore) Load(ctx context.Context) (*Document, error) {
	db := s.db.WithContext(ctx)

	version := SchemaVersion
	var meta registryMeta
	err := db.First(&meta, "name = ?", metaName).Error
	switch {
	case err == nil:
		version = meta.Version
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, fmt.Errorf("read registry meta: %w", err)
	}

	var records []*FileRecord
	if err := db.Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("read registry records: %w", err)
	}

	doc := &Document{SchemaVersion: version, UpdatedAt: meta.UpdatedAt, Files: make(map[string]*FileRecord, len(records))}
	for _, rec := range records {
		doc.Files[rec.ID] = rec
	}
	if err := upgrade(doc); err != nil {
		return nil, &SchemaError{Location: s.dsn, Err: err}
	}
	return doc, nil
}

// Save replaces the table contents in one transaction
func (s *GormStore) Save(ctx context.Context, doc *Document) error {
	doc.SchemaVersion = SchemaVersion
	doc.UpdatedAt = time.Now().UTC()

	records := make([]*FileRecord, 0, len(doc.Files))
	ids := make([]string, 0, len(doc.Files))
	for id, rec := range doc.Files {
		records = append(records, rec)
		ids = append(ids, id)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(ids) > 0 {
			del = del.Where("id NOT IN ?", ids)
		}
		if err := del.Delete(&FileRecord{}).Error; err != nil {
			return fmt.Errorf("prune records: %w", err)
		}

		if len(records) > 0 {
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(records, 200).Error; err != nil {
				return fmt.Errorf("upsert records: %w", err)
			}
		}

		meta := registryMeta{Name: metaName, Version: doc.SchemaVersion, UpdatedAt: doc.UpdatedAt}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error; err != nil {
			return fmt.Errorf("write registry meta: %w", err)
		}
		return nil
	})
}
