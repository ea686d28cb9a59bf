package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/xelth-com/f8tracker/internal/database"
	"github.com/xelth-com/f8tracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// storeMeta is a key/value table for bookkeeping such as the schema version.
type storeMeta struct {
	Key   string `gorm:"column:meta_key;primaryKey;type:varchar(64)"`
	Value string
}

func (storeMeta) TableName() string {
	return "store_meta"
}

var indexColumns = map[string]string{
	IndexUnidad: "unidad_ejecutora",
	IndexEstado: "estado",
}

// GormStore implements Store on the PostgreSQL "orders" table.
type GormStore struct {
	db        *database.DB
	batchSize int
}

// NewGormStore migrates the schema and returns a store over db. Close
// closes db.
func NewGormStore(db *database.DB) (*GormStore, error) {
	s := &GormStore{db: db, batchSize: 500}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GormStore) migrate() error {
	var meta storeMeta
	if s.db.Migrator().HasTable(&meta) {
		err := s.db.Where("meta_key = ?", "schema_version").Limit(1).Find(&meta).Error
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if v, _ := strconv.Atoi(meta.Value); v == SchemaVersion {
			return nil
		}
	}

	if err := s.db.AutoMigrate(&storeMeta{}, &models.Order{}); err != nil {
		return fmt.Errorf("migrate orders table: %w", err)
	}
	meta = storeMeta{Key: "schema_version", Value: strconv.Itoa(SchemaVersion)}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error
}

func (s *GormStore) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := s.db.WithContext(ctx).Order("forma8_salmi").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Where("forma8_salmi = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, ErrNotFound
	}
	return o, err
}

func (s *GormStore) Put(ctx context.Context, o models.Order) error {
	if o.ID() == "" {
		return ErrEmptyID
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&o).Error
}

// ReplaceAll truncates the table and inserts orders inside one transaction.
func (s *GormStore) ReplaceAll(ctx context.Context, orders []models.Order) error {
	byID, err := dedupe(orders)
	if err != nil {
		return err
	}
	rows := make([]models.Order, 0, len(byID))
	for _, o := range byID {
		rows = append(rows, o)
	}
	sortByID(rows)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, s.batchSize).Error
	})
}

func (s *GormStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Order{}).Error
}

func (s *GormStore) FindBy(ctx context.Context, index, value string) ([]models.Order, error) {
	if err := checkIndex(index); err != nil {
		return nil, err
	}
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: indexColumns[index]}, Value: value}).
		Order("forma8_salmi").
		Find(&orders).Error
	return orders, err
}

func (s *GormStore) Close() error {
	return s.db.Close()
}
