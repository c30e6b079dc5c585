package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LocalFM/config"
	"LocalFM/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"
)

// MetadataDocument 是 MySQL 中保存元数据文档的行
type MetadataDocument struct {
	Name      string    `gorm:"primaryKey;size:128"`
	Body      []byte    `gorm:"type:longblob;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (MetadataDocument) TableName() string { return "metadata_documents" }

// ConnectGormDB 建立 GORM 数据库连接
func ConnectGormDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	// 获取底层的 sql.DB 并配置连接池
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("GORM 数据库连接成功",
		logger.String("host", cfg.DBHost), logger.String("db", cfg.DBName))
	return gdb, nil
}

// GormDocumentStore keeps the document in a single row keyed by name.
type GormDocumentStore struct {
	db   *gorm.DB
	name string
}

// NewGormDocumentStore migrates the table and returns the store.
func NewGormDocumentStore(gdb *gorm.DB, name string) (*GormDocumentStore, error) {
	if err := gdb.AutoMigrate(&MetadataDocument{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate metadata table: %w", err)
	}
	return &GormDocumentStore{db: gdb, name: name}, nil
}

func (g *GormDocumentStore) Read(ctx context.Context) ([]byte, error) {
	var row MetadataDocument
	err := g.db.WithContext(ctx).Where("name = ?", g.name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata row %s: %w", g.name, err)
	}
	return row.Body, nil
}

// Write upserts the row in one statement.
func (g *GormDocumentStore) Write(ctx context.Context, data []byte) error {
	row := MetadataDocument{Name: g.name, Body: data}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save metadata row %s: %w", g.name, err)
	}
	return nil
}

// CloseGormDB 关闭 GORM 数据库连接
func (g *GormDocumentStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
