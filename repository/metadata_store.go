// Package repository loads and saves the metadata document and checks it
// against the blob store.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LocalFM/core/apperr"
	"LocalFM/db"
	"LocalFM/logger"
	"LocalFM/model"
)

// AdminUsername is the bootstrap super admin seeded into fresh documents.
const AdminUsername = "admin"

// LoadReport tells the caller what Load had to do to produce a usable document.
type LoadReport struct {
	Healed   bool   // the stored document was missing or unreadable and has been reset
	Reason   string // why it was healed
	Migrated bool   // an older document was upgraded and saved back
}

// MetadataStore reads and writes the whole document through a backend.
type MetadataStore struct {
	backend       db.DocumentStore
	hasher        PasswordHasher
	adminPassword string
	now           func() time.Time
}

func NewMetadataStore(backend db.DocumentStore, hasher PasswordHasher, adminPassword string) *MetadataStore {
	return &MetadataStore{
		backend:       backend,
		hasher:        hasher,
		adminPassword: adminPassword,
		now:           time.Now,
	}
}

// Load returns the stored document. A missing or malformed document is
// replaced by a fresh default which is saved before Load returns. A backend
// that cannot be read is a STORAGE failure and nothing is written, so an
// intact document survives an outage.
func (s *MetadataStore) Load(ctx context.Context) (*model.Document, LoadReport, error) {
	data, err := s.backend.Read(ctx)
	switch {
	case errors.Is(err, db.ErrNoDocument):
		return s.heal(ctx, "no stored document")
	case err != nil:
		if ctx.Err() != nil {
			return nil, LoadReport{}, ctx.Err()
		}
		logger.Error("读取元数据文档失败", logger.ErrorField(err))
		return nil, LoadReport{}, apperr.Wrap(apperr.CodeStorage, err, "cannot read metadata document")
	}

	doc, version, err := decode(data)
	if err != nil {
		logger.Warn("元数据文档损坏, 重置为默认文档", logger.ErrorField(err))
		return s.heal(ctx, err.Error())
	}
	for _, ref := range assetRefs(doc) {
		if ref.Asset.Opaque() {
			logger.Warn("无法识别的资源 ID, 按原样保留",
				logger.String("entity", string(ref.Entity)), logger.Int64("id", ref.ID),
				logger.String("field", ref.Field), logger.String("assetId", ref.Asset.String()))
		}
	}
	if version > model.SchemaVersion {
		logger.Warn("元数据文档版本高于当前程序",
			logger.Int("version", version), logger.Int("supported", model.SchemaVersion))
	}

	migrated, err := Migrate(doc, version, s.hasher)
	if err != nil {
		return nil, LoadReport{}, err
	}
	report := LoadReport{Migrated: migrated}
	if migrated {
		if err := s.Save(ctx, doc); err != nil {
			return nil, report, err
		}
		logger.Info("元数据文档已迁移",
			logger.Int("from", version), logger.Int("to", doc.SchemaVersion))
	}
	return doc, report, nil
}

func (s *MetadataStore) heal(ctx context.Context, reason string) (*model.Document, LoadReport, error) {
	doc, err := s.Bootstrap()
	if err != nil {
		return nil, LoadReport{}, err
	}
	if err := s.Save(ctx, doc); err != nil {
		return nil, LoadReport{}, fmt.Errorf("failed to persist default document: %w", err)
	}
	return doc, LoadReport{Healed: true, Reason: reason}, nil
}

// Bootstrap builds the default document: empty collections plus the super admin.
func (s *MetadataStore) Bootstrap() (*model.Document, error) {
	doc := model.NewDocument()
	hash, err := s.hasher.Hash(s.adminPassword)
	if err != nil {
		return nil, err
	}
	doc.Users = append(doc.Users, &model.User{
		ID:           doc.AllocateID(model.KindUser),
		Username:     AdminUsername,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		Verified:     true,
		SuperAdmin:   true,
		CreatedAt:    s.now().UTC(),
	})
	return doc, nil
}

// Save writes the whole document in one backend call.
func (s *MetadataStore) Save(ctx context.Context, doc *model.Document) error {
	doc.Normalize()
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = model.SchemaVersion
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.backend.Write(ctx, data); err != nil {
		logger.Error("保存元数据文档失败", logger.ErrorField(err))
		return err
	}
	logger.Debug("元数据文档已保存", logger.Int("bytes", len(data)))
	return nil
}
