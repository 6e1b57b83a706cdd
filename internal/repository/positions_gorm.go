package repository

import (
	"context"
	"errors"
	"time"

	"github.com/logvault/logvault/internal/pkg/apperrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FilePosition is the persisted per-file watermark row.
type FilePosition struct {
	FileID     string    `gorm:"primaryKey;column:file_id"`
	LastLineNo int64     `gorm:"column:last_line_no;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (FilePosition) TableName() string { return "file_positions" }

// GormPositionRepo persists watermarks in Postgres. It is a cache in
// front of the logs table, not a source of truth; the tracker corrects
// it from storage on reconcile.
type GormPositionRepo struct {
	db *gorm.DB
}

func NewGormPositionRepo(db *gorm.DB) (*GormPositionRepo, error) {
	if err := db.AutoMigrate(&FilePosition{}); err != nil {
		return nil, apperrors.NewStorageIO("migrate file_positions", err)
	}
	return &GormPositionRepo{db: db}, nil
}

// Load returns the saved watermark, or 0 when the file has never been
// ingested.
func (r *GormPositionRepo) Load(ctx context.Context, fileID string) (int64, error) {
	var pos FilePosition
	err := r.db.WithContext(ctx).First(&pos, "file_id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.NewStorageIO("load position", err).At(fileID, 0)
	}
	return pos.LastLineNo, nil
}

func (r *GormPositionRepo) Save(ctx context.Context, fileID string, lineNo int64) error {
	pos := FilePosition{FileID: fileID, LastLineNo: lineNo, UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_line_no", "updated_at"}),
	}).Create(&pos).Error
	if err != nil {
		return apperrors.NewStorageIO("save position", err).At(fileID, lineNo)
	}
	return nil
}
