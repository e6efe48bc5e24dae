package repository

import (
	"context"

	"github.com/mybizz/mybizz/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type vaultRepository struct {
	db *gorm.DB
}

func NewVaultRepository(db *gorm.DB) VaultRepository {
	return &vaultRepository{db: db}
}

func (r *vaultRepository) Get(ctx context.Context, name string) (*models.VaultSecret, error) {
	var s models.VaultSecret
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *vaultRepository) Upsert(ctx context.Context, secret *models.VaultSecret) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"ciphertext", "updated_at"}),
	}).Create(secret).Error
}

func (r *vaultRepository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.VaultSecret{}).Error
}

func (r *vaultRepository) List(ctx context.Context) ([]models.VaultSecret, error) {
	var secrets []models.VaultSecret
	err := r.db.WithContext(ctx).Order("name ASC").Find(&secrets).Error
	return secrets, err
}
