package models

import "time"

// VaultSecret stores one tenant secret sealed with the vault master key.
type VaultSecret struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"name"`
	Ciphertext string    `gorm:"type:text;not null" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
