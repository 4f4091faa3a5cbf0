package models

import (
	"time"
)

// Account groups credentials under one identity. Email is the identity key.
type Account struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null" json:"email"`
	Name             string    `json:"name"`
	OrganizationName string    `json:"organization_name"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// APIKey is a stored credential. FullKey is the raw secret and is only ever
// exposed through the explicit reveal endpoint; every listing path returns
// MaskedKey. Provider and KeyType are derived from the secret's prefix at
// write time. AdminKeyID links a project key to the admin key usage is
// attributed through; it is never set on admin keys.
type APIKey struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	FullKey    string    `gorm:"not null" json:"-"`
	MaskedKey  string    `gorm:"not null" json:"masked_key"`
	Provider   string    `gorm:"index" json:"provider"`
	KeyType    string    `gorm:"index" json:"key_type"`
	AccountID  uint      `gorm:"index" json:"account_id"`
	AdminKeyID *uint     `gorm:"index" json:"admin_key_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
