package models

import (
	"errors"

	"gorm.io/gorm"
)

// Store is the repository capability handed to handlers and the usage
// aggregator. All persistence goes through it; nothing else touches gorm.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Accounts

func (s *Store) ListAccounts() ([]Account, error) {
	var accounts []Account
	err := s.DB.Order("email").Find(&accounts).Error
	return accounts, err
}

// GetAccount returns (nil, nil) when no account exists with the given id.
func (s *Store) GetAccount(id uint) (*Account, error) {
	var account Account
	err := s.DB.First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Store) CreateAccount(a *Account) error {
	return s.DB.Create(a).Error
}

func (s *Store) UpdateAccount(a *Account) error {
	return s.DB.Save(a).Error
}

// DeleteAccount removes the account and every key that references it.
// Deletion cascades: the original behavior keeps no orphaned credentials
// around once their account is gone.
func (s *Store) DeleteAccount(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&APIKey{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Account{}, id).Error
	})
}

func (s *Store) AdminKeysForAccount(accountID uint) ([]APIKey, error) {
	var ks []APIKey
	err := s.DB.Where("account_id = ? AND key_type = ?", accountID, "admin").
		Order("name").Find(&ks).Error
	return ks, err
}

// Keys

func (s *Store) ListKeys() ([]APIKey, error) {
	var ks []APIKey
	err := s.DB.Order("account_id, name").Find(&ks).Error
	return ks, err
}

// GetKey returns (nil, nil) when no key exists with the given id.
func (s *Store) GetKey(id uint) (*APIKey, error) {
	var k APIKey
	err := s.DB.First(&k, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *Store) CreateKey(k *APIKey) error {
	return s.DB.Create(k).Error
}

func (s *Store) UpdateKey(k *APIKey) error {
	return s.DB.Save(k).Error
}

// DeleteKey removes a key and detaches any project keys that were linked
// under it, so no key is ever left pointing at a missing admin key.
func (s *Store) DeleteKey(id uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&APIKey{}).Where("admin_key_id = ?", id).
			Update("admin_key_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&APIKey{}, id).Error
	})
}

// NameExists reports whether another key in the same account already uses
// this display name. excludeID skips the key being updated; pass 0 on create.
func (s *Store) NameExists(name string, accountID uint, excludeID uint) (bool, error) {
	var count int64
	q := s.DB.Model(&APIKey{}).Where("name = ? AND account_id = ?", name, accountID)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}
