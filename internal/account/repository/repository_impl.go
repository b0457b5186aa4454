package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (
			id, email, display_name, role, credits, full_name, address_line1, address_line2,
			city, postcode, country, phone, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.DisplayName,
		account.Role,
		account.Credits,
		account.FullName,
		account.AddressLine1,
		account.AddressLine2,
		account.City,
		account.Postcode,
		account.Country,
		account.Phone,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, role, credits, full_name, address_line1, address_line2,
			city, postcode, country, phone, created_at, updated_at
		 FROM accounts
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) UpdateProfile(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET display_name = ?, full_name = ?, address_line1 = ?, address_line2 = ?,
			city = ?, postcode = ?, country = ?, phone = ?, updated_at = ?
		 WHERE id = ?`,
		account.DisplayName,
		account.FullName,
		account.AddressLine1,
		account.AddressLine2,
		account.City,
		account.Postcode,
		account.Country,
		account.Phone,
		account.UpdatedAt,
		account.ID,
	).Error
}
