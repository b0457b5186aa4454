package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateAccountRequest) (*Account, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Account, error)
	UpdateProfile(ctx context.Context, id snowflake.ID, req UpdateProfileRequest) (*Account, error)
	// Profile returns nil when the account cannot yet sign a letter.
	Profile(ctx context.Context, id snowflake.ID) (*letterdomain.SenderProfile, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, account *Account) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Account, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, account *Account) error
}

var (
	ErrNotFound       = errors.New("account_not_found")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidRole    = errors.New("invalid_role")
	ErrInvalidCredits = errors.New("invalid_credits")
	ErrEmailTaken     = errors.New("email_taken")
	ErrFieldTooLong   = errors.New("invalid_profile_field")
)
