package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/redress/internal/account/domain"
	"github.com/smallbiznis/redress/internal/clock"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxProfileField = 200

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return nil, domain.ErrInvalidRole
	}
	if req.Credits < 0 {
		return nil, domain.ErrInvalidCredits
	}

	now := s.clock.Now().UTC()
	account := &domain.Account{
		ID:          s.genID.Generate(),
		Email:       email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        role,
		Credits:     req.Credits,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, account); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id snowflake.ID, req domain.UpdateProfileRequest) (*domain.Account, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		value  *string
		target *string
	}{
		{req.DisplayName, &account.DisplayName},
		{req.FullName, &account.FullName},
		{req.AddressLine1, &account.AddressLine1},
		{req.AddressLine2, &account.AddressLine2},
		{req.City, &account.City},
		{req.Postcode, &account.Postcode},
		{req.Country, &account.Country},
		{req.Phone, &account.Phone},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(*f.value)
		if len([]rune(trimmed)) > maxProfileField {
			return nil, domain.ErrFieldTooLong
		}
		*f.target = trimmed
	}
	account.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.UpdateProfile(ctx, s.db, account); err != nil {
		return nil, err
	}
	s.log.Debug("profile updated", zap.String("account_id", account.ID.String()))
	return account, nil
}

func (s *Service) Profile(ctx context.Context, id snowflake.ID) (*letterdomain.SenderProfile, error) {
	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.HasSenderIdentity() {
		return nil, nil
	}
	return &letterdomain.SenderProfile{
		Name:         strings.TrimSpace(account.FullName),
		AddressLines: account.AddressLines(),
		Email:        account.Email,
		Phone:        strings.TrimSpace(account.Phone),
	}, nil
}
