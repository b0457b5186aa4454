package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	"github.com/smallbiznis/redress/internal/clock"
	"github.com/smallbiznis/redress/internal/credit/domain"
	obsmetrics "github.com/smallbiznis/redress/internal/observability/metrics"
	"github.com/smallbiznis/redress/pkg/db"
	"github.com/smallbiznis/redress/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errLostRace rolls back a grant whose idempotency key was inserted concurrently.
var errLostRace = errors.New("idempotency_race")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock         `optional:"true"`
	AuditSvc   auditdomain.Service `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("credit.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clk,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Reserve(ctx context.Context, accountID snowflake.ID) (bool, int64, error) {
	var txn *domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.debit(ctx, tx, accountID, nil)
		return err
	})
	if errors.Is(err, domain.ErrInsufficientCredits) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, s.storeErr(err)
	}
	s.obsMetrics.RecordCreditMutation(ctx, string(domain.KindUsage))
	return true, txn.BalanceAfter, nil
}

func (s *Service) ReserveForCase(ctx context.Context, tx *gorm.DB, accountID, caseID snowflake.ID) (*domain.Transaction, error) {
	if caseID == 0 {
		return nil, domain.ErrInvalidIdempotencyKey
	}
	txn, err := s.debit(ctx, tx, accountID, &caseID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	s.obsMetrics.RecordCreditMutation(ctx, string(domain.KindUsage))
	return txn, nil
}

// debit is the shared one-credit usage primitive. It must run inside a transaction.
func (s *Service) debit(ctx context.Context, tx *gorm.DB, accountID snowflake.ID, caseID *snowflake.ID) (*domain.Transaction, error) {
	now := s.clock.Now().UTC()
	applied, err := s.repo.ApplyDelta(ctx, tx, accountID, -1, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.missOrInsufficient(ctx, tx, accountID)
	}

	balance, err := s.repo.Balance(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:           s.genID.Generate(),
		AccountID:    accountID,
		Amount:       -1,
		Kind:         domain.KindUsage,
		BalanceAfter: balance,
		CaseID:       caseID,
		CreatedAt:    now,
	}
	if caseID != nil {
		key := "usage:" + caseID.String()
		txn.IdempotencyKey = &key
	}
	if err := s.repo.Insert(ctx, tx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) Grant(ctx context.Context, req domain.GrantRequest) (int64, error) {
	if err := validateGrant(&req); err != nil {
		return 0, err
	}

	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByIdempotencyKey(ctx, tx, req.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			balance = existing.BalanceAfter
			return nil
		}

		now := s.clock.Now().UTC()
		applied, err := s.repo.ApplyDelta(ctx, tx, req.AccountID, req.Amount, now)
		if err != nil {
			return err
		}
		if !applied {
			return s.missOrInsufficient(ctx, tx, req.AccountID)
		}

		balance, err = s.repo.Balance(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}

		key := req.IdempotencyKey
		txn := &domain.Transaction{
			ID:                s.genID.Generate(),
			AccountID:         req.AccountID,
			Amount:            req.Amount,
			Kind:              req.Kind,
			BalanceAfter:      balance,
			CaseID:            req.CaseID,
			IdempotencyKey:    &key,
			Provider:          optional(req.Provider),
			ExternalReference: optional(req.ExternalReference),
			Note:              req.Note,
			CreatedAt:         now,
		}
		if err := s.repo.Insert(ctx, tx, txn); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return errLostRace
			}
			return err
		}
		s.obsMetrics.RecordCreditMutation(ctx, string(req.Kind))
		return nil
	})
	if errors.Is(err, errLostRace) {
		winner, findErr := s.repo.FindByIdempotencyKey(ctx, s.db, req.IdempotencyKey)
		if findErr != nil || winner == nil {
			return 0, s.storeErr(fmt.Errorf("reload idempotent grant: %v", findErr))
		}
		return winner.BalanceAfter, nil
	}
	if err != nil {
		return 0, s.storeErr(err)
	}

	s.audit(ctx, req, balance)
	return balance, nil
}

func (s *Service) Refund(ctx context.Context, accountID, caseID snowflake.ID, reason string) (int64, error) {
	return s.Grant(ctx, domain.GrantRequest{
		AccountID:      accountID,
		Amount:         1,
		Kind:           domain.KindRefund,
		IdempotencyKey: "refund:" + caseID.String(),
		CaseID:         &caseID,
		Note:           strings.TrimSpace(reason),
	})
}

func (s *Service) Balance(ctx context.Context, accountID snowflake.ID) (int64, error) {
	exists, err := s.repo.AccountExists(ctx, s.db, accountID)
	if err != nil {
		return 0, s.storeErr(err)
	}
	if !exists {
		return 0, domain.ErrAccountNotFound
	}
	balance, err := s.repo.Balance(ctx, s.db, accountID)
	if err != nil {
		return 0, s.storeErr(err)
	}
	return balance, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	filter := domain.ListFilter{AccountID: req.AccountID, Limit: req.Limit() + 1}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidPageToken
	}
	if cursor != nil {
		before, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return domain.ListTransactionsResponse{}, domain.ErrInvalidPageToken
		}
		filter.BeforeID = &before
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListTransactionsResponse{}, s.storeErr(err)
	}
	page, info, err := pagination.Trim(items, req.Limit(), func(t domain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: t.ID.String()}
	})
	if err != nil {
		return domain.ListTransactionsResponse{}, err
	}
	return domain.ListTransactionsResponse{PageInfo: info, Transactions: page}, nil
}

func (s *Service) missOrInsufficient(ctx context.Context, tx *gorm.DB, accountID snowflake.ID) error {
	exists, err := s.repo.AccountExists(ctx, tx, accountID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAccountNotFound
	}
	return domain.ErrInsufficientCredits
}

// storeErr passes ledger sentinels through and wraps everything else as unavailable.
func (s *Service) storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrInsufficientCredits),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	s.log.Error("credit ledger store failure", zap.Error(err))
	return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
}

func (s *Service) audit(ctx context.Context, req domain.GrantRequest, balance int64) {
	if s.auditSvc == nil {
		return
	}
	accountID := req.AccountID
	targetID := req.AccountID.String()
	metadata := map[string]any{
		"amount":        req.Amount,
		"kind":          string(req.Kind),
		"balance_after": balance,
	}
	if req.Provider != "" {
		metadata["provider"] = req.Provider
	}
	if err := s.auditSvc.AuditLog(ctx, &accountID, "", nil, "credit.grant", "account", &targetID, metadata); err != nil {
		s.log.Warn("credit grant audit failed", zap.Error(err))
	}
}

func validateGrant(req *domain.GrantRequest) error {
	if req.AccountID == 0 {
		return domain.ErrAccountNotFound
	}
	if !req.Kind.Valid() || req.Kind == domain.KindUsage {
		return domain.ErrInvalidKind
	}
	if req.Amount == 0 {
		return domain.ErrInvalidAmount
	}
	if req.Amount < 0 && req.Kind != domain.KindAdminAdjustment {
		return domain.ErrInvalidAmount
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if req.IdempotencyKey == "" || len(req.IdempotencyKey) > 255 {
		return domain.ErrInvalidIdempotencyKey
	}
	req.Provider = strings.TrimSpace(req.Provider)
	req.ExternalReference = strings.TrimSpace(req.ExternalReference)
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
