package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	auditdomain "github.com/smallbiznis/redress/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log        *zap.Logger
	Enforcer   *casbin.SyncedEnforcer
	AccountSvc accountdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log        *zap.Logger
	enforcer   *casbin.SyncedEnforcer
	accountSvc accountdomain.Service
	auditSvc   auditdomain.Service
}

// NewEnforcer persists policies through gorm when db is set and keeps them in memory otherwise.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if db != nil {
		adapter, err := gormadapter.NewAdapterByDB(db)
		if err != nil {
			return nil, err
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
		if err != nil {
			return nil, err
		}
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, err
		}
	}
	enforcer.EnableAutoBuildRoleLinks(true)

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:        p.Log.Named("authorization.service"),
		enforcer:   p.Enforcer,
		accountSvc: p.AccountSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, accountID snowflake.ID, object string, action string) error {
	if accountID == 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	account, err := s.accountSvc.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrInvalidActor
	}

	subject := subjectFor(accountID)
	if err := s.ensureGrouping(subject, roleName(account.Role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.audit(ctx, accountID, "authorization.denied", object, action)
		return ErrForbidden
	}
	if shouldAuditGrant(action) {
		s.audit(ctx, accountID, "authorization.granted", object, action)
	}
	return nil
}

// AuthorizeCase lets owners through on the plain action and everybody else only on its _any variant.
func (s *ServiceImpl) AuthorizeCase(ctx context.Context, accountID, ownerID snowflake.ID, action string) error {
	if accountID == 0 {
		return ErrInvalidActor
	}
	if accountID == ownerID {
		return s.Authorize(ctx, accountID, ObjectCase, action)
	}
	return s.Authorize(ctx, accountID, ObjectCase, anyVariant(action))
}

func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, accountID snowflake.ID, event string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	actorID := accountID.String()
	targetID := object
	err := s.auditSvc.AuditLog(ctx, &accountID, "account", &actorID, event, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
	})
	if err != nil {
		s.log.Warn("authorization audit failed", zap.String("event", event), zap.Error(err))
	}
}

func subjectFor(accountID snowflake.ID) string {
	return fmt.Sprintf("account:%s", accountID.String())
}

func roleName(role accountdomain.Role) string {
	value := strings.ToLower(strings.TrimSpace(string(role)))
	if value == "" {
		value = string(accountdomain.RoleUser)
	}
	return "role:" + value
}

func anyVariant(action string) string {
	switch action {
	case ActionCaseRead:
		return ActionCaseReadAny
	case ActionCaseWrite:
		return ActionCaseWriteAny
	}
	return action
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionCreditAdjust, ActionCaseReadAny, ActionCaseWriteAny:
		return true
	}
	return false
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:user", ObjectCase, ActionCaseRead},
		{"role:user", ObjectCase, ActionCaseWrite},

		{"role:admin", ObjectCase, ActionCaseRead},
		{"role:admin", ObjectCase, ActionCaseWrite},
		{"role:admin", ObjectCase, ActionCaseReadAny},
		{"role:admin", ObjectCase, ActionCaseWriteAny},
		{"role:admin", ObjectCredit, ActionCreditAdjust},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
