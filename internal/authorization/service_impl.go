package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
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
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
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

	subject, roleName, err := s.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("role", roleName),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) ResolveAdmin(ctx context.Context, id snowflake.ID) (AdminUser, error) {
	if id == 0 {
		return AdminUser{}, ErrInvalidActor
	}
	var user AdminUser
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AdminUser{}, ErrInvalidActor
	}
	if err != nil {
		return AdminUser{}, err
	}
	return user, nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, error) {
	if actor == RoleSystem {
		return actor, "role:" + RoleSystem, nil
	}
	if !strings.HasPrefix(actor, "admin:") {
		return "", "", ErrInvalidActor
	}
	adminID, err := snowflake.ParseString(strings.TrimPrefix(actor, "admin:"))
	if err != nil || adminID == 0 {
		return "", "", ErrInvalidActor
	}
	user, err := s.ResolveAdmin(ctx, adminID)
	if err != nil {
		return "", "", err
	}
	role := strings.ToLower(strings.TrimSpace(user.Role))
	if role == "" {
		return "", "", ErrForbidden
	}
	return fmt.Sprintf("admin:%s", adminID), "role:" + role, nil
}

// ensureGrouping keeps exactly one role link per subject so role changes in
// admin_users take effect on the next request.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) >= 2 && rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil || has {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:admin", "*", "*"},

		{"role:finance", ObjectMerchant, ActionView},
		{"role:finance", ObjectPricingPackage, "*"},
		{"role:finance", ObjectMerchantFeeConfig, "*"},
		{"role:finance", ObjectOrder, ActionView},
		{"role:finance", ObjectOrderInvoice, "*"},
		{"role:finance", ObjectPlatformInvoice, "*"},
		{"role:finance", ObjectBillingProfile, "*"},
		{"role:finance", ObjectBillingStatement, ActionView},
		{"role:finance", ObjectAuditLog, ActionView},
		{"role:finance", ObjectPayout, "*"},

		{"role:support", ObjectMerchant, ActionView},
		{"role:support", ObjectOrder, ActionView},
		{"role:support", ObjectProduct, "*"},
		{"role:support", ObjectSupportTicket, "*"},
		{"role:support", ObjectAuditLog, ActionView},

		{"role:system", ObjectPlatformInvoice, ActionManage},
		{"role:system", ObjectBillingStatement, ActionView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy[0], policy[1], policy[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}
	return nil
}
