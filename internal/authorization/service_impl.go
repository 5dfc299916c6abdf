package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	"github.com/smallbiznis/assessly/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	platformDomain = "platform"
	roleOperator   = "role:operator"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Enforcer    *casbin.SyncedEnforcer
	CompanyRepo companydomain.Repository
	Config      config.Config `optional:"true"`
}

type ServiceImpl struct {
	db          *gorm.DB
	log         *zap.Logger
	enforcer    *casbin.SyncedEnforcer
	companyRepo companydomain.Repository
	operators   map[string]struct{}
}

// NewEnforcer persists grouping rules through the gorm adapter.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	return newEnforcer(adapter)
}

// NewMemoryEnforcer keeps every rule in process.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	return newEnforcer(nil)
}

func newEnforcer(adapter persist.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	var enforcer *casbin.SyncedEnforcer
	if adapter != nil {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	if adapter != nil {
		enforcer.EnableAutoSave(true)
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
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
	operators := make(map[string]struct{}, len(p.Config.PlatformOperators))
	for _, id := range p.Config.PlatformOperators {
		if id = strings.TrimSpace(id); id != "" {
			operators[id] = struct{}{}
		}
	}
	return &ServiceImpl{
		db:          p.DB,
		log:         p.Log.Named("authorization.service"),
		enforcer:    p.Enforcer,
		companyRepo: p.CompanyRepo,
		operators:   operators,
	}
}

func (s *ServiceImpl) Resolve(ctx context.Context, userID string) (Principal, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Principal{}, ErrInvalidActor
	}
	member, err := s.companyRepo.FindMemberByUserID(ctx, s.db, userID)
	if err != nil {
		return Principal{}, err
	}
	if member == nil {
		return Principal{}, ErrNotMember
	}
	return Principal{UserID: member.UserID, CompanyID: member.CompanyID, Role: member.Role}, nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, principal Principal, object, action string) error {
	if strings.TrimSpace(principal.UserID) == "" || principal.CompanyID == 0 || !principal.Role.Valid() {
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

	subject := "user:" + principal.UserID
	domain := fmt.Sprintf("company:%s", principal.CompanyID)
	if err := s.ensureGrouping(subject, "role:"+string(principal.Role), domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("company_id", principal.CompanyID.String()),
			zap.String("role", string(principal.Role)),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// AuthorizePlatform grants platform actions to configured operators only. A user dropped
// from the operator list loses any role link persisted for them earlier.
func (s *ServiceImpl) AuthorizePlatform(ctx context.Context, userID, action string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrInvalidActor
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := "user:" + userID
	if _, ok := s.operators[userID]; ok {
		if err := s.ensureGrouping(subject, roleOperator, platformDomain); err != nil {
			return err
		}
	} else if _, err := s.enforcer.RemoveFilteredGroupingPolicy(0, subject, "", platformDomain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, platformDomain, ObjectPlatform, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("platform authorization denied",
			zap.String("user_id", userID),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role link per subject and company, following the
// membership table when a role changes.
func (s *ServiceImpl) ensureGrouping(subject, roleName, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	employee := [][]string{
		{ObjectCompany, ActionCompanyView},
		{ObjectProject, ActionProjectView},
		{ObjectInvite, ActionInviteView},
		{ObjectCandidate, ActionCandidateView},
		{ObjectAnalytics, ActionAnalyticsView},
	}
	admin := append([][]string{
		{ObjectCompany, ActionCompanyManage},
		{ObjectProject, ActionProjectCreate},
		{ObjectProject, ActionProjectArchive},
		{ObjectInvite, ActionInviteCreate},
	}, employee...)

	var policies [][]string
	for _, p := range employee {
		policies = append(policies, []string{"role:" + string(companydomain.RoleEmployee), p[0], p[1]})
	}
	for _, p := range admin {
		policies = append(policies, []string{"role:" + string(companydomain.RoleAdmin), p[0], p[1]})
	}
	policies = append(policies,
		[]string{roleOperator, ObjectPlatform, ActionCompanyProvision},
		[]string{roleOperator, ObjectPlatform, ActionLicenseGrant},
	)

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
