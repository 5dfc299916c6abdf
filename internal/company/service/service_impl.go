package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/company/domain"
	"github.com/smallbiznis/assessly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("company.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Provision creates a company together with its first admin member.
func (s *Service) Provision(ctx context.Context, req domain.ProvisionRequest) (domain.ProvisionResponse, error) {
	now := s.clock.Now()
	company, err := domain.NewCompany(s.genID.Generate(), req.Name, req.LicenseCount, req.MaxProjects, now)
	if err != nil {
		return domain.ProvisionResponse{}, err
	}
	admin, err := domain.NewMember(s.genID.Generate(), company.ID, req.AdminUserID, domain.RoleAdmin, now)
	if err != nil {
		return domain.ProvisionResponse{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindMemberByUserID(ctx, tx, admin.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrMemberExists
		}
		if err := s.repo.Insert(ctx, tx, company); err != nil {
			return err
		}
		return s.repo.InsertMember(ctx, tx, admin)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ProvisionResponse{}, domain.ErrMemberExists
		}
		return domain.ProvisionResponse{}, err
	}

	s.log.Info("company provisioned",
		zap.String("company_id", company.ID.String()),
		zap.Int("license_count", company.LicenseCount),
	)
	return domain.ProvisionResponse{Company: *company, Admin: *admin}, nil
}

func (s *Service) Get(ctx context.Context, companyID snowflake.ID) (domain.Company, error) {
	company, err := s.repo.FindByID(ctx, s.db, companyID)
	if err != nil {
		return domain.Company{}, err
	}
	if company == nil {
		return domain.Company{}, domain.ErrCompanyNotFound
	}
	return *company, nil
}

func (s *Service) AddMember(ctx context.Context, req domain.AddMemberRequest) (domain.Member, error) {
	if _, err := s.Get(ctx, req.CompanyID); err != nil {
		return domain.Member{}, err
	}
	member, err := domain.NewMember(s.genID.Generate(), req.CompanyID, req.UserID, domain.Role(strings.ToLower(string(req.Role))), s.clock.Now())
	if err != nil {
		return domain.Member{}, err
	}
	if err := s.repo.InsertMember(ctx, s.db, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Member{}, domain.ErrMemberExists
		}
		return domain.Member{}, err
	}
	return *member, nil
}

func (s *Service) ListMembers(ctx context.Context, companyID snowflake.ID) ([]domain.Member, error) {
	if _, err := s.Get(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, s.db, companyID)
}

func (s *Service) FindMember(ctx context.Context, userID string) (domain.Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Member{}, domain.ErrInvalidUserID
	}
	member, err := s.repo.FindMemberByUserID(ctx, s.db, userID)
	if err != nil {
		return domain.Member{}, err
	}
	if member == nil {
		return domain.Member{}, domain.ErrMemberNotFound
	}
	return *member, nil
}

// AddLicenses grows the purchased seat pool. Seats are never removed here.
func (s *Service) AddLicenses(ctx context.Context, req domain.AddLicensesRequest) (domain.Company, error) {
	if req.Count <= 0 || req.Count > domain.MaxLicenseGrant {
		return domain.Company{}, domain.ErrInvalidLicenseCount
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		return domain.Company{}, domain.ErrInvalidUserID
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return domain.Company{}, domain.ErrInvalidReason
	}

	rows, err := s.repo.AddLicenses(ctx, s.db, req.CompanyID, req.Count, domain.MaxLicenseCount, s.clock.Now())
	if err != nil {
		return domain.Company{}, fmt.Errorf("add licenses: %w", err)
	}
	company, err := s.Get(ctx, req.CompanyID)
	if err != nil {
		return domain.Company{}, err
	}
	if rows == 0 {
		return domain.Company{}, fmt.Errorf("%w: pool is capped at %d seats", domain.ErrInvalidLicenseCount, domain.MaxLicenseCount)
	}

	s.log.Info("license seats granted",
		zap.String("company_id", company.ID.String()),
		zap.Int("count", req.Count),
		zap.Int("license_count", company.LicenseCount),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	return company, nil
}
