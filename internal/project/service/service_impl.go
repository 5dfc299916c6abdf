package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	"github.com/smallbiznis/assessly/internal/project/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	CompanyRepo companydomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	companyRepo companydomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("project.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		companyRepo: p.CompanyRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Project, error) {
	project, err := domain.NewProject(s.genID.Generate(), req.CompanyID, req.Name, req.Description, s.clock.Now())
	if err != nil {
		return domain.Project{}, err
	}

	company, err := s.companyRepo.FindByID(ctx, s.db, req.CompanyID)
	if err != nil {
		return domain.Project{}, err
	}
	if company == nil {
		return domain.Project{}, companydomain.ErrCompanyNotFound
	}

	rows, err := s.repo.InsertWithinLimit(ctx, s.db, project, company.MaxProjects)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if rows == 0 {
		return domain.Project{}, domain.ErrProjectLimitReached
	}

	s.log.Info("project created",
		zap.String("company_id", project.CompanyID.String()),
		zap.String("project_id", project.ID.String()),
	)
	return *project, nil
}

func (s *Service) Get(ctx context.Context, companyID, projectID snowflake.ID) (domain.Project, error) {
	project, err := s.repo.FindByID(ctx, s.db, companyID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if project == nil {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return *project, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Project, error) {
	return s.repo.List(ctx, s.db, req.CompanyID, domain.ListFilter{IncludeArchived: req.IncludeArchived})
}

// Archive stops new invites for the project. Existing invites keep their lifecycle.
func (s *Service) Archive(ctx context.Context, companyID, projectID snowflake.ID) (domain.Project, error) {
	rows, err := s.repo.UpdateStatus(ctx, s.db, companyID, projectID, domain.StatusActive, domain.StatusArchived, s.clock.Now())
	if err != nil {
		return domain.Project{}, err
	}
	project, err := s.Get(ctx, companyID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if rows == 0 && project.Status != domain.StatusArchived {
		return domain.Project{}, fmt.Errorf("archive project %s: unexpected status %s", projectID, project.Status)
	}
	return project, nil
}
