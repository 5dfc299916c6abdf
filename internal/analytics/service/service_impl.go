package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/analytics/domain"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/config"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const monthKey = "2006-01"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	ProjectRepo projectdomain.Repository
	Stats       statsdomain.Aggregator
	Settings    *config.AssessmentConfigHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	projectRepo projectdomain.Repository
	stats       statsdomain.Aggregator
	settings    *config.AssessmentConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("analytics.service"),
		clock:       p.Clock,
		projectRepo: p.ProjectRepo,
		stats:       p.Stats,
		settings:    p.Settings,
	}
}

type projectLoad struct {
	project    projectdomain.Project
	candidates []statsdomain.Candidate
	err        error
}

func (s *Service) GetAnalytics(ctx context.Context, req domain.Request) (domain.Report, error) {
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return domain.Report{}, domain.ErrInvalidRange
	}
	if req.TopN < 0 {
		return domain.Report{}, domain.ErrInvalidTopN
	}
	settings := s.settings.Get().Analytics
	topN := req.TopN
	if topN == 0 {
		topN = settings.TopProjects
	}

	projects, err := s.projectRepo.List(ctx, s.db, req.CompanyID, projectdomain.ListFilter{IncludeArchived: true})
	if err != nil {
		return domain.Report{}, err
	}
	loads := s.loadCandidates(ctx, req.CompanyID, projects, settings.ProjectConcurrency)

	end := s.clock.Now().UTC()
	if req.To != nil {
		end = req.To.UTC()
	}
	report := domain.Report{
		Totals:      domain.Totals{Projects: len(projects)},
		Trends:      newTrend(end, settings.TrendMonths),
		GeneratedAt: s.clock.Now().UTC(),
	}
	trend := indexTrend(report.Trends)
	ranks := make([]domain.ProjectRank, 0, len(loads))

	for _, load := range loads {
		trend.add(load.project.CreatedAt, func(b *domain.TrendBucket) { b.ProjectsCreated++ })
		if load.err != nil {
			report.SkippedProjects = append(report.SkippedProjects, load.project.ID)
			continue
		}

		breakdown := domain.ProjectBreakdown{
			ProjectID: load.project.ID,
			Name:      load.project.Name,
			Status:    load.project.Status,
		}
		for _, c := range load.candidates {
			trend.add(c.DateInvited, func(b *domain.TrendBucket) { b.CandidatesInvited++ })
			if c.DateCompleted != nil {
				trend.add(*c.DateCompleted, func(b *domain.TrendBucket) { b.AssessmentsCompleted++ })
			}
			if !inRange(c.DateInvited, req.From, req.To) {
				continue
			}
			breakdown.Candidates++
			switch c.Status {
			case invitedomain.StatusPending:
				breakdown.Pending++
			case invitedomain.StatusStarted:
				breakdown.InProgress++
			case invitedomain.StatusCompleted:
				breakdown.Completed++
			case invitedomain.StatusExpired:
				breakdown.Expired++
			}
		}
		breakdown.CompletionRate = rate(breakdown.Completed, breakdown.Candidates)

		report.Totals.Candidates += breakdown.Candidates
		report.Totals.Pending += breakdown.Pending
		report.Totals.InProgress += breakdown.InProgress
		report.Totals.Completed += breakdown.Completed
		report.Totals.Expired += breakdown.Expired
		if req.IncludeDetail {
			report.Projects = append(report.Projects, breakdown)
		}
		if breakdown.Candidates > 0 {
			ranks = append(ranks, domain.ProjectRank{
				ProjectID:      breakdown.ProjectID,
				Name:           breakdown.Name,
				Candidates:     breakdown.Candidates,
				Completed:      breakdown.Completed,
				CompletionRate: breakdown.CompletionRate,
			})
		}
	}
	report.Totals.AverageCompletionRate = rate(report.Totals.Completed, report.Totals.Candidates)
	report.TopProjects = topProjects(ranks, topN)

	if len(report.SkippedProjects) > 0 {
		s.log.Warn("analytics computed with skipped projects",
			zap.String("company_id", req.CompanyID.String()),
			zap.Int("skipped", len(report.SkippedProjects)),
		)
	}
	return report, nil
}

func (s *Service) loadCandidates(ctx context.Context, companyID snowflake.ID, projects []projectdomain.Project, concurrency int) []projectLoad {
	if concurrency <= 0 {
		concurrency = 1
	}
	p := pool.NewWithResults[projectLoad]().WithMaxGoroutines(concurrency)
	for _, project := range projects {
		p.Go(func() projectLoad {
			candidates, err := s.stats.GetProjectCandidates(ctx, companyID, project.ID)
			if err != nil {
				s.log.Warn("skipping project in analytics",
					zap.String("project_id", project.ID.String()),
					zap.Error(err),
				)
			}
			return projectLoad{project: project, candidates: candidates, err: err}
		})
	}
	loads := p.Wait()

	sort.Slice(loads, func(i, j int) bool {
		if !loads[i].project.CreatedAt.Equal(loads[j].project.CreatedAt) {
			return loads[i].project.CreatedAt.Before(loads[j].project.CreatedAt)
		}
		return loads[i].project.ID < loads[j].project.ID
	})
	return loads
}

func inRange(at time.Time, from, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}

// rate is completed over candidates as a percentage rounded to one decimal.
func rate(completed, candidates int) float64 {
	if candidates == 0 {
		return 0
	}
	return math.Round(float64(completed)*1000/float64(candidates)) / 10
}

func topProjects(ranks []domain.ProjectRank, n int) []domain.ProjectRank {
	sort.SliceStable(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if a.CompletionRate != b.CompletionRate {
			return a.CompletionRate > b.CompletionRate
		}
		if a.Candidates != b.Candidates {
			return a.Candidates > b.Candidates
		}
		return a.Name < b.Name
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

func newTrend(end time.Time, months int) []domain.TrendBucket {
	if months <= 0 {
		months = 1
	}
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	buckets := make([]domain.TrendBucket, months)
	for i := 0; i < months; i++ {
		buckets[i].Month = last.AddDate(0, i-months+1, 0).Format(monthKey)
	}
	return buckets
}

type trendIndex map[string]*domain.TrendBucket

func indexTrend(buckets []domain.TrendBucket) trendIndex {
	idx := make(trendIndex, len(buckets))
	for i := range buckets {
		idx[buckets[i].Month] = &buckets[i]
	}
	return idx
}

func (t trendIndex) add(at time.Time, fn func(*domain.TrendBucket)) {
	if bucket, ok := t[at.UTC().Format(monthKey)]; ok {
		fn(bucket)
	}
}
