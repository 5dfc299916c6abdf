// Package lifecycle wires the invite stack against a test store.
package lifecycle

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	eventsdomain "github.com/smallbiznis/assessly/internal/events/domain"
	eventsrepo "github.com/smallbiznis/assessly/internal/events/repository"
	eventsservice "github.com/smallbiznis/assessly/internal/events/service"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	inviterepo "github.com/smallbiznis/assessly/internal/invite/repository"
	inviteservice "github.com/smallbiznis/assessly/internal/invite/service"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	licenserepo "github.com/smallbiznis/assessly/internal/license/repository"
	licenseservice "github.com/smallbiznis/assessly/internal/license/service"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	projectrepo "github.com/smallbiznis/assessly/internal/project/repository"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	statsrepo "github.com/smallbiznis/assessly/internal/stats/repository"
	statsservice "github.com/smallbiznis/assessly/internal/stats/service"
	"github.com/smallbiznis/assessly/internal/testutil"
	"github.com/smallbiznis/assessly/pkg/db"
	"go.uber.org/zap"
)

// Retry keeps backoff short so contended tests finish quickly.
var Retry = db.RetryConfig{
	Attempts: 5,
	Delay:    time.Millisecond,
	MaxDelay: 10 * time.Millisecond,
	Timeout:  5 * time.Second,
}

type Stack struct {
	*testutil.Env

	InviteRepo  invitedomain.Repository
	ProjectRepo projectdomain.Repository
	Licenses    licensedomain.Manager
	Stats       statsdomain.Aggregator
	Events      eventsdomain.Publisher
	Machine     *inviteservice.StateMachine
	Invites     invitedomain.Service
}

func New(t testing.TB) *Stack {
	t.Helper()
	env := testutil.New(t)
	log := zap.NewNop()

	projects := projectrepo.Provide()
	licenses := licenseservice.New(licenseservice.Params{
		DB:    env.DB,
		Log:   log,
		GenID: env.Node,
		Clock: env.Clock,
		Repo:  licenserepo.Provide(),
		Retry: Retry,
	})
	stats := statsservice.New(statsservice.Params{
		DB:          env.DB,
		Log:         log,
		Clock:       env.Clock,
		Repo:        statsrepo.Provide(),
		ProjectRepo: projects,
	})
	events := eventsservice.New(eventsservice.Params{
		DB:    env.DB,
		Clock: env.Clock,
		Repo:  eventsrepo.Provide(),
	})
	invites := inviterepo.Provide()
	machine := inviteservice.NewStateMachine(inviteservice.StateMachineParams{
		Log:    log,
		Repo:   invites,
		Stats:  stats,
		Events: events,
	})

	return &Stack{
		Env:         env,
		InviteRepo:  invites,
		ProjectRepo: projects,
		Licenses:    licenses,
		Stats:       stats,
		Events:      events,
		Machine:     machine,
		Invites: inviteservice.New(inviteservice.Params{
			DB:          env.DB,
			Log:         log,
			GenID:       env.Node,
			Clock:       env.Clock,
			Repo:        invites,
			ProjectRepo: projects,
			Licenses:    licenses,
			Stats:       stats,
			Events:      events,
			Machine:     machine,
			Retry:       Retry,
		}),
	}
}

func (s *Stack) SeedCompany(t testing.TB, seats int) *companydomain.Company {
	t.Helper()
	company, err := companydomain.NewCompany(s.Node.Generate(), "Acme", seats, 0, s.Clock.Now())
	if err != nil {
		t.Fatalf("new company: %v", err)
	}
	if err := s.DB.Create(company).Error; err != nil {
		t.Fatalf("insert company: %v", err)
	}
	return company
}

func (s *Stack) SeedProject(t testing.TB, companyID snowflake.ID, name string) *projectdomain.Project {
	t.Helper()
	project, err := projectdomain.NewProject(s.Node.Generate(), companyID, name, "", s.Clock.Now())
	if err != nil {
		t.Fatalf("new project: %v", err)
	}
	if err := s.DB.Create(project).Error; err != nil {
		t.Fatalf("insert project: %v", err)
	}
	return project
}

func (s *Stack) ProjectStats(t testing.TB, projectID snowflake.ID) projectdomain.Stats {
	t.Helper()
	var project projectdomain.Project
	if err := s.DB.First(&project, "id = ?", projectID).Error; err != nil {
		t.Fatalf("load project: %v", err)
	}
	return project.Stats
}

func (s *Stack) UsedLicenses(t testing.TB, companyID snowflake.ID) int {
	t.Helper()
	var company companydomain.Company
	if err := s.DB.First(&company, "id = ?", companyID).Error; err != nil {
		t.Fatalf("load company: %v", err)
	}
	return company.UsedLicensesCount
}
