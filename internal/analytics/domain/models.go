package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
)

type Service interface {
	GetAnalytics(ctx context.Context, req Request) (Report, error)
}

// Request bounds candidates by invite date. Nil bounds are open.
type Request struct {
	CompanyID     snowflake.ID
	From          *time.Time
	To            *time.Time
	IncludeDetail bool
	TopN          int
}

type Report struct {
	Totals          Totals             `json:"totals"`
	Projects        []ProjectBreakdown `json:"projects,omitempty"`
	Trends          []TrendBucket      `json:"trends"`
	TopProjects     []ProjectRank      `json:"top_projects"`
	SkippedProjects []snowflake.ID     `json:"skipped_projects,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

type Totals struct {
	Projects              int     `json:"projects"`
	Candidates            int     `json:"candidates"`
	Pending               int     `json:"pending"`
	InProgress            int     `json:"in_progress"`
	Completed             int     `json:"completed"`
	Expired               int     `json:"expired"`
	AverageCompletionRate float64 `json:"average_completion_rate"`
}

type ProjectBreakdown struct {
	ProjectID      snowflake.ID         `json:"project_id"`
	Name           string               `json:"name"`
	Status         projectdomain.Status `json:"status"`
	Candidates     int                  `json:"candidates"`
	Pending        int                  `json:"pending"`
	InProgress     int                  `json:"in_progress"`
	Completed      int                  `json:"completed"`
	Expired        int                  `json:"expired"`
	CompletionRate float64              `json:"completion_rate"`
}

// TrendBucket covers one calendar month in UTC, keyed YYYY-MM.
type TrendBucket struct {
	Month                string `json:"month"`
	ProjectsCreated      int    `json:"projects_created"`
	CandidatesInvited    int    `json:"candidates_invited"`
	AssessmentsCompleted int    `json:"assessments_completed"`
}

type ProjectRank struct {
	ProjectID      snowflake.ID `json:"project_id"`
	Name           string       `json:"name"`
	Candidates     int          `json:"candidates"`
	Completed      int          `json:"completed"`
	CompletionRate float64      `json:"completion_rate"`
}

var (
	ErrInvalidRange = errors.New("invalid_range")
	ErrInvalidTopN  = errors.New("invalid_top_n")
)
