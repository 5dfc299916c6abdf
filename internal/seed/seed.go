package seed

import (
	"context"
	"errors"
	"strings"

	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	"github.com/smallbiznis/assessly/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, companies companydomain.Service, log *zap.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				_, err := EnsureBootstrap(ctx, companies, cfg.Bootstrap, log)
				return err
			},
		})
	}),
)

// EnsureBootstrap provisions the configured first company and its admin. It is a
// no-op when bootstrap is not configured or the admin already belongs to a company.
// The returned bool reports whether a company was created.
func EnsureBootstrap(ctx context.Context, companies companydomain.Service, cfg config.BootstrapConfig, log *zap.Logger) (bool, error) {
	name := strings.TrimSpace(cfg.CompanyName)
	adminID := strings.TrimSpace(cfg.AdminUserID)
	if name == "" || adminID == "" {
		return false, nil
	}

	member, err := companies.FindMember(ctx, adminID)
	switch {
	case err == nil:
		log.Debug("bootstrap company already present", zap.String("company_id", member.CompanyID.String()))
		return false, nil
	case !errors.Is(err, companydomain.ErrMemberNotFound):
		return false, err
	}

	resp, err := companies.Provision(ctx, companydomain.ProvisionRequest{
		Name:         name,
		LicenseCount: cfg.LicenseCount,
		MaxProjects:  cfg.MaxProjects,
		AdminUserID:  adminID,
	})
	if errors.Is(err, companydomain.ErrMemberExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log.Info("bootstrap company provisioned",
		zap.String("company_id", resp.Company.ID.String()),
		zap.String("admin_user_id", adminID),
	)
	return true, nil
}
