package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/logistics-platform/booking-dashboard/internal/application"
	"github.com/logistics-platform/booking-dashboard/internal/config"
	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/pkg/tracing"
)

const snapshotSession = "cli"

var snapshotScreens = []string{
	application.ScreenAdmin,
	application.ScreenCustomer,
	application.ScreenDispatcher,
	application.ScreenReports,
	application.ScreenUsers,
}

type snapshotOptions struct {
	reportType string
	status     string
	search     string
	role       string
}

func newSnapshotCommand(v *viper.Viper, load func() (*config.Config, error)) *cobra.Command {
	var opts snapshotOptions

	cmd := &cobra.Command{
		Use:       "snapshot <" + strings.Join(snapshotScreens, "|") + ">",
		Short:     "Refresh one screen and print its snapshot as JSON",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: snapshotScreens,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			comps, err := buildComponents(cfg, newLogger(cfg, cmd.ErrOrStderr()), nil)
			if err != nil {
				return err
			}
			defer comps.sessions.CloseAll()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cred := credentials.New(cfg.APIToken)
			session, err := comps.sessions.Open(snapshotSession, cred)
			if err != nil {
				return err
			}
			snap, err := tracing.TracedOperation(ctx, otel.Tracer(config.ServiceName), "cli.snapshot",
				func(ctx context.Context) (any, error) {
					return takeSnapshot(ctx, session, cred, args[0], opts)
				},
				attribute.String("dashboard.screen", args[0]),
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().String("token", "", "bearer token for the booking API (overrides api_token)")
	_ = v.BindPFlag("api_token", cmd.Flags().Lookup("token"))
	cmd.Flags().StringVar(&opts.reportType, "report-type", string(domain.ReportTypeBookings), "report type for the reports screen")
	cmd.Flags().StringVar(&opts.status, "status", domain.FilterAll, "delivery status filter for the dispatcher board")
	cmd.Flags().StringVar(&opts.search, "search", "", "name or email search for the user directory")
	cmd.Flags().StringVar(&opts.role, "role", domain.FilterAll, "role filter for the user directory")
	return cmd
}

// takeSnapshot refreshes one screen of s. A failed fetch is still reported
// through the snapshot; only credential and filter errors abort.
func takeSnapshot(ctx context.Context, s *application.Session, cred credentials.Credential, screen string, opts snapshotOptions) (any, error) {
	switch screen {
	case application.ScreenAdmin:
		if err := s.Admin.Refresh(ctx, cred); isCredentialError(err) {
			return nil, err
		}
		return s.Admin.Snapshot(), nil

	case application.ScreenCustomer:
		if err := s.Customer.Refresh(ctx, cred); isCredentialError(err) {
			return nil, err
		}
		return s.Customer.Snapshot(), nil

	case application.ScreenDispatcher:
		return s.Dispatcher.Snapshot(opts.status)

	case application.ScreenReports:
		reportType := domain.ReportType(opts.reportType)
		if !reportType.IsSelectable() {
			return nil, fmt.Errorf("invalid report type %q", reportType)
		}
		err := s.Reports.SetSelection(ctx, cred, application.SelectionUpdate{ReportType: &reportType})
		if err == nil && s.Reports.Phase() == domain.PhaseIdle {
			err = s.Reports.Generate(ctx, cred)
		}
		if isCredentialError(err) {
			return nil, err
		}
		return s.Reports.Snapshot(), nil

	case application.ScreenUsers:
		if !application.ValidRoleFilter(opts.role) {
			return nil, fmt.Errorf("%w: %q", application.ErrInvalidRole, opts.role)
		}
		if err := s.Users.Refresh(ctx, cred); isCredentialError(err) {
			return nil, err
		}
		return s.Users.Snapshot(opts.search, opts.role)
	}
	return nil, fmt.Errorf("unknown screen %q", screen)
}

func isCredentialError(err error) bool {
	return err != nil && (errors.Is(err, credentials.ErrMissingCredential) || errors.Is(err, credentials.ErrExpiredCredential))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
