package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logistics-platform/booking-dashboard/internal/credentials"
	"github.com/logistics-platform/booking-dashboard/internal/domain"
	"github.com/logistics-platform/booking-dashboard/internal/infrastructure/clients"
)

// ErrInvalidRole is returned for a role filter that is neither "all" nor a known role
var ErrInvalidRole = errors.New("invalid role filter")

const usersFetchFailed = "Failed to fetch users"

// UserScreen is the admin user management screen
type UserScreen struct {
	mu          sync.Mutex
	state       viewState
	fetcher     UserFetcher
	deps        Dependencies
	concurrency int
	directory   *domain.UserDirectory
}

// NewUserScreen creates a user screen. concurrency bounds the booking count
// requests in flight at once.
func NewUserScreen(fetcher UserFetcher, concurrency int, deps Dependencies) *UserScreen {
	if concurrency <= 0 {
		concurrency = DefaultScreenConfig().BookingCountConcurrency
	}
	return &UserScreen{
		state:       newViewState(),
		fetcher:     fetcher,
		deps:        deps.withDefaults(),
		concurrency: concurrency,
		directory:   domain.NewUserDirectory(nil),
	}
}

// Refresh loads the user list, then the booking count of every displayable
// user. A failed count shows as 0 and never aborts the others.
func (s *UserScreen) Refresh(ctx context.Context, cred credentials.Credential) error {
	start := time.Now()
	logger := s.deps.Logger.WithScreen(ScreenUsers).WithContext(ctx)

	s.mu.Lock()
	gen := s.state.begin()
	s.mu.Unlock()

	users, err := s.fetcher.ListUsers(ctx, cred)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.state.isCurrent(gen) {
			s.deps.recordRefresh(ctx, ScreenUsers, gen, outcomeStale, start, nil)
			return nil
		}
		if ctx.Err() != nil {
			return s.deps.abandon(ctx, &s.state, ScreenUsers, gen, start)
		}
		s.state.fail(clients.UserMessage(err, usersFetchFailed))
		s.deps.recordRefresh(ctx, ScreenUsers, gen, outcomeFailed, start, nil)
		return err
	}

	directory := domain.NewUserDirectory(users)
	counts := s.countBookings(ctx, cred, directory.SafeUsers())

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.isCurrent(gen) {
		s.deps.recordRefresh(ctx, ScreenUsers, gen, outcomeStale, start, nil)
		return nil
	}
	if ctx.Err() != nil {
		return s.deps.abandon(ctx, &s.state, ScreenUsers, gen, start)
	}

	var degraded []string
	for id, count := range counts {
		if count.err != nil {
			logger.WithError(count.err).Warn("Booking count unavailable, showing 0", "userId", id)
			degraded = append(degraded, "bookingCount:"+id)
			continue
		}
		directory.SetBookingCount(id, count.n)
	}

	s.directory = directory
	slices.Sort(degraded)
	s.state.succeed(s.deps.Clock(), degraded)
	s.deps.recordRefresh(ctx, ScreenUsers, gen, outcomeReady, start, s.state.degraded)
	return nil
}

type bookingCount struct {
	n   int
	err error
}

func (s *UserScreen) countBookings(ctx context.Context, cred credentials.Credential, users []domain.UserRecord) map[string]bookingCount {
	var (
		mu     sync.Mutex
		counts = make(map[string]bookingCount, len(users))
		g      errgroup.Group
	)
	g.SetLimit(s.concurrency)

	seen := make(map[string]bool, len(users))
	for _, u := range users {
		id := u.ID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		g.Go(func() error {
			n, err := s.fetcher.CountCustomerBookings(ctx, cred, id)
			mu.Lock()
			counts[id] = bookingCount{n: n, err: err}
			mu.Unlock()
			// Failures stay per user; the group never cancels siblings
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

// Phase returns the current phase
func (s *UserScreen) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.phase
}

// Close discards any in-flight refresh
func (s *UserScreen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.invalidate()
}

// ValidRoleFilter reports whether role is "all", empty or a known role
func ValidRoleFilter(role string) bool {
	if role == "" || role == domain.FilterAll {
		return true
	}
	_, ok := domain.ParseRole(role)
	return ok
}

// Snapshot returns the users matching search and role with their booking counts
func (s *UserScreen) Snapshot(search, role string) (domain.UserDirectorySnapshot, error) {
	if role == "" {
		role = domain.FilterAll
	}
	if !ValidRoleFilter(role) {
		return domain.UserDirectorySnapshot{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := s.directory.FilteredUsers(search, role)
	rows := make([]domain.UserRow, 0, len(filtered))
	for _, u := range filtered {
		rows = append(rows, domain.UserRow{UserRecord: u, BookingCount: s.directory.BookingCountFor(u.ID)})
	}

	return domain.UserDirectorySnapshot{
		ScreenStatus: s.state.status(domain.Greeting(s.deps.Clock())),
		TotalUsers:   len(s.directory.Users()),
		RoleCounts:   s.directory.RoleCounts(),
		Search:       search,
		RoleFilter:   role,
		Users:        rows,
	}, nil
}
