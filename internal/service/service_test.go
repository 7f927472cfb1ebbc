package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
	"github.com/kopa-app/kopa-server/internal/store/sqlite"
	"github.com/kopa-app/kopa-server/internal/validation"
)

// recordingEmitter captures emitted events. Setting drop makes every
// Emit report failure.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
	drop   bool
}

func (r *recordingEmitter) Emit(e sse.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.drop {
		return false
	}
	r.events = append(r.events, e)
	return true
}

func (r *recordingEmitter) ofType(t sse.EventType) []sse.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sse.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// failingStore fails the named method, including inside transactions.
type failingStore struct {
	store.Store
	failOn string
}

var errInjected = errors.New("injected failure")

func (f *failingStore) RunAtomic(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.RunAtomic(ctx, func(tx store.Store) error {
		return fn(&failingStore{Store: tx, failOn: f.failOn})
	})
}

func (f *failingStore) FindTags(ctx context.Context, filter store.TagFilter) ([]*domain.Tag, error) {
	if f.failOn == "FindTags" {
		return nil, errInjected
	}
	return f.Store.FindTags(ctx, filter)
}

func (f *failingStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if f.failOn == "CreateNotification" {
		return errInjected
	}
	return f.Store.CreateNotification(ctx, n)
}

func (f *failingStore) DecrementPendingCount(ctx context.Context, userID string) (bool, error) {
	if f.failOn == "DecrementPendingCount" {
		return false, errInjected
	}
	return f.Store.DecrementPendingCount(ctx, userID)
}

func (f *failingStore) CreateSuggestion(ctx context.Context, s *domain.TagSuggestion) error {
	if f.failOn == "CreateSuggestion" {
		return errInjected
	}
	return f.Store.CreateSuggestion(ctx, s)
}

// fixture wires every service to one temp-dir database.
type fixture struct {
	ctx           context.Context
	store         *sqlite.Store
	events        *recordingEmitter
	validator     *validation.Validator
	logger        *slog.Logger
	limits        config.TaxonomyConfig
	taxonomy      *TaxonomyService
	search        *SearchService
	suggestions   *SuggestionService
	notifications *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() }) //nolint:errcheck // Test cleanup

	f := &fixture{
		ctx:       context.Background(),
		store:     st,
		events:    &recordingEmitter{},
		validator: validation.New(),
		logger:    logger,
		limits:    config.DefaultTaxonomy(),
	}
	f.wire(st)
	f.seed(t)
	return f
}

// wire (re)builds the services on top of s.
func (f *fixture) wire(s store.Store) {
	f.notifications = NewNotificationService(s, f.events, f.logger)
	f.taxonomy = NewTaxonomyService(s, nil, f.events, f.validator, f.logger)
	f.search = NewSearchService(s, nil, f.limits, f.logger)
	f.suggestions = NewSuggestionService(s, nil, f.events, f.notifications, f.validator, f.limits, f.logger)
}

func testTag(id string, level domain.TagLevel, parentID, name string) *domain.Tag {
	now := time.Now()
	return &domain.Tag{
		ID:        id,
		Name:      name,
		Slug:      id,
		Level:     level,
		ParentID:  parentID,
		Status:    domain.TagStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// seed creates Sports > {Ball Games > Basketball, Fitness}, Culture > Games,
// a member and a moderator.
func (f *fixture) seed(t *testing.T) {
	t.Helper()

	sports := testTag("sports", domain.LevelCategory, "", "Sports")
	sports.ColorKey = "orange"
	culture := testTag("culture", domain.LevelCategory, "", "Culture")
	culture.ColorKey = "purple"

	for _, tag := range []*domain.Tag{
		sports,
		culture,
		testTag("ball-games", domain.LevelDomain, "sports", "Ball Games"),
		testTag("fitness", domain.LevelDomain, "sports", "Fitness"),
		testTag("games", domain.LevelDomain, "culture", "Games"),
		testTag("basketball", domain.LevelSpecific, "ball-games", "Basketball"),
	} {
		require.NoError(t, f.store.CreateTag(f.ctx, tag), tag.ID)
	}

	f.addUser(t, "user-1", domain.RoleMember)
	f.addUser(t, "mod-1", domain.RoleModerator)
}

func (f *fixture) addUser(t *testing.T, id string, role domain.Role) *domain.User {
	t.Helper()
	now := time.Now()
	u := &domain.User{
		ID:           id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		DisplayName:  id,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.store.CreateUser(f.ctx, u))
	return u
}

func (f *fixture) pendingCount(t *testing.T, userID string) int {
	t.Helper()
	u, err := f.store.GetUser(f.ctx, userID)
	require.NoError(t, err)
	return u.PendingSuggestionCount
}

// requireCode asserts err is a domain error with the given code and
// returns it for further inspection.
func requireCode(t *testing.T, err error, code domainerrors.Code) *domainerrors.Error {
	t.Helper()
	require.Error(t, err)
	var domainErr *domainerrors.Error
	require.True(t, errors.As(err, &domainErr), "expected domain error, got %T: %v", err, err)
	require.Equal(t, code, domainErr.Code, "message: %s", domainErr.Message)
	return domainErr
}
