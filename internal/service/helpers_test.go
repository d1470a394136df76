package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"modhub/internal/featureflags"
	"modhub/internal/models"
	"modhub/internal/repository"
	"modhub/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingAuditor keeps every event in memory.
type recordingAuditor struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (r *recordingAuditor) Record(_ context.Context, e AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAuditor) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func (r *recordingAuditor) Last() AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return AuditEvent{}
	}
	return r.events[len(r.events)-1]
}

// engine is a fully wired service layer over an in-memory database.
type engine struct {
	db       *gorm.DB
	fx       *testutil.Fixture
	clock    *testutil.FakeClock
	auditor  *recordingAuditor
	filter   *ContentFilter
	timeouts *TimeoutEnforcer
	settings *ModerationSettings
	comments *CommentService
	votes    *VoteService
	admin    *AdminService
}

type engineOption func(*CommentDeps)

func withFlags(raw string) engineOption {
	return func(d *CommentDeps) { d.Flags = featureflags.NewManager(raw) }
}

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()

	db := testutil.NewTestDB(t)
	fx := testutil.Seed(t, db)
	clock := testutil.NewFakeClock()
	auditor := &recordingAuditor{}

	commentRepo := repository.NewCommentRepository(db)
	userRepo := repository.NewUserRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	wordRepo := repository.NewForbiddenWordRepository(db)

	filter := NewContentFilter(wordRepo, nil, time.Minute)
	timeouts := NewTimeoutEnforcer(repository.NewTimeoutRepository(db), clock, DefaultTimeoutPolicy())
	settings := NewModerationSettings(repository.NewSettingRepository(db), nil)

	deps := CommentDeps{
		Comments: commentRepo,
		Mods:     repository.NewModRepository(db),
		Users:    userRepo,
		Votes:    voteRepo,
		Filter:   filter,
		Throttle: NewAbuseThrottle(commentRepo, clock, 3, 20*time.Second),
		Timeouts: timeouts,
		Settings: settings,
		Auditor:  auditor,
		Flags:    featureflags.NewManager(""),
		Clock:    clock,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &engine{
		db:       db,
		fx:       fx,
		clock:    clock,
		auditor:  auditor,
		filter:   filter,
		timeouts: timeouts,
		settings: settings,
		comments: NewCommentService(deps),
		votes:    NewVoteService(voteRepo, userRepo, auditor),
		admin:    NewAdminService(wordRepo, userRepo, filter, timeouts, settings, auditor),
	}
}

func (e *engine) actor(u *models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role, IP: "203.0.113.7", UserAgent: "test-agent"}
}

func (e *engine) block(t *testing.T, word, severity string) {
	t.Helper()
	_, err := e.admin.UpsertWords(context.Background(), e.actor(e.fx.Admin), []WordEntry{{Word: word, Severity: severity}})
	require.NoError(t, err)
}

func (e *engine) setModeration(t *testing.T, enabled bool) {
	t.Helper()
	require.NoError(t, e.settings.SetModerationEnabled(context.Background(), enabled))
}

// submit creates a root comment as u and fails the test on error.
func (e *engine) submit(t *testing.T, u *models.User, content string) *models.Comment {
	t.Helper()
	c, err := e.comments.Submit(context.Background(), SubmitCommentInput{
		Actor:   e.actor(u),
		ModID:   e.fx.Mod.ID,
		Content: content,
	})
	require.NoError(t, err)
	return c
}

// approved inserts an approved root comment directly, bypassing the pipeline.
func (e *engine) approved(t *testing.T, u *models.User, content string) *models.Comment {
	t.Helper()
	now, _ := e.clock.Now(context.Background())
	c := &models.Comment{ModID: e.fx.Mod.ID, UserID: u.ID, Content: content, IsApproved: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repository.NewCommentRepository(e.db).Create(context.Background(), c))
	return c
}

func (e *engine) commentRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Comment{}).Count(&n).Error)
	return n
}

func (e *engine) count(t *testing.T) int {
	t.Helper()
	return testutil.CommentCount(t, e.db, e.fx.Mod.ID)
}

func (e *engine) reload(t *testing.T, id uint) *models.Comment {
	t.Helper()
	var c models.Comment
	require.NoError(t, e.db.First(&c, id).Error)
	return &c
}

func requireAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code, appErr.Message)
	return appErr
}
