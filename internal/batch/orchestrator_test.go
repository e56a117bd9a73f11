package batch

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"job-digest/internal/config"
	"job-digest/internal/domain/event"
	"job-digest/internal/domain/job"
	"job-digest/internal/domain/keyword"
	"job-digest/internal/domain/score"
	"job-digest/internal/domain/user"
	"job-digest/internal/personalize"
	"job-digest/internal/repository"
	"job-digest/internal/scoring"
	"job-digest/internal/selection"
	"job-digest/internal/stats"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockUserRepo struct {
	users []user.User
}

func newMockUserRepo(n int) *mockUserRepo {
	users := make([]user.User, n)
	for i := range users {
		users[i] = user.User{ID: uuid.New(), Region: "tokyo", Locality: "shibuya", IsActive: true}
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i].ID, users[j].ID
		return bytes.Compare(a[:], b[:]) < 0
	})
	return &mockUserRepo{users: users}
}

func (m *mockUserRepo) ListActiveAfter(_ context.Context, afterID uuid.UUID, limit int) ([]user.User, error) {
	var out []user.User
	for _, u := range m.users {
		id := u.ID
		if bytes.Compare(id[:], afterID[:]) <= 0 {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockUserRepo) CountActive(context.Context) (int, error) { return len(m.users), nil }

type mockJobRepo struct {
	jobs []job.Job
}

func newMockJobRepo(n int) *mockJobRepo {
	jobs := make([]job.Job, n)
	for i := range jobs {
		jobs[i] = job.Job{
			ID:               uuid.New(),
			EmployerID:       uuid.New(),
			Region:           "tokyo",
			Locality:         "shibuya",
			WageMin:          1000 + float64(i)*50,
			CompensationType: job.CompensationHourly,
			Fee:              3000,
			Title:            "Warehouse staff",
			Description:      "Forklift work, night shift available.",
			Categories:       []string{"warehouse"},
			HighBenefit:      i%2 == 0,
			PostedAt:         time.Now().Add(-time.Hour),
			IsActive:         true,
		}
	}
	return &mockJobRepo{jobs: jobs}
}

func (m *mockJobRepo) ListActive(_ context.Context, limit, offset int) ([]job.Job, error) {
	if offset >= len(m.jobs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.jobs) {
		end = len(m.jobs)
	}
	return m.jobs[offset:end], nil
}

func (m *mockJobRepo) CountActive(context.Context) (int, error) { return len(m.jobs), nil }

type mockProfileRepo struct {
	mu      sync.Mutex
	calls   int
	failFor map[uuid.UUID]bool
	failAll bool
	delay   time.Duration
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (user.Profile, bool, error) {
	m.mu.Lock()
	m.calls++
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-ctx.Done():
			return user.Profile{}, false, ctx.Err()
		case <-time.After(delay):
		}
	}
	if m.failAll || m.failFor[userID] {
		return user.Profile{}, false, errors.New("profile row corrupt")
	}
	return user.Profile{
		UserID:          userID,
		CategoryWeights: map[string]float64{"warehouse": 0.7},
		RegionWeights:   map[string]float64{"tokyo": 0.8},
	}, true, nil
}

func (m *mockProfileRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockBatchEventRepo struct{}

func (mockBatchEventRepo) ListSince(context.Context, time.Time, int, int) ([]event.Interaction, error) {
	return nil, nil
}
func (mockBatchEventRepo) CountSince(context.Context, time.Time) (int, error) { return 0, nil }
func (mockBatchEventRepo) EmployerCountsSince(context.Context, time.Time) ([]repository.EmployerCounts, error) {
	return nil, nil
}
func (mockBatchEventRepo) RecentByUser(context.Context, uuid.UUID, time.Time) ([]event.Interaction, error) {
	return nil, nil
}

type mockKeywordRepo struct{}

func (mockKeywordRepo) ListAll(context.Context) ([]keyword.Keyword, error) {
	return []keyword.Keyword{
		{ID: uuid.New(), Term: "forklift", SearchVolume: 12000, Intent: keyword.IntentTransactional},
	}, nil
}

type mockScoreRepo struct {
	mu   sync.Mutex
	rows int
}

func (m *mockScoreRepo) UpsertBatch(_ context.Context, scores []score.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows += len(scores)
	return nil
}

type mockSelectionRepo struct {
	mu     sync.Mutex
	byUser map[uuid.UUID][]score.Selection
}

func (m *mockSelectionRepo) ReplaceForUser(_ context.Context, userID uuid.UUID, _ time.Time, rows []score.Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byUser == nil {
		m.byUser = map[uuid.UUID][]score.Selection{}
	}
	m.byUser[userID] = rows
	return nil
}

type nopAreaStore struct{}

func (nopAreaStore) ListAll(context.Context) ([]score.AreaStat, error) { return nil, nil }
func (nopAreaStore) UpsertAll(context.Context, []score.AreaStat) error { return nil }

type nopPopStore struct{}

func (nopPopStore) ListAll(context.Context) ([]score.EmployerPopularity, error) { return nil, nil }
func (nopPopStore) UpsertAll(context.Context, []score.EmployerPopularity) error { return nil }

type testHarness struct {
	orch       *Orchestrator
	users      *mockUserRepo
	profiles   *mockProfileRepo
	scores     *mockScoreRepo
	selections *mockSelectionRepo
	kv         *fakeKV
	store      *RedisCheckpointStore
}

func newHarness(t *testing.T, numUsers, numJobs int) *testHarness {
	t.Helper()
	cfg := config.Default()
	cfg.Batch.Workers = 4
	cfg.Batch.BatchSize = 10
	cfg.Batch.QueueSize = 16
	cfg.Batch.TimeBudget = time.Minute
	cfg.Batch.UserDeadline = 5 * time.Second
	cfg.Batch.RefreshDeadline = 5 * time.Second
	cfg.Batch.MaxRetries = 1
	cfg.Batch.RetryBackoff = time.Millisecond
	cfg.Personalization.Factors = 4
	cfg.Personalization.Iterations = 2

	users := newMockUserRepo(numUsers)
	jobs := newMockJobRepo(numJobs)
	profiles := &mockProfileRepo{}
	events := mockBatchEventRepo{}
	scoresRepo := &mockScoreRepo{}
	selectionsRepo := &mockSelectionRepo{}

	area := stats.NewAreaStats(jobs, nopAreaStore{}, 1, zerolog.Nop())
	popularity := stats.NewPopularity(events, nopPopStore{}, 30, zerolog.Nop())
	personal := personalize.NewEngine(cfg.Personalization, 360*24*time.Hour, events, zerolog.Nop())

	rules, err := scoring.BuildRules(cfg.Rules)
	if err != nil {
		t.Fatalf("BuildRules: %v", err)
	}
	aggregator := scoring.NewAggregator(
		cfg.Scoring.BasicWeight, cfg.Scoring.RelevanceWeight, cfg.Scoring.PersonalizationWeight, rules)

	selector, err := selection.New(cfg.Sections, cfg.Selection)
	if err != nil {
		t.Fatalf("selection.New: %v", err)
	}

	kv := newFakeKV()
	store := NewRedisCheckpointStore(kv)

	orch := NewOrchestrator(cfg.Batch, cfg.Scoring, Deps{
		Users:      users,
		Jobs:       jobs,
		Profiles:   profiles,
		Events:     events,
		Keywords:   mockKeywordRepo{},
		Scores:     scoresRepo,
		Selections: selectionsRepo,

		Area:       area,
		Popularity: popularity,
		Personal:   personal,
		Aggregator: aggregator,
		Selector:   selector,

		Checkpoints: store,
		Locker:      store,
	}, zerolog.Nop())

	return &testHarness{
		orch:       orch,
		users:      users,
		profiles:   profiles,
		scores:     scoresRepo,
		selections: selectionsRepo,
		kv:         kv,
		store:      store,
	}
}

var testRunDate = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestOrchestrator_CompletedRun(t *testing.T) {
	h := newHarness(t, 30, 20)

	report, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.State != StateCompleted {
		t.Fatalf("state = %s, want %s", report.State, StateCompleted)
	}
	if !report.Trustworthy {
		t.Fatal("completed run must be trustworthy")
	}
	if report.UsersProcessed != 30 || report.UsersFailed != 0 {
		t.Fatalf("processed=%d failed=%d", report.UsersProcessed, report.UsersFailed)
	}
	for _, p := range []Phase{PhaseCacheRefresh, PhaseScoring, PhaseSelection} {
		if !report.phaseDone(p) {
			t.Fatalf("phase %s not recorded", p)
		}
	}
	if report.ScoresWritten == 0 || report.SelectionsWritten == 0 {
		t.Fatalf("scores=%d selections=%d, want both > 0", report.ScoresWritten, report.SelectionsWritten)
	}
	if len(h.selections.byUser) != 30 {
		t.Fatalf("expected a selection per user, got %d", len(h.selections.byUser))
	}

	// Completion clears the checkpoint and releases the lock.
	if _, found, _ := h.store.Load(context.Background(), "2026-08-01"); found {
		t.Fatal("checkpoint should be cleared after completion")
	}
	if ok, _ := h.store.TryLock(context.Background(), "2026-08-01", time.Hour); !ok {
		t.Fatal("lock should be released after the run")
	}
}

func TestOrchestrator_RunLocked(t *testing.T) {
	h := newHarness(t, 5, 5)
	if ok, _ := h.store.TryLock(context.Background(), "2026-08-01", time.Hour); !ok {
		t.Fatal("pre-acquiring the lock failed")
	}

	report, err := h.orch.Run(context.Background(), testRunDate)
	if !errors.Is(err, ErrRunLocked) {
		t.Fatalf("expected ErrRunLocked, got %v", err)
	}
	if report.State != StateIdle {
		t.Fatalf("state = %s, want %s", report.State, StateIdle)
	}
}

func TestOrchestrator_SingleFailureIsContained(t *testing.T) {
	h := newHarness(t, 30, 10)
	h.profiles.failFor = map[uuid.UUID]bool{h.users.users[3].ID: true}

	report, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.State != StateCompleted {
		t.Fatalf("state = %s, want %s", report.State, StateCompleted)
	}
	if report.UsersProcessed != 29 || report.UsersFailed != 1 {
		t.Fatalf("processed=%d failed=%d, want 29 and 1", report.UsersProcessed, report.UsersFailed)
	}
}

func TestOrchestrator_FailureRateAborts(t *testing.T) {
	h := newHarness(t, 30, 10)
	h.profiles.failAll = true

	report, err := h.orch.Run(context.Background(), testRunDate)
	if !errors.Is(err, ErrFailureRate) {
		t.Fatalf("expected ErrFailureRate, got %v", err)
	}
	if report.State != StateFailed {
		t.Fatalf("state = %s, want %s", report.State, StateFailed)
	}
	if report.Trustworthy {
		t.Fatal("failed run must not be trustworthy")
	}
	if report.UsersProcessed != 0 {
		t.Fatalf("processed = %d, want 0", report.UsersProcessed)
	}
}

func TestOrchestrator_ResumesFromCheckpoint(t *testing.T) {
	h := newHarness(t, 30, 10)

	// A previous attempt got through the first batch of 10 before dying.
	prior := Checkpoint{
		RunDate:        "2026-08-01",
		LastUserID:     h.users.users[9].ID,
		UsersProcessed: 10,
	}
	if err := h.store.Save(context.Background(), prior); err != nil {
		t.Fatalf("seeding checkpoint: %v", err)
	}

	report, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Resumed {
		t.Fatal("report should mark the run as resumed")
	}
	if report.State != StateCompleted {
		t.Fatalf("state = %s, want %s", report.State, StateCompleted)
	}
	if report.UsersProcessed != 30 {
		t.Fatalf("processed = %d, want carried 10 plus fresh 20", report.UsersProcessed)
	}
	// Only the 20 unvisited users hit the per-user pipeline.
	if got := h.profiles.callCount(); got != 20 {
		t.Fatalf("profile lookups = %d, want 20", got)
	}
}

func TestOrchestrator_BudgetExpiryIsPartiallyCompleted(t *testing.T) {
	h := newHarness(t, 30, 5)
	h.orch.cfg.Workers = 1
	h.orch.cfg.TimeBudget = 900 * time.Millisecond
	h.profiles.delay = 50 * time.Millisecond

	report, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.State != StatePartiallyCompleted {
		t.Fatalf("state = %s, want %s", report.State, StatePartiallyCompleted)
	}
	if !report.Trustworthy {
		t.Fatal("partial output is complete per user and must stay trustworthy")
	}
	if report.UsersProcessed < 10 || report.UsersProcessed >= 30 {
		t.Fatalf("processed = %d, want partial progress", report.UsersProcessed)
	}
	if report.UsersRemaining != 30-report.UsersProcessed-report.UsersFailed {
		t.Fatalf("remaining = %d with processed=%d failed=%d",
			report.UsersRemaining, report.UsersProcessed, report.UsersFailed)
	}

	// The checkpoint may only point at a batch boundary whose users all
	// finished; a user at or before it with no selection would be lost to
	// any resume.
	cp, found, err := h.store.Load(context.Background(), "2026-08-01")
	if err != nil || !found {
		t.Fatalf("checkpoint after first batch: found=%v err=%v", found, err)
	}
	if cp.LastUserID != h.users.users[9].ID {
		t.Fatalf("checkpoint at %s, want the first batch boundary %s", cp.LastUserID, h.users.users[9].ID)
	}
	for _, u := range h.users.users[:10] {
		if _, ok := h.selections.byUser[u.ID]; !ok {
			t.Fatalf("user %s is behind the checkpoint but has no selection", u.ID)
		}
	}
}

func TestOrchestrator_ResumeAfterBudgetExpiryScoresEveryUser(t *testing.T) {
	h := newHarness(t, 30, 5)
	h.orch.cfg.Workers = 1
	h.orch.cfg.TimeBudget = 900 * time.Millisecond
	h.profiles.delay = 50 * time.Millisecond

	first, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.State != StatePartiallyCompleted {
		t.Fatalf("first state = %s, want %s", first.State, StatePartiallyCompleted)
	}

	// Operator re-runs the date with the pressure gone.
	h.profiles.delay = 0
	h.orch.cfg.TimeBudget = time.Minute

	second, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Resumed {
		t.Fatal("second run should resume from the checkpoint")
	}
	if second.State != StateCompleted {
		t.Fatalf("second state = %s, want %s", second.State, StateCompleted)
	}
	if second.UsersProcessed != 30 {
		t.Fatalf("processed = %d, want all 30 after resume", second.UsersProcessed)
	}
	// Nobody may fall through the gap between the two runs.
	if len(h.selections.byUser) != 30 {
		t.Fatalf("users with selections = %d, want 30", len(h.selections.byUser))
	}
	if _, found, _ := h.store.Load(context.Background(), "2026-08-01"); found {
		t.Fatal("checkpoint should be cleared after the completed resume")
	}
}

func TestOrchestrator_DisqualifiedJobsExcluded(t *testing.T) {
	h := newHarness(t, 3, 6)
	// Make half the catalog unqualifiable by fee.
	jobs := h.orch.jobs.(*mockJobRepo)
	for i := 0; i < 3; i++ {
		jobs.jobs[i].Fee = 400
	}

	report, err := h.orch.Run(context.Background(), testRunDate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 3 users × 3 qualified jobs.
	if report.ScoresWritten != 9 {
		t.Fatalf("scores written = %d, want 9", report.ScoresWritten)
	}
	for _, sels := range h.selections.byUser {
		for _, sel := range sels {
			for i := 0; i < 3; i++ {
				if sel.JobID == jobs.jobs[i].ID {
					t.Fatal("disqualified job must never be selected")
				}
			}
		}
	}
}
