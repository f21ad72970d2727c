package match

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentops/match-service/internal/domain"
	"github.com/talentops/match-service/internal/matching"
	"github.com/talentops/match-service/internal/model"
)

// fakeStore is an in-memory Store implementation for service tests
type fakeStore struct {
	nextID        int64
	matches       map[int64]model.MatchResult
	jobs          map[int64]model.JobDescription
	consultants   map[int64]model.ConsultantProfile
	workflows     []*model.WorkflowStatus
	notifications []model.Notification

	// failOn maps an operation name to a forced error
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches:     make(map[int64]model.MatchResult),
		jobs:        make(map[int64]model.JobDescription),
		consultants: make(map[int64]model.ConsultantProfile),
		failOn:      make(map[string]error),
	}
}

func (f *fakeStore) fail(op string) error {
	if err, ok := f.failOn[op]; ok {
		return err
	}
	return nil
}

func (f *fakeStore) GetMatchResultByID(_ context.Context, id int64) (*model.MatchResult, error) {
	if err := f.fail("get"); err != nil {
		return nil, err
	}
	m, ok := f.matches[id]
	if !ok {
		return nil, domain.ErrMatchResultNotFound
	}
	return &m, nil
}

func (f *fakeStore) ListMatchResultsByJob(_ context.Context, jobID int64) ([]model.MatchResult, error) {
	if err := f.fail("list"); err != nil {
		return nil, err
	}
	var out []model.MatchResult
	for _, m := range f.matches {
		if m.JobDescriptionID == jobID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) TopMatchResults(_ context.Context, jobID int64, limit int) ([]model.MatchResult, error) {
	if err := f.fail("top"); err != nil {
		return nil, err
	}
	var out []model.MatchResult
	for _, m := range f.matches {
		if m.JobDescriptionID == jobID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CreateMatchResult(_ context.Context, result *model.MatchResult) error {
	if err := f.fail("create"); err != nil {
		return err
	}
	f.nextID++
	result.ID = f.nextID
	f.matches[result.ID] = *result
	return nil
}

func (f *fakeStore) UpdateMatchResult(_ context.Context, result *model.MatchResult) error {
	if err := f.fail("update"); err != nil {
		return err
	}
	if _, ok := f.matches[result.ID]; !ok {
		return domain.ErrMatchResultNotFound
	}
	f.matches[result.ID] = *result
	return nil
}

func (f *fakeStore) DeleteMatchResult(_ context.Context, id int64) error {
	if err := f.fail("delete"); err != nil {
		return err
	}
	if _, ok := f.matches[id]; !ok {
		return domain.ErrMatchResultNotFound
	}
	delete(f.matches, id)
	return nil
}

func (f *fakeStore) ReplaceMatchesForJob(_ context.Context, jobID int64, results []model.MatchResult) error {
	if err := f.fail("replace"); err != nil {
		return err
	}
	for id, m := range f.matches {
		if m.JobDescriptionID == jobID {
			delete(f.matches, id)
		}
	}
	for i := range results {
		f.nextID++
		results[i].ID = f.nextID
		f.matches[results[i].ID] = results[i]
	}
	return nil
}

func (f *fakeStore) GetJobDescription(_ context.Context, id int64) (*model.JobDescription, error) {
	if err := f.fail("job"); err != nil {
		return nil, err
	}
	jd, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobDescriptionNotFound
	}
	return &jd, nil
}

func (f *fakeStore) GetConsultantProfile(_ context.Context, id int64) (*model.ConsultantProfile, error) {
	if err := f.fail("consultant"); err != nil {
		return nil, err
	}
	p, ok := f.consultants[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) ListAvailableConsultants(_ context.Context) ([]model.ConsultantProfile, error) {
	if err := f.fail("pool"); err != nil {
		return nil, err
	}
	var out []model.ConsultantProfile
	for _, p := range f.consultants {
		if domain.ParseAvailability(p.Availability) != domain.AvailabilityUnavailable {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateWorkflowStatus(_ context.Context, ws *model.WorkflowStatus) error {
	if err := f.fail("workflow"); err != nil {
		return err
	}
	f.nextID++
	ws.ID = f.nextID
	f.workflows = append(f.workflows, ws)
	return nil
}

func (f *fakeStore) CompleteWorkflowStatus(_ context.Context, jobID int64) (int64, error) {
	if err := f.fail("complete"); err != nil {
		return 0, err
	}
	for i := len(f.workflows) - 1; i >= 0; i-- {
		if f.workflows[i].JobDescriptionID == jobID {
			f.workflows[i].Progress = domain.WorkflowCompleted
			return f.workflows[i].ID, nil
		}
	}
	return 0, fmt.Errorf("no workflow status to complete for job %d", jobID)
}

func (f *fakeStore) CreateNotification(_ context.Context, n *model.Notification) error {
	if err := f.fail("notification"); err != nil {
		return err
	}
	f.nextID++
	n.ID = f.nextID
	f.notifications = append(f.notifications, *n)
	return nil
}

type fakeMatcher struct {
	result  *matching.Result
	err     error
	gotJD   *model.JobDescription
	gotPool []model.ConsultantProfile
}

func (f *fakeMatcher) Run(_ context.Context, jd *model.JobDescription, pool []model.ConsultantProfile) (*matching.Result, error) {
	f.gotJD = jd
	f.gotPool = pool
	return f.result, f.err
}

type sentMail struct {
	recipient string
	subject   string
	body      string
}

type fakeSender struct {
	err  error
	sent []sentMail
}

func (f *fakeSender) Send(_ context.Context, recipient, subject, body string) error {
	f.sent = append(f.sent, sentMail{recipient: recipient, subject: subject, body: body})
	return f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store *fakeStore, matcher *fakeMatcher, sender *fakeSender) *Service {
	svc := NewService(&Config{
		Store:   store,
		Matcher: matcher,
		Sender:  sender,
		Logger:  testLogger(),
	})
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func seedJob(store *fakeStore, id int64) {
	store.jobs[id] = model.JobDescription{
		ID:             id,
		Title:          "Senior Data Engineer",
		Description:    "Pipelines and warehousing",
		RequestorEmail: "requestor@example.com",
	}
}

func seedConsultant(store *fakeStore, id int64, name, availability string) {
	store.consultants[id] = model.ConsultantProfile{
		ID:           id,
		Name:         name,
		Skills:       "go,sql",
		Experience:   5,
		Location:     "Berlin",
		Availability: availability,
	}
}

func engineResult(message string, pairs ...[2]interface{}) *matching.Result {
	result := &matching.Result{Message: message}
	for _, p := range pairs {
		profile := p[0].(model.ConsultantProfile)
		result.AllMatches = append(result.AllMatches, matching.RankedMatch{
			Profile: matching.Profile{
				ID:           profile.ID,
				Name:         profile.Name,
				Skills:       profile.Skills,
				Experience:   profile.Experience,
				Location:     profile.Location,
				Availability: profile.Availability,
			},
			SimilarityScore: p[1].(float64),
		})
	}
	return result
}

func TestService_Recompute(t *testing.T) {
	t.Run("ranks engine output 1..k and replaces prior rows", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, 1)
		seedConsultant(store, 10, "Alice", "available")
		seedConsultant(store, 11, "Bob", "partially_available")

		// A stale row from a previous run must be fully replaced.
		store.nextID++
		store.matches[store.nextID] = model.MatchResult{
			ID:               store.nextID,
			JobDescriptionID: 1,
			ConsultantID:     99,
			Rank:             1,
			SimilarityScore:  0.5,
		}

		matcher := &fakeMatcher{result: engineResult("2 candidates matched",
			[2]interface{}{store.consultants[10], 0.9},
			[2]interface{}{store.consultants[11], 0.7},
		)}
		sender := &fakeSender{}
		svc := newTestService(store, matcher, sender)

		entries, err := svc.Recompute(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		assert.Equal(t, int64(10), entries[0].Profile.ID)
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, 0.9, entries[0].SimilarityScore)
		assert.Equal(t, int64(11), entries[1].Profile.ID)
		assert.Equal(t, 2, entries[1].Rank)

		// Stored set exactly equals the fresh set, ranks contiguous.
		stored, err := store.ListMatchResultsByJob(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		ranks := map[int]int64{}
		for _, m := range stored {
			ranks[m.Rank] = m.ConsultantID
		}
		assert.Equal(t, map[int]int64{1: 10, 2: 11}, ranks)

		// Workflow created and completed.
		require.Len(t, store.workflows, 1)
		assert.Equal(t, domain.WorkflowCompleted, store.workflows[0].Progress)
		assert.True(t, store.workflows[0].Steps[domain.StepJDParsed])

		// Email went to the requestor and the notification row records it.
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "requestor@example.com", sender.sent[0].recipient)
		assert.Equal(t, "2 candidates matched", sender.sent[0].body)
		require.Len(t, store.notifications, 1)
		assert.Equal(t, domain.NotificationSent, store.notifications[0].Status)
		assert.Equal(t, store.workflows[0].ID, store.notifications[0].WorkflowStatusID)
	})

	t.Run("excludes unavailable consultants from the pool", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, 1)
		seedConsultant(store, 10, "Alice", "available")
		seedConsultant(store, 11, "Busy", "unavailable")

		matcher := &fakeMatcher{result: engineResult("1 candidate matched",
			[2]interface{}{store.consultants[10], 0.8},
		)}
		svc := newTestService(store, matcher, &fakeSender{})

		_, err := svc.Recompute(context.Background(), 1)
		require.NoError(t, err)

		require.Len(t, matcher.gotPool, 1)
		assert.Equal(t, int64(10), matcher.gotPool[0].ID)
	})

	t.Run("nil engine result is a not-found condition", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, 1)
		seedConsultant(store, 10, "Alice", "available")

		svc := newTestService(store, &fakeMatcher{result: nil}, &fakeSender{})

		_, err := svc.Recompute(context.Background(), 1)
		assert.ErrorIs(t, err, domain.ErrMatchingFailed)
	})

	t.Run("email failure does not abort the run", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, 1)
		seedConsultant(store, 10, "Alice", "available")

		matcher := &fakeMatcher{result: engineResult("done",
			[2]interface{}{store.consultants[10], 0.8},
		)}
		sender := &fakeSender{err: errors.New("smtp down")}
		svc := newTestService(store, matcher, sender)

		entries, err := svc.Recompute(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		require.Len(t, store.notifications, 1)
		assert.Equal(t, domain.NotificationFailed, store.notifications[0].Status)
	})

	t.Run("missing job description proceeds without a recipient", func(t *testing.T) {
		store := newFakeStore()
		seedConsultant(store, 10, "Alice", "available")

		matcher := &fakeMatcher{result: engineResult("no job context",
			[2]interface{}{store.consultants[10], 0.4},
		)}
		sender := &fakeSender{}
		svc := newTestService(store, matcher, sender)

		entries, err := svc.Recompute(context.Background(), 7)
		require.NoError(t, err)
		assert.Len(t, entries, 1)

		assert.Nil(t, matcher.gotJD)
		assert.Empty(t, sender.sent)
	})

	t.Run("engine error surfaces as internal error", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, 1)
		seedConsultant(store, 10, "Alice", "available")

		svc := newTestService(store, &fakeMatcher{err: errors.New("engine exploded")}, &fakeSender{})

		_, err := svc.Recompute(context.Background(), 1)
		assert.ErrorIs(t, err, ErrInternal)
	})

	t.Run("storage failure on replace surfaces as internal error", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, 1)
		seedConsultant(store, 10, "Alice", "available")
		store.failOn["replace"] = errors.New("disk on fire")

		matcher := &fakeMatcher{result: engineResult("done",
			[2]interface{}{store.consultants[10], 0.8},
		)}
		svc := newTestService(store, matcher, &fakeSender{})

		_, err := svc.Recompute(context.Background(), 1)
		assert.ErrorIs(t, err, ErrInternal)
	})
}

func TestService_TopN(t *testing.T) {
	store := newFakeStore()
	seed := []struct {
		consultant int64
		rank       int
	}{
		{consultant: 30, rank: 3},
		{consultant: 10, rank: 1},
		{consultant: 20, rank: 2},
	}
	for _, s := range seed {
		store.nextID++
		store.matches[store.nextID] = model.MatchResult{
			ID:               store.nextID,
			JobDescriptionID: 1,
			ConsultantID:     s.consultant,
			Rank:             s.rank,
			SimilarityScore:  0.5,
		}
	}
	// A row for another job must never appear.
	store.nextID++
	store.matches[store.nextID] = model.MatchResult{
		ID:               store.nextID,
		JobDescriptionID: 2,
		ConsultantID:     40,
		Rank:             1,
	}

	svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

	t.Run("sorted ascending by rank, capped at n", func(t *testing.T) {
		results, err := svc.TopN(context.Background(), 1, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 1, results[0].Rank)
		assert.Equal(t, 2, results[1].Rank)
	})

	t.Run("returns all rows when n exceeds the set", func(t *testing.T) {
		results, err := svc.TopN(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("no rows signals not found", func(t *testing.T) {
		_, err := svc.TopN(context.Background(), 42, 5)
		assert.ErrorIs(t, err, domain.ErrNoMatches)
	})
}

func TestService_TopThreeWithProfiles(t *testing.T) {
	store := newFakeStore()
	seedConsultant(store, 10, "Alice", "Available") // mixed case on purpose
	matchedAt := time.Date(2025, 5, 20, 9, 30, 0, 0, time.UTC)
	for rank, consultant := range []int64{10, 99} {
		store.nextID++
		store.matches[store.nextID] = model.MatchResult{
			ID:               store.nextID,
			JobDescriptionID: 1,
			ConsultantID:     consultant,
			Rank:             rank + 1,
			SimilarityScore:  0.9 - float64(rank)*0.2,
			MatchedAt:        matchedAt,
		}
	}

	svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

	entries, err := svc.TopThreeWithProfiles(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].Profile)
	assert.Equal(t, "Alice", entries[0].Profile.Name)
	assert.Equal(t, "available", entries[0].Profile.Availability)
	assert.Equal(t, matchedAt.Format(time.RFC3339), entries[0].RankedAt)

	// Consultant 99 no longer exists: the match survives with a nil profile.
	assert.Nil(t, entries[1].Profile)
	assert.Equal(t, 2, entries[1].Rank)

	t.Run("no rows signals not found", func(t *testing.T) {
		_, err := svc.TopThreeWithProfiles(context.Background(), 42)
		assert.ErrorIs(t, err, domain.ErrNoMatches)
	})
}

func TestService_CRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("get by id not found", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeMatcher{}, &fakeSender{})
		_, err := svc.GetByID(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrMatchResultNotFound)
	})

	t.Run("list by job returns only matching rows", func(t *testing.T) {
		store := newFakeStore()
		store.matches[1] = model.MatchResult{ID: 1, JobDescriptionID: 1, ConsultantID: 10, Rank: 1}
		store.matches[2] = model.MatchResult{ID: 2, JobDescriptionID: 2, ConsultantID: 11, Rank: 1}
		svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

		results, err := svc.ListByJob(ctx, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, int64(1), results[0].JobDescriptionID)

		_, err = svc.ListByJob(ctx, 3)
		assert.ErrorIs(t, err, domain.ErrNoMatches)
	})

	t.Run("create defaults matched_at", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

		created, err := svc.Create(ctx, Input{
			JobDescriptionID: 1,
			ConsultantID:     10,
			Rank:             1,
			SimilarityScore:  0.8,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), created.MatchedAt)
	})

	t.Run("update overwrites every field", func(t *testing.T) {
		store := newFakeStore()
		store.matches[5] = model.MatchResult{
			ID: 5, JobDescriptionID: 1, ConsultantID: 10, Rank: 1, SimilarityScore: 0.9,
			MatchedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

		newMatchedAt := time.Date(2025, 3, 3, 3, 0, 0, 0, time.UTC)
		updated, err := svc.Update(ctx, 5, Input{
			JobDescriptionID: 2,
			ConsultantID:     20,
			Rank:             7,
			SimilarityScore:  0.1,
			MatchedAt:        newMatchedAt,
		})
		require.NoError(t, err)

		fetched, err := svc.GetByID(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, updated, fetched)
		assert.Equal(t, int64(2), fetched.JobDescriptionID)
		assert.Equal(t, int64(20), fetched.ConsultantID)
		assert.Equal(t, 7, fetched.Rank)
		assert.Equal(t, 0.1, fetched.SimilarityScore)
		assert.Equal(t, newMatchedAt, fetched.MatchedAt)
	})

	t.Run("update missing row signals not found", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeMatcher{}, &fakeSender{})
		_, err := svc.Update(ctx, 404, Input{JobDescriptionID: 1, ConsultantID: 1, Rank: 1})
		assert.ErrorIs(t, err, domain.ErrMatchResultNotFound)
	})

	t.Run("delete then get signals not found", func(t *testing.T) {
		store := newFakeStore()
		store.matches[5] = model.MatchResult{ID: 5, JobDescriptionID: 1, ConsultantID: 10, Rank: 1}
		svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

		require.NoError(t, svc.Delete(ctx, 5))

		_, err := svc.GetByID(ctx, 5)
		assert.ErrorIs(t, err, domain.ErrMatchResultNotFound)
	})

	t.Run("delete missing row signals not found", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeMatcher{}, &fakeSender{})
		assert.ErrorIs(t, svc.Delete(ctx, 404), domain.ErrMatchResultNotFound)
	})

	t.Run("storage failure surfaces as internal error", func(t *testing.T) {
		store := newFakeStore()
		store.failOn["get"] = errors.New("connection reset")
		svc := newTestService(store, &fakeMatcher{}, &fakeSender{})

		_, err := svc.GetByID(ctx, 1)
		assert.ErrorIs(t, err, ErrInternal)
	})
}

func TestRecomputeThenTopN(t *testing.T) {
	// End-to-end over the fakes: fresh job, engine returns two candidates,
	// top-3 afterwards yields them in rank order.
	store := newFakeStore()
	seedJob(store, 1)
	seedConsultant(store, 10, "C1", "available")
	seedConsultant(store, 11, "C2", "available")

	matcher := &fakeMatcher{result: engineResult("ok",
		[2]interface{}{store.consultants[10], 0.9},
		[2]interface{}{store.consultants[11], 0.7},
	)}
	svc := newTestService(store, matcher, &fakeSender{})

	_, err := svc.Recompute(context.Background(), 1)
	require.NoError(t, err)

	results, err := svc.TopN(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(10), results[0].ConsultantID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, int64(11), results[1].ConsultantID)
	assert.Equal(t, 2, results[1].Rank)
}
