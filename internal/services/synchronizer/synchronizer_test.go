package synchronizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/observable"
	"github.com/magabrotheeeer/storeplan-sync/internal/metrics"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/planstate"
	"github.com/magabrotheeeer/storeplan-sync/internal/reminder"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) LoadCurrentPlan(ctx context.Context, siteID int64) (models.PlanSnapshot, error) {
	args := m.Called(ctx, siteID)
	return args.Get(0).(models.PlanSnapshot), args.Error(1)
}

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, r models.Reminder) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockScheduler) Cancel(ctx context.Context, tag models.ScenarioTag) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

type staticFlags map[string]bool

func (f staticFlags) IsEnabled(_ context.Context, flag string) bool {
	return f[flag]
}

// gatedFetcher блокирует загрузку до тех пор, пока тест не отпустит её.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   []int64
	release chan struct{}
	plan    models.PlanSnapshot
}

func newGatedFetcher(plan models.PlanSnapshot) *gatedFetcher {
	return &gatedFetcher{release: make(chan struct{}), plan: plan}
}

func (f *gatedFetcher) LoadCurrentPlan(ctx context.Context, siteID int64) (models.PlanSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, siteID)
	f.mu.Unlock()
	select {
	case <-f.release:
	case <-ctx.Done():
		return models.PlanSnapshot{}, ctx.Err()
	}
	return f.plan, nil
}

func (f *gatedFetcher) Calls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.calls...)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func wpcomSite(id int64) *models.Site {
	return &models.Site{ID: id, Name: "Shop", OwnerEmail: "owner@example.com", IsWordPressComStore: true}
}

func trialPlan(subscribed time.Time) models.PlanSnapshot {
	return models.PlanSnapshot{
		ID:             models.FreeTrialPlanID,
		Name:           models.FreeTrialPlanSlug,
		IsFreeTrial:    true,
		SubscribedDate: &subscribed,
	}
}

func newService(t *testing.T, sites *observable.Value[*models.Site], fetcher PlanFetcher, scheduler NotificationScheduler, flags FeatureFlags) (*Service, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	s := New(sites, fetcher, scheduler, flags, planstate.WPComChecker{}, m, newNoopLogger(), WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(s.Close)
	return s, m
}

// recorder собирает последовательность состояний.
type recorder struct {
	mu     sync.Mutex
	states []planstate.Kind
}

func (r *recorder) add(s planstate.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s.Kind)
}

func (r *recorder) kinds() []planstate.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]planstate.Kind(nil), r.states...)
}

func TestService_EndToEndTrialSubscribedNow(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	fetcher.On("LoadCurrentPlan", mock.Anything, int64(1)).Return(trialPlan(fixedNow), nil).Once()
	scheduler.On("Schedule", mock.Anything, mock.AnythingOfType("models.Reminder")).Return(nil).Twice()

	s, m := newService(t, sites, fetcher, scheduler, staticFlags{})
	rec := &recorder{}
	sub := s.Subscribe(rec.add)
	defer sub.Cancel()

	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	s.WaitIdle()

	assert.Equal(t, []planstate.Kind{planstate.NotLoaded, planstate.Loading, planstate.Loaded}, rec.kinds())
	require.NotNil(t, s.State().Plan)
	assert.Equal(t, models.FreeTrialPlanID, s.State().Plan.ID)

	fetcher.AssertExpectations(t)
	scheduler.AssertNumberOfCalls(t, "Schedule", 2)
	scheduler.AssertNumberOfCalls(t, "Cancel", 0)

	var scheduled []models.ScenarioTag
	for _, c := range scheduler.Calls {
		r := c.Arguments.Get(1).(models.Reminder)
		scheduled = append(scheduled, r.Tag)
		switch r.Scenario {
		case reminder.SixHoursAfterFreeTrialSubscribed:
			assert.Equal(t, fixedNow.Add(6*time.Hour), r.TriggerAt)
		case reminder.OneDayAfterFreeTrialSubscribed:
			assert.Equal(t, fixedNow.Add(24*time.Hour), r.TriggerAt)
		default:
			t.Fatalf("unexpected scenario %s", r.Scenario)
		}
	}
	assert.ElementsMatch(t, []models.ScenarioTag{
		reminder.Tag(reminder.SixHoursAfterFreeTrialSubscribed, 1),
		reminder.Tag(reminder.OneDayAfterFreeTrialSubscribed, 1),
	}, scheduled)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanFetches.WithLabelValues(metrics.FetchLoaded)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemindersScheduled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanState.WithLabelValues(string(planstate.Loaded))))
}

func TestService_SurveyFlagSchedulesSurvey(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	fetcher.On("LoadCurrentPlan", mock.Anything, int64(1)).Return(trialPlan(fixedNow.Add(-10*time.Hour)), nil)
	scheduler.On("Schedule", mock.Anything, mock.MatchedBy(func(r models.Reminder) bool {
		return r.Scenario == reminder.FreeTrialSurvey24hAfterFreeTrialSubscribed
	})).Return(nil).Once()

	s, _ := newService(t, sites, fetcher, scheduler, staticFlags{reminder.FlagFreeTrialSurvey24h: true})
	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	s.WaitIdle()

	scheduler.AssertExpectations(t)
	scheduler.AssertNumberOfCalls(t, "Schedule", 1)
}

func TestService_NonTrialPlanCancelsAllScenarios(t *testing.T) {
	sites := observable.New[*models.Site](wpcomSite(7))
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	fetcher.On("LoadCurrentPlan", mock.Anything, int64(7)).Return(models.PlanSnapshot{ID: "1011", Name: "business-bundle"}, nil)
	scheduler.On("Cancel", mock.Anything, mock.AnythingOfType("models.ScenarioTag")).Return(nil)

	s, m := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	s.WaitIdle()

	assert.Equal(t, planstate.Loaded, s.State().Kind)
	scheduler.AssertNumberOfCalls(t, "Cancel", 5)
	scheduler.AssertNumberOfCalls(t, "Schedule", 0)
	for _, tag := range reminder.AllTags(7) {
		scheduler.AssertCalled(t, "Cancel", mock.Anything, tag)
	}
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RemindersCancelled))
}

func TestService_NoCurrentPlanIsExpired(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	fetcher.On("LoadCurrentPlan", mock.Anything, int64(3)).
		Return(models.PlanSnapshot{}, models.ErrNoCurrentPlan)

	s, m := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(3))
	s.WaitIdle()

	assert.Equal(t, planstate.Expired, s.State().Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanFetches.WithLabelValues(metrics.FetchExpired)))
	scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	scheduler.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestService_FailedFetchCanBeReloaded(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	fetcher.On("LoadCurrentPlan", mock.Anything, int64(3)).
		Return(models.PlanSnapshot{}, errors.New("connection reset")).Once()
	fetcher.On("LoadCurrentPlan", mock.Anything, int64(3)).
		Return(models.PlanSnapshot{ID: "1011"}, nil).Once()
	scheduler.On("Cancel", mock.Anything, mock.Anything).Return(nil)

	s, _ := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(3))
	s.WaitIdle()
	require.Equal(t, planstate.Failed, s.State().Kind)

	assert.True(t, s.ReloadPlan())
	s.WaitIdle()
	assert.Equal(t, planstate.Loaded, s.State().Kind)
	fetcher.AssertExpectations(t)
}

func TestService_SchedulerFailureDoesNotChangeState(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	fetcher.On("LoadCurrentPlan", mock.Anything, int64(1)).Return(trialPlan(fixedNow), nil)
	scheduler.On("Schedule", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	s, m := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	s.WaitIdle()

	assert.Equal(t, planstate.Loaded, s.State().Kind)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReminderErrors.WithLabelValues("schedule")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RemindersScheduled))
}

func TestService_NonWPComSiteIsUnavailableWithoutFetch(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)

	s, _ := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(&models.Site{ID: 5, Name: "Self-hosted"})

	assert.Equal(t, planstate.Unavailable, s.State().Kind)
	assert.False(t, s.ReloadPlan())
	s.WaitIdle()
	fetcher.AssertNotCalled(t, "LoadCurrentPlan", mock.Anything, mock.Anything)
}

func TestService_ReloadWhileLoadingIssuesSingleFetch(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := newGatedFetcher(models.PlanSnapshot{ID: "1011"})
	scheduler := new(MockScheduler)
	scheduler.On("Cancel", mock.Anything, mock.Anything).Return(nil)

	s, _ := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	require.Equal(t, planstate.Loading, s.State().Kind)

	assert.False(t, s.ReloadPlan())
	assert.False(t, s.ReloadPlan())

	close(fetcher.release)
	s.WaitIdle()

	assert.Equal(t, []int64{1}, fetcher.Calls())
	assert.Equal(t, planstate.Loaded, s.State().Kind)
}

func TestService_LogoutResetsStateAndDropsInFlightResult(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := newGatedFetcher(trialPlan(fixedNow))
	scheduler := new(MockScheduler)

	s, m := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	require.Equal(t, planstate.Loading, s.State().Kind)

	sites.Set(nil)
	assert.Equal(t, planstate.NotLoaded, s.State().Kind)

	close(fetcher.release)
	s.WaitIdle()

	assert.Equal(t, planstate.NotLoaded, s.State().Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanFetches.WithLabelValues(metrics.FetchStale)))
	scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestService_SiteSwitchDuringFetchLoadsNewSite(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := newGatedFetcher(models.PlanSnapshot{ID: "1011"})
	scheduler := new(MockScheduler)
	scheduler.On("Cancel", mock.Anything, mock.Anything).Return(nil)

	s, _ := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	sites.Set(wpcomSite(2))
	require.Equal(t, planstate.Loading, s.State().Kind)

	close(fetcher.release)
	s.WaitIdle()

	assert.Equal(t, []int64{1, 2}, fetcher.Calls())
	assert.Equal(t, planstate.Loaded, s.State().Kind)
	for _, tag := range reminder.AllTags(2) {
		scheduler.AssertCalled(t, "Cancel", mock.Anything, tag)
	}
	for _, tag := range reminder.AllTags(1) {
		scheduler.AssertNotCalled(t, "Cancel", mock.Anything, tag)
	}
}

func TestService_SwitchToNonWPComSiteDuringFetchSkipsFetch(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := newGatedFetcher(models.PlanSnapshot{ID: "1011"})
	scheduler := new(MockScheduler)

	s, m := newService(t, sites, fetcher, scheduler, staticFlags{})
	s.Start(context.Background())
	sites.Set(wpcomSite(1))
	sites.Set(&models.Site{ID: 2, Name: "Self-hosted"})
	require.Equal(t, planstate.Unavailable, s.State().Kind)

	close(fetcher.release)
	s.WaitIdle()

	assert.Equal(t, []int64{1}, fetcher.Calls())
	assert.Equal(t, planstate.Unavailable, s.State().Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanFetches.WithLabelValues(metrics.FetchStale)))
	scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
	scheduler.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestService_CloseCancelsInFlightFetch(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := newGatedFetcher(models.PlanSnapshot{})
	scheduler := new(MockScheduler)

	m := metrics.New(prometheus.NewRegistry())
	s := New(sites, fetcher, scheduler, staticFlags{}, nil, m, newNoopLogger())
	s.Start(context.Background())
	sites.Set(wpcomSite(1))

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, planstate.Failed, s.State().Kind)
	assert.Equal(t, 0, sites.Subscribers())

	sites.Set(wpcomSite(2))
	assert.Equal(t, []int64{1}, fetcher.Calls())
}

func TestService_OutcomeHookReceivesAppliedResults(t *testing.T) {
	sites := observable.New[*models.Site](nil)
	fetcher := new(MockFetcher)
	scheduler := new(MockScheduler)
	fetcher.On("LoadCurrentPlan", mock.Anything, int64(4)).Return(models.PlanSnapshot{}, models.ErrNoCurrentPlan)

	var (
		mu        sync.Mutex
		hookSites []int64
		kinds     []planstate.Kind
	)
	m := metrics.New(prometheus.NewRegistry())
	s := New(sites, fetcher, scheduler, staticFlags{}, nil, m, newNoopLogger(),
		WithOutcomeHook(func(site models.Site, st planstate.State) {
			mu.Lock()
			defer mu.Unlock()
			hookSites = append(hookSites, site.ID)
			kinds = append(kinds, st.Kind)
		}))
	t.Cleanup(s.Close)

	s.Start(context.Background())
	sites.Set(wpcomSite(4))
	s.WaitIdle()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{4}, hookSites)
	assert.Equal(t, []planstate.Kind{planstate.Expired}, kinds)
}
