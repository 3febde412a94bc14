package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

const sampleSiteID int64 = 123

var (
	now  = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	site = models.Site{ID: sampleSiteID, Name: "Shop", OwnerEmail: "owner@example.com", IsWordPressComStore: true}
)

func trialPlan(subscribedAgo time.Duration) models.PlanSnapshot {
	subscribed := now.Add(-subscribedAgo)
	expiry := subscribed.AddDate(0, 0, 14)
	return models.PlanSnapshot{
		ID:             models.FreeTrialPlanID,
		Name:           models.FreeTrialPlanSlug,
		IsFreeTrial:    true,
		SubscribedDate: &subscribed,
		ExpiryDate:     &expiry,
	}
}

func tags(reminders []models.Reminder) []models.ScenarioTag {
	res := make([]models.ScenarioTag, 0, len(reminders))
	for _, r := range reminders {
		res = append(res, r.Tag)
	}
	return res
}

func TestCompute_NonTrialCancelsEveryScenario(t *testing.T) {
	res := Compute(models.PlanSnapshot{ID: "1021", Name: "business"}, site, now, Flags{})

	assert.Empty(t, res.ToSchedule)
	assert.Len(t, res.ToCancel, 5)
	assert.ElementsMatch(t, []models.ScenarioTag{
		"six_hours_after_free_trial_subscribed_123",
		"one_day_after_free_trial_subscribed_123",
		"free_trial_survey_24h_after_free_trial_subscribed_123",
		"one_day_before_free_trial_expires_123",
		"one_day_after_free_trial_expires_123",
	}, res.ToCancel)
}

func TestCompute_TrialSubscribedThreeHoursAgo(t *testing.T) {
	plan := trialPlan(3 * time.Hour)

	res := Compute(plan, site, now, Flags{})

	require.Len(t, res.ToSchedule, 2)
	assert.Empty(t, res.ToCancel)

	six, day := res.ToSchedule[0], res.ToSchedule[1]
	assert.Equal(t, Tag(SixHoursAfterFreeTrialSubscribed, sampleSiteID), six.Tag)
	assert.Equal(t, plan.SubscribedDate.Add(6*time.Hour), six.TriggerAt)
	assert.Equal(t, Tag(OneDayAfterFreeTrialSubscribed, sampleSiteID), day.Tag)
	assert.Equal(t, plan.SubscribedDate.Add(24*time.Hour), day.TriggerAt)
	assert.Equal(t, "123", six.Payload[PayloadSiteID])
	assert.Equal(t, "owner@example.com", day.Payload[PayloadOwnerEmail])
}

func TestCompute_SurveyFlagSwapsTheDayReminder(t *testing.T) {
	res := Compute(trialPlan(3*time.Hour), site, now, Flags{FreeTrialSurvey24h: true})

	assert.Equal(t, []models.ScenarioTag{
		Tag(SixHoursAfterFreeTrialSubscribed, sampleSiteID),
		Tag(FreeTrialSurvey24hAfterFreeTrialSubscribed, sampleSiteID),
	}, tags(res.ToSchedule))
}

func TestCompute_Windows(t *testing.T) {
	tests := []struct {
		name string
		ago  time.Duration
		want []models.ScenarioTag
	}{
		{
			name: "just subscribed",
			ago:  0,
			want: []models.ScenarioTag{Tag(SixHoursAfterFreeTrialSubscribed, sampleSiteID), Tag(OneDayAfterFreeTrialSubscribed, sampleSiteID)},
		},
		{
			name: "ten hours ago skips six hour reminder",
			ago:  10 * time.Hour,
			want: []models.ScenarioTag{Tag(OneDayAfterFreeTrialSubscribed, sampleSiteID)},
		},
		{
			name: "exactly six hours ago",
			ago:  6 * time.Hour,
			want: []models.ScenarioTag{Tag(OneDayAfterFreeTrialSubscribed, sampleSiteID)},
		},
		{
			name: "more than a day ago",
			ago:  24*time.Hour + time.Second,
			want: []models.ScenarioTag{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(trialPlan(tt.ago), site, now, Flags{})

			assert.Equal(t, tt.want, tags(res.ToSchedule))
			assert.Empty(t, res.ToCancel, "elapsed windows are not cancelled")
		})
	}
}

func TestCompute_TrialWithoutSubscribedDate(t *testing.T) {
	res := Compute(models.PlanSnapshot{ID: models.FreeTrialPlanID, IsFreeTrial: true}, site, now, Flags{})

	assert.Empty(t, res.ToSchedule)
	assert.Empty(t, res.ToCancel)
}

func TestCompute_IsIdempotent(t *testing.T) {
	plan := trialPlan(2 * time.Hour)

	first := Compute(plan, site, now, Flags{FreeTrialSurvey24h: true})
	second := Compute(plan, site, now, Flags{FreeTrialSurvey24h: true})
	assert.Equal(t, first, second)

	nonTrial := models.PlanSnapshot{ID: "1021"}
	assert.Equal(t, Compute(nonTrial, site, now, Flags{}), Compute(nonTrial, site, now, Flags{}))
}

func TestParse(t *testing.T) {
	scenario, siteID, err := Parse(Tag(OneDayBeforeFreeTrialExpires, 42))
	require.NoError(t, err)
	assert.Equal(t, OneDayBeforeFreeTrialExpires, scenario)
	assert.Equal(t, int64(42), siteID)

	for _, bad := range []models.ScenarioTag{"", "_1", "six_hours_after_free_trial_subscribed_", "unknown_1", "one_day_after_free_trial_expires_x"} {
		_, _, err := Parse(bad)
		assert.Error(t, err, "tag %q", bad)
	}
}

func TestContentFor(t *testing.T) {
	for _, s := range Scenarios {
		c := ContentFor(s, map[string]string{PayloadSiteName: "Shop"})
		assert.NotEmpty(t, c.Title, s)
		assert.NotEmpty(t, c.Body, s)
	}
	assert.Contains(t, ContentFor(SixHoursAfterFreeTrialSubscribed, nil).Title, "your store")
}
