// Package reminder содержит политику планирования локальных напоминаний
// о пробном периоде: по снимку плана и текущему времени решает, какие
// напоминания запланировать, а какие отменить.
package reminder

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

const (
	SixHoursAfterFreeTrialSubscribed           models.Scenario = "six_hours_after_free_trial_subscribed"
	OneDayAfterFreeTrialSubscribed             models.Scenario = "one_day_after_free_trial_subscribed"
	FreeTrialSurvey24hAfterFreeTrialSubscribed models.Scenario = "free_trial_survey_24h_after_free_trial_subscribed"
	OneDayBeforeFreeTrialExpires               models.Scenario = "one_day_before_free_trial_expires"
	OneDayAfterFreeTrialExpires                models.Scenario = "one_day_after_free_trial_expires"
)

// Scenarios перечисляет все известные сценарии в фиксированном порядке.
var Scenarios = []models.Scenario{
	OneDayBeforeFreeTrialExpires,
	OneDayAfterFreeTrialExpires,
	SixHoursAfterFreeTrialSubscribed,
	OneDayAfterFreeTrialSubscribed,
	FreeTrialSurvey24hAfterFreeTrialSubscribed,
}

// Tag возвращает тег напоминания сценария для сайта.
func Tag(scenario models.Scenario, siteID int64) models.ScenarioTag {
	return models.ScenarioTag(string(scenario) + "_" + strconv.FormatInt(siteID, 10))
}

// AllTags возвращает теги всех сценариев сайта.
func AllTags(siteID int64) []models.ScenarioTag {
	tags := make([]models.ScenarioTag, 0, len(Scenarios))
	for _, s := range Scenarios {
		tags = append(tags, Tag(s, siteID))
	}
	return tags
}

// Parse разбирает тег на сценарий и ID сайта.
func Parse(tag models.ScenarioTag) (models.Scenario, int64, error) {
	const op = "reminder.Parse"
	raw := string(tag)
	idx := strings.LastIndex(raw, "_")
	if idx <= 0 || idx == len(raw)-1 {
		return "", 0, fmt.Errorf("%s: malformed tag %q", op, raw)
	}
	scenario := models.Scenario(raw[:idx])
	if !Known(scenario) {
		return "", 0, fmt.Errorf("%s: unknown scenario %q", op, scenario)
	}
	siteID, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	return scenario, siteID, nil
}

// Known сообщает, известен ли сценарий.
func Known(scenario models.Scenario) bool {
	return slices.Contains(Scenarios, scenario)
}
