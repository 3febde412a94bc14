package reminder

import (
	"strconv"
	"time"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

const (
	sixHours   = 6 * time.Hour
	twentyFour = 24 * time.Hour
)

// Flags — значения фича-флагов, влияющих на политику.
type Flags struct {
	// FreeTrialSurvey24h заменяет 24-часовое напоминание опросом.
	FreeTrialSurvey24h bool
}

// Result содержит напоминания, которые нужно запланировать, и теги, которые нужно отменить.
type Result struct {
	ToSchedule []models.Reminder
	ToCancel   []models.ScenarioTag
}

// Compute вычисляет набор напоминаний для снимка плана. Функция чистая:
// одинаковые аргументы дают одинаковый результат.
//
// План без пробного периода отменяет все пять сценариев сайта.
// Для пробного плана с известной датой подписки планируются напоминания,
// окно которых ещё не прошло. Прошедшие окна не планируются и не отменяются.
func Compute(plan models.PlanSnapshot, site models.Site, now time.Time, flags Flags) Result {
	if !plan.IsFreeTrial {
		return Result{ToCancel: AllTags(site.ID)}
	}
	if plan.SubscribedDate == nil {
		return Result{}
	}

	subscribed := *plan.SubscribedDate
	elapsed := now.Sub(subscribed)

	var res Result
	if elapsed < sixHours {
		res.ToSchedule = append(res.ToSchedule, newReminder(SixHoursAfterFreeTrialSubscribed, plan, site, subscribed.Add(sixHours)))
	}
	if elapsed < twentyFour {
		scenario := OneDayAfterFreeTrialSubscribed
		if flags.FreeTrialSurvey24h {
			scenario = FreeTrialSurvey24hAfterFreeTrialSubscribed
		}
		res.ToSchedule = append(res.ToSchedule, newReminder(scenario, plan, site, subscribed.Add(twentyFour)))
	}
	return res
}

func newReminder(scenario models.Scenario, plan models.PlanSnapshot, site models.Site, at time.Time) models.Reminder {
	return models.Reminder{
		Tag:       Tag(scenario, site.ID),
		Scenario:  scenario,
		SiteID:    site.ID,
		TriggerAt: at.UTC(),
		Payload: map[string]string{
			PayloadSiteID:     strconv.FormatInt(site.ID, 10),
			PayloadSiteName:   site.Name,
			PayloadPlanName:   plan.Name,
			PayloadOwnerEmail: site.OwnerEmail,
		},
	}
}

// FlagFreeTrialSurvey24h задаёт имя фича-флага, включающего опрос вместо 24-часового напоминания.
const FlagFreeTrialSurvey24h = "free_trial_survey_24h"
