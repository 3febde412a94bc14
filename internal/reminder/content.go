package reminder

import (
	"fmt"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// Ключи полезной нагрузки напоминания.
const (
	PayloadSiteID     = "site_id"
	PayloadSiteName   = "site_name"
	PayloadPlanName   = "plan_name"
	PayloadOwnerEmail = "owner_email"
)

// Content — текст уведомления.
type Content struct {
	Title string
	Body  string
}

// ContentFor возвращает текст уведомления сценария.
func ContentFor(scenario models.Scenario, payload map[string]string) Content {
	store := payload[PayloadSiteName]
	if store == "" {
		store = "your store"
	}

	switch scenario {
	case SixHoursAfterFreeTrialSubscribed:
		return Content{
			Title: "Ready to grow " + store + "?",
			Body:  "Upgrade now to keep every feature you are trying during the free trial.",
		}
	case OneDayAfterFreeTrialSubscribed:
		return Content{
			Title: "How is your free trial going?",
			Body:  fmt.Sprintf("You have been building %s for a day. Pick a plan whenever you are ready.", store),
		}
	case FreeTrialSurvey24hAfterFreeTrialSubscribed:
		return Content{
			Title: "Tell us about your trial",
			Body:  fmt.Sprintf("Share how %s is going so far. It takes less than a minute.", store),
		}
	case OneDayBeforeFreeTrialExpires:
		return Content{
			Title: "Your free trial ends tomorrow",
			Body:  fmt.Sprintf("Upgrade %s today to avoid losing access to your store.", store),
		}
	case OneDayAfterFreeTrialExpires:
		return Content{
			Title: "Your free trial has ended",
			Body:  fmt.Sprintf("Upgrade to reactivate %s and pick up where you left off.", store),
		}
	default:
		return Content{Title: "Update about " + store}
	}
}
