package wpcom

import "time"

// CurrentPlanResponse — ответ GET /sites/{id}/plans/current.
type CurrentPlanResponse struct {
	PlanID         string     `json:"plan_id"`
	ProductSlug    string     `json:"product_slug"`
	SubscribedDate *time.Time `json:"subscribed_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

const errorNoCurrentPlan = "no_current_plan"
