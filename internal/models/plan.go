package models

import (
	"errors"
	"time"
)

// ErrNoCurrentPlan возвращается источником тарифов, если у WPCom-сайта нет
// активного плана. Это ожидаемое состояние (план истёк), а не сбой.
var ErrNoCurrentPlan = errors.New("no current plan")

const (
	// FreeTrialPlanID — идентификатор тарифа бесплатного пробного периода в WPCom.
	FreeTrialPlanID = "1052"
	// FreeTrialPlanSlug — slug тарифа бесплатного пробного периода.
	FreeTrialPlanSlug = "ecommerce-trial-bundle-monthly"
)

// PlanSnapshot — неизменяемый снимок тарифного плана сайта на момент загрузки.
// Следующая загрузка заменяет снимок целиком.
type PlanSnapshot struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	IsFreeTrial    bool       `json:"is_free_trial"`
	SubscribedDate *time.Time `json:"subscribed_date,omitempty"` // nil, если дата подписки неизвестна
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

// IsFreeTrialPlan сообщает, является ли план с указанными id/slug пробным.
func IsFreeTrialPlan(id, slug string) bool {
	return id == FreeTrialPlanID || slug == FreeTrialPlanSlug
}
