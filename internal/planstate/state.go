// Package planstate реализует конечный автомат состояния тарифного плана
// текущего сайта: notLoaded → loading → {loaded | failed | expired | unavailable}.
package planstate

import "github.com/magabrotheeeer/storeplan-sync/internal/models"

// Kind — вариант состояния плана.
type Kind string

const (
	NotLoaded   Kind = "not_loaded"
	Loading     Kind = "loading"
	Loaded      Kind = "loaded"
	Failed      Kind = "failed"
	Expired     Kind = "expired"
	Unavailable Kind = "unavailable"
)

// State — текущее представление о плане сайта. Plan заполнен только для Loaded.
type State struct {
	Kind Kind                 `json:"state"`
	Plan *models.PlanSnapshot `json:"plan,omitempty"`
}

// Of возвращает состояние без плана.
func Of(kind Kind) State {
	return State{Kind: kind}
}

// LoadedWith возвращает состояние Loaded с копией снимка плана.
func LoadedWith(plan models.PlanSnapshot) State {
	return State{Kind: Loaded, Plan: &plan}
}

// Retryable сообщает, имеет ли смысл предлагать пользователю повторить загрузку.
func (s State) Retryable() bool {
	return s.Kind == Failed
}

func (s State) String() string {
	return string(s.Kind)
}
