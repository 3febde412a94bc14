// Package metrics содержит prometheus-метрики сервиса синхронизации тарифов.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты загрузки плана.
const (
	FetchLoaded  = "loaded"
	FetchExpired = "expired"
	FetchFailed  = "failed"
	FetchStale   = "stale"
)

var planStates = []string{"not_loaded", "loading", "loaded", "failed", "expired", "unavailable"}

// Metrics содержит набор метрик сервиса.
type Metrics struct {
	PlanFetches         *prometheus.CounterVec
	PlanState           *prometheus.GaugeVec
	RemindersScheduled  prometheus.Counter
	RemindersCancelled  prometheus.Counter
	ReminderErrors      *prometheus.CounterVec
	RemindersDispatched prometheus.Counter
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PlanFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storeplan",
			Name:      "plan_fetches_total",
			Help:      "Plan fetches by result.",
		}, []string{"result"}),
		PlanState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "storeplan",
			Name:      "plan_state",
			Help:      "Current plan state, 1 for the active state.",
		}, []string{"state"}),
		RemindersScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "storeplan",
			Name:      "reminders_scheduled_total",
			Help:      "Reminders handed to the notification scheduler.",
		}),
		RemindersCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "storeplan",
			Name:      "reminders_cancelled_total",
			Help:      "Reminder cancellations handed to the notification scheduler.",
		}),
		ReminderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storeplan",
			Name:      "reminder_errors_total",
			Help:      "Failed reminder operations by operation.",
		}, []string{"op"}),
		RemindersDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: "storeplan",
			Name:      "reminders_dispatched_total",
			Help:      "Due reminders published to the broker.",
		}),
	}
}

// SetPlanState выставляет 1 для текущего состояния и 0 для остальных.
func (m *Metrics) SetPlanState(state string) {
	for _, s := range planStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.PlanState.WithLabelValues(s).Set(v)
	}
}
