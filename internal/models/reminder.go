package models

import "time"

// Scenario — категория локального напоминания.
type Scenario string

// ScenarioTag — уникальный в рамках сайта идентификатор напоминания: префикс сценария + ID сайта.
// Повторное планирование с тем же тегом заменяет напоминание.
type ScenarioTag string

// Reminder — одно напоминание, которое нужно запланировать.
type Reminder struct {
	Tag       ScenarioTag       `json:"tag"`
	Scenario  Scenario          `json:"scenario"`
	SiteID    int64             `json:"site_id"`
	TriggerAt time.Time         `json:"trigger_at"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// ReminderMessage публикуется в RabbitMQ, когда напоминание наступило.
type ReminderMessage struct {
	MessageID    string            `json:"message_id"`
	Tag          ScenarioTag       `json:"tag"`
	Scenario     Scenario          `json:"scenario"`
	SiteID       int64             `json:"site_id"`
	TriggerAt    time.Time         `json:"trigger_at"`
	DispatchedAt time.Time         `json:"dispatched_at"`
	Payload      map[string]string `json:"payload,omitempty"`
}
