// Package models содержит доменные структуры сервиса: магазин (сайт),
// снимок тарифного плана и локальные напоминания, которые планируются
// по данным плана.
package models

// Site описывает активный магазин пользователя.
// Отсутствие магазина (пользователь вышел) передаётся как nil *Site.
type Site struct {
	ID                  int64  `json:"site_id"`
	Name                string `json:"name"`
	URL                 string `json:"url"`
	OwnerEmail          string `json:"owner_email"`
	IsWordPressComStore bool   `json:"is_wpcom"` // Сайт обслуживается WPCom и поддерживает API тарифов
}
