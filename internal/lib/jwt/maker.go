// Package jwt выпускает и проверяет JWT токены доступа к API синхронизатора.
package jwt

import (
	"time"
)

const (
	// RoleSiteAdmin — роль, которой разрешено управлять текущим сайтом и планом.
	RoleSiteAdmin = "site_admin"
	// RoleAdmin — роль для административных маршрутов: сайты, планы и фича-флаги.
	RoleAdmin = "admin"
)

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateToken(username, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены HS256 секретным ключом.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
