// Package jwt реализует генерацию и парсинг JWT токенов клиентов мобильного приложения.
//
// Maker определяет интерфейс для создания и проверки JWT токенов,
// MakerImpl его реализация с использованием секретного ключа и срока жизни.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims описывает данные клиента, хранящиеся в JWT.
// Идентификатор клиента SDK (app user id) передаётся в поле Subject.
type CustomClaims struct {
	jwt.RegisteredClaims
}

// AppUserID возвращает идентификатор клиента из токена.
func (c *CustomClaims) AppUserID() string {
	return c.Subject
}

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateToken(appUserID string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string        // Секретный ключ для подписи токенов.
	tokenTTL  time.Duration // Время жизни токена.
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
