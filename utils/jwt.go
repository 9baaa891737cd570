package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"timecapsule/config"
	"timecapsule/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateTokens issues an access/refresh token pair and persists the
// refresh token's session row.
func GenerateTokens(db *gorm.DB, user *models.User, userAgent, ip string) (string, string, error) {
	session := models.Session{
		ID:        NewID(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(refreshTokenTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	}

	accessClaims := &Claims{
		UserID:    user.ID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(config.AppConfig.JWTSecret))
	if err != nil {
		return "", "", err
	}

	refreshClaims := &Claims{
		UserID:    user.ID,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(config.AppConfig.JWTSecret))
	if err != nil {
		return "", "", err
	}

	session.Token = HashToken(refreshToken)
	if err := db.Create(&session).Error; err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// RefreshTokens rotates a refresh token: the old session is revoked and
// a new pair is issued.
func RefreshTokens(db *gorm.DB, refreshToken, userAgent, ip string) (string, string, error) {
	claims, err := ParseToken(refreshToken)
	if err != nil {
		return "", "", err
	}

	var session models.Session
	if err := db.Where("token = ?", HashToken(refreshToken)).First(&session).Error; err != nil {
		return "", "", errors.New("session not found")
	}
	if !session.IsValid() {
		return "", "", errors.New("session expired or revoked")
	}

	var user models.User
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		return "", "", errors.New("user not found")
	}

	now := time.Now()
	if err := db.Model(&session).Update("revoked_at", &now).Error; err != nil {
		return "", "", err
	}

	return GenerateTokens(db, &user, userAgent, ip)
}

// HashToken returns the hex sha256 of a token; only hashes hit the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
