package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"certistage/models"
)

const deliveryTokenIssuer = "certistage"

// DeliveryClaims pin a delivery link to one selected recipient
type DeliveryClaims struct {
	EventID     string `json:"eid"`
	TypeID      string `json:"tid"`
	RecipientID string `json:"rid"`
	jwt.RegisteredClaims
}

// DeliveryTokens issues and verifies HS256 delivery tokens
type DeliveryTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDeliveryTokens creates a token codec
func NewDeliveryTokens(secret string, ttl time.Duration) *DeliveryTokens {
	return &DeliveryTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the candidate and returns it with its expiry
func (t *DeliveryTokens) Issue(c Candidate) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := DeliveryClaims{
		EventID:     c.Recipient.EventID,
		TypeID:      c.Type.ID,
		RecipientID: c.Recipient.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    deliveryTokenIssuer,
			Subject:   c.Recipient.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign delivery token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry
func (t *DeliveryTokens) Parse(token string) (*DeliveryClaims, error) {
	if token == "" {
		return nil, models.Invalid("parse delivery token", "token is required")
	}
	claims := &DeliveryClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(deliveryTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.Invalid("parse delivery token", "delivery link has expired, verify again")
		}
		return nil, models.Invalid("parse delivery token", "delivery link is invalid")
	}
	if claims.EventID == "" || claims.TypeID == "" || claims.RecipientID == "" {
		return nil, models.Invalid("parse delivery token", "delivery link is invalid")
	}
	return claims, nil
}
