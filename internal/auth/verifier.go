// Package auth は外部IdPが発行したセッショントークンを検証し、呼び出し元の識別子を解決する。
//
// トークンの発行は外部IdPの責務で、このパッケージは検証のみを行う。
// 共有シークレット（HS256）か公開鍵（RS256）のいずれかで署名を検証し、
// subクレームを呼び出し元の外部認証IDとして返す。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoKey は検証鍵が設定されていない場合のエラー。
	ErrNoKey = errors.New("auth: neither secret nor public key configured")
	// ErrNoSubject はトークンにsubクレームが無い場合のエラー。
	ErrNoSubject = errors.New("auth: token has no subject")
)

// Config はトークン検証の設定。
// PublicKeyPEMが指定された場合はRS256、そうでなければSecretによるHS256で検証する。
// Issuer、Audienceは空なら検証しない。
type Config struct {
	Secret       string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

// Verifier はセッショントークンの検証器。並行利用して安全。
type Verifier struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

// NewVerifier は設定からVerifierを生成する。
func NewVerifier(cfg Config) (*Verifier, error) {
	var (
		alg string
		key any
	)
	switch {
	case cfg.PublicKeyPEM != "":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse auth public key: %w", err)
		}
		alg, key = jwt.SigningMethodRS256.Alg(), pub
	case cfg.Secret != "":
		alg, key = jwt.SigningMethodHS256.Alg(), []byte(cfg.Secret)
	default:
		return nil, ErrNoKey
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		parser: jwt.NewParser(opts...),
		keyFunc: func(*jwt.Token) (any, error) {
			return key, nil
		},
	}, nil
}

// Verify はトークンを検証し、subクレーム（呼び出し元の外部認証ID）を返す。
func (v *Verifier) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := v.parser.ParseWithClaims(tokenString, &claims, v.keyFunc)
	if err != nil {
		return "", fmt.Errorf("parse token failed: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
