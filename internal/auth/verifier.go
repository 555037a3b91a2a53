// Package auth 将 Bearer token 映射为用户身份
package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken token 无法验证
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity 验证通过后的调用方身份
type Identity struct {
	OwnerID string
	Email   string
}

// Verifier 验证 token 并返回身份
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWTVerifier 校验 RS256 签名的 JWT，sub 作为 owner id
type JWTVerifier struct {
	key    *rsa.PublicKey
	issuer string
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTVerifier 从 PEM 编码的公钥创建校验器。issuer 为空时不校验 iss。
func NewJWTVerifier(publicKeyPEM []byte, issuer string) (*JWTVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("解析JWT公钥失败: %w", err)
	}
	return &JWTVerifier{key: key, issuer: issuer}, nil
}

// NewJWTVerifierFromFile 从文件读取公钥
func NewJWTVerifierFromFile(path, issuer string) (*JWTVerifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取JWT公钥文件失败: %w", err)
	}
	return NewJWTVerifier(data, issuer)
}

// Verify 实现 Verifier
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	c := &claims{}
	_, err := jwt.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return Identity{OwnerID: c.Subject, Email: c.Email}, nil
}

// StaticVerifier 固定的 token -> owner 映射，用于开发和测试
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier 创建静态校验器
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	copied := make(map[string]string, len(tokens))
	for token, owner := range tokens {
		if token != "" && owner != "" {
			copied[token] = owner
		}
	}
	return &StaticVerifier{tokens: copied}
}

// Verify 实现 Verifier
func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	owner, ok := v.tokens[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return Identity{OwnerID: owner}, nil
}

// ChainVerifier 依次尝试每个校验器，第一个成功的结果生效
type ChainVerifier []Verifier

// Verify 实现 Verifier
func (c ChainVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	for _, v := range c {
		if id, err := v.Verify(ctx, token); err == nil {
			return id, nil
		}
	}
	return Identity{}, ErrInvalidToken
}
