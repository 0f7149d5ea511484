package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はアクセストークンが検証に失敗したことを表す。
var ErrInvalidToken = errors.New("トークンが無効です")

// JWTClaims はアクセストークンのクレーム（ペイロード）を表す。
// subjectにユーザーIDを持つ。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role はユーザーのロール（USER / ADMIN）。
	Role string `json:"role"`
}

// TokenIssuer はHS256でアクセストークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	// now はテストで時刻を固定するために差し替える。
	now func() time.Time
}

// NewTokenIssuer は署名鍵・発行者・有効期間を指定してTokenIssuerを生成する。
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTLSeconds はトークンの有効期間を秒で返す。
func (i *TokenIssuer) TTLSeconds() int64 {
	return int64(i.ttl / time.Second)
}

// Issue はユーザー情報からアクセストークンを生成する。
func (i *TokenIssuer) Issue(userID, email, role string) (string, error) {
	now := i.now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: email,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証してクレームを返す。
func (i *TokenIssuer) Parse(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractBearer はAuthorizationヘッダーからトークン部分を取り出す。
// "Bearer " 接頭辞は大文字小文字を区別せず、重なっていても全て取り除く。
// 接頭辞のない生のトークンもそのまま受け付ける。
func ExtractBearer(header string) string {
	token := strings.TrimSpace(header)
	for len(token) >= 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	// 末尾の空白を除いた接頭辞だけが残った場合はトークンなし
	if strings.EqualFold(token, "Bearer") {
		return ""
	}
	return token
}

// contextKeyClaims はGinコンテキストにクレームを格納するキー。
const contextKeyClaims = "jwt_claims"

// BearerAuth はアクセストークンを検証するGinミドルウェアを返す。
// 検証に失敗した場合はunauthorizedが返す値を401として返す。
func BearerAuth(issuer *TokenIssuer, unauthorized func(reason string) any) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractBearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized("Authorizationヘッダーが必要です"))
			return
		}

		claims, err := issuer.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, unauthorized("トークンが無効です"))
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims はGinコンテキストから検証済みクレームを取得する。
// BearerAuthミドルウェアが事前に適用されている必要がある。
func GetClaims(c *gin.Context) *JWTClaims {
	v, ok := c.Get(contextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*JWTClaims)
	return claims
}
