package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is the authenticated identity attached upstream of every
// owner-scoped route.
type Principal struct {
	ID   string
	Role string
}

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Role   string `json:"role"`
}

type principalCtxKeyType string

const (
	cookieName                          = "shortener_token"
	tokenExp                            = 3 * time.Hour
	defaultRole                         = "user"
	principalCtxKey principalCtxKeyType = "principal"
)

type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) newClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExp)),
		},
		UserID: uuid.New().String(),
		Role:   defaultRole,
	}
}

func (a *Auth) writeToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) parseToken(claims *Claims, tokenString string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
}

func (a *Auth) setCookie(w http.ResponseWriter, claims *Claims) {
	token, err := a.writeToken(claims)
	if err != nil {
		http.Error(w, "Could not create token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(tokenExp),
	})
}

func withPrincipal(r *http.Request, p Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), principalCtxKey, p))
}

// Middleware attaches a Principal to every request, issuing a fresh
// identity cookie when none is presented or the token fails to parse.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := a.newClaims()
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			a.setCookie(w, claims)
		} else {
			token, err := a.parseToken(claims, cookie.Value)
			if err != nil || !token.Valid {
				claims = a.newClaims()
				a.setCookie(w, claims)
			} else if claims.UserID == "" {
				http.Error(w, "No user ID in token", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, withPrincipal(r, Principal{ID: claims.UserID, Role: claims.Role}))
	})
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey).(Principal)
	return p, ok
}

// WithPrincipal injects a principal directly, for tests and internal calls.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}
