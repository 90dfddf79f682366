package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload issued by the account subsystem.
type Claims struct {
	Role      string `json:"role"`
	DoctorID  string `json:"doctor_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	jwt.RegisteredClaims
}

// Middleware enforces an HMAC-signed JWT and installs the resulting
// Principal into the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				http.Error(w, "auth disabled", http.StatusUnauthorized)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := Claims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			principal, err := claims.Principal()
			if err != nil {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// Principal converts validated claims into a Principal.
func (c Claims) Principal() (Principal, error) {
	role := Role(c.Role)
	if !role.Valid() {
		return Principal{}, jwt.ErrTokenInvalidClaims
	}
	p := Principal{Subject: c.Subject, Role: role}
	if c.DoctorID != "" {
		id, err := uuid.Parse(c.DoctorID)
		if err != nil {
			return Principal{}, jwt.ErrTokenInvalidClaims
		}
		p.DoctorID = id
	}
	if c.PatientID != "" {
		id, err := uuid.Parse(c.PatientID)
		if err != nil {
			return Principal{}, jwt.ErrTokenInvalidClaims
		}
		p.PatientID = id
	}
	return p, nil
}

// MintToken signs a token for the principal. Used by tests and tooling;
// production tokens come from the account subsystem.
func MintToken(secret string, p Principal, ttl time.Duration) (string, error) {
	claims := Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	if p.DoctorID != uuid.Nil {
		claims.DoctorID = p.DoctorID.String()
	}
	if p.PatientID != uuid.Nil {
		claims.PatientID = p.PatientID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
