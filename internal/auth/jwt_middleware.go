package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
)

// Issuer is the iss claim of tokens accepted by the service.
const Issuer = "mailroster"

// Claims are the JWT claims carried by an actor token.
type Claims struct {
	jwt.RegisteredClaims
	Name    string   `json:"name,omitempty"`
	Company string   `json:"company,omitempty"`
	Roles   []string `json:"roles"`
}

// Principal represents an authenticated actor from a JWT.
// This is added to the request context after successful JWT verification.
type Principal struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Roles     []Role
}

type contextKey int

const (
	principalContextKey contextKey = iota
)

// PrincipalFromContext extracts the authenticated principal from the request context.
// Returns nil if no principal is present (unauthenticated request).
func PrincipalFromContext(ctx context.Context) *Principal {
	principal, _ := ctx.Value(principalContextKey).(*Principal)
	return principal
}

// ContextWithPrincipal attaches principal to ctx along with the matching lifecycle actor.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	ctx = context.WithValue(ctx, principalContextKey, principal)
	return lifecycle.ContextWithActor(ctx, lifecycle.Actor{ID: principal.UserID, Name: principal.Name})
}

// JWTVerifier verifies actor tokens signed with the console's ES256 key.
type JWTVerifier struct {
	publicKey *ecdsa.PublicKey
}

// NewJWTVerifier creates a verifier from a PEM encoded ECDSA public key.
func NewJWTVerifier(publicKeyPEM string) (*JWTVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not provided")
	}
	publicKey, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &JWTVerifier{publicKey: publicKey}, nil
}

// Middleware returns an HTTP middleware that verifies JWTs.
// The health endpoint is left open for load balancers.
func (v *JWTVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := extractBearerToken(r)
			if tokenString == "" {
				log.Warn().Msg("Missing Authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			principal, err := v.Verify(tokenString)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to verify JWT")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// Verify checks the token signature, issuer and expiry and returns the principal it names.
func (v *JWTVerifier) Verify(tokenString string) (*Principal, error) {
	claims, err := verifyJWT(tokenString, v.publicKey)
	if err != nil {
		return nil, err
	}

	userID, err := parseUUID(claims.Subject, "sub")
	if err != nil {
		return nil, err
	}

	principal := &Principal{
		UserID: userID,
		Name:   claims.Name,
	}

	if claims.Company != "" {
		principal.CompanyID, err = parseUUID(claims.Company, "company")
		if err != nil {
			return nil, err
		}
	}

	principal.Roles, err = parseRoles(claims.Roles)
	if err != nil {
		return nil, err
	}

	return principal, nil
}

// verifyJWT verifies a JWT signature with the given public key and returns the claims.
func verifyJWT(tokenString string, publicKey *ecdsa.PublicKey) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
	)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// parseUUID parses a UUID valued claim.
func parseUUID(value, key string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("missing or invalid %s claim", key)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s UUID: %w", key, err)
	}

	return id, nil
}

// parseRoles converts the roles claim, rejecting unknown roles.
func parseRoles(values []string) ([]Role, error) {
	if len(values) == 0 {
		return nil, errors.New("missing roles claim")
	}
	roles := make([]Role, 0, len(values))
	for _, v := range values {
		role := Role(v)
		if _, ok := RolePermissions[role]; !ok {
			return nil, fmt.Errorf("invalid roles claim: unknown role %q", v)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// ParsePublicKeyPEM parses a PEM-encoded ECDSA public key.
func ParsePublicKeyPEM(pemStr string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}

	return ecdsaPub, nil
}
