package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
)

func generateECKeyPair() (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return privateKey, &privateKey.PublicKey, nil
}

func createSignedToken(t *testing.T, privateKey *ecdsa.PrivateKey, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenStr, err := token.SignedString(privateKey)
	require.NoError(t, err)
	return tokenStr
}

func generatePublicKeyPEM(t *testing.T, publicKey *ecdsa.PublicKey) string {
	t.Helper()
	publicKeyDER, err := x509.MarshalPKIXPublicKey(publicKey)
	require.NoError(t, err)

	publicKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicKeyDER,
	})
	require.NotNil(t, publicKeyPEM)
	return string(publicKeyPEM)
}

func generatePrivateKeyPEM(t *testing.T, privateKey *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func validClaims(subject uuid.UUID) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Name:  "Helpdesk Harriet",
		Roles: []string{"operator"},
	}
}

func TestNewJWTVerifier(t *testing.T) {
	t.Run("empty public key", func(t *testing.T) {
		v, err := NewJWTVerifier("")
		require.Error(t, err)
		require.Nil(t, v)
		require.Equal(t, "JWT public key not provided", err.Error())
	})

	t.Run("invalid PEM", func(t *testing.T) {
		v, err := NewJWTVerifier("invalid pem")
		require.Error(t, err)
		require.Nil(t, v)
	})

	t.Run("valid public key PEM", func(t *testing.T) {
		_, publicKey, err := generateECKeyPair()
		require.NoError(t, err)

		v, err := NewJWTVerifier(generatePublicKeyPEM(t, publicKey))
		require.NoError(t, err)
		require.NotNil(t, v)
	})
}

func TestJWTVerifierVerify(t *testing.T) {
	privateKey, publicKey, err := generateECKeyPair()
	require.NoError(t, err)

	v, err := NewJWTVerifier(generatePublicKeyPEM(t, publicKey))
	require.NoError(t, err)

	userID := uuid.Must(uuid.NewV7())
	companyID := uuid.Must(uuid.NewV7())

	t.Run("valid token", func(t *testing.T) {
		claims := validClaims(userID)
		claims.Company = companyID.String()

		principal, err := v.Verify(createSignedToken(t, privateKey, claims))
		require.NoError(t, err)
		require.Equal(t, userID, principal.UserID)
		require.Equal(t, companyID, principal.CompanyID)
		require.Equal(t, "Helpdesk Harriet", principal.Name)
		require.Equal(t, []Role{RoleOperator}, principal.Roles)
	})

	tests := []struct {
		name   string
		mutate func(c *Claims)
	}{
		{name: "expired token", mutate: func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour)) }},
		{name: "token without expiry", mutate: func(c *Claims) { c.ExpiresAt = nil }},
		{name: "wrong issuer", mutate: func(c *Claims) { c.Issuer = "someone-else" }},
		{name: "subject not a uuid", mutate: func(c *Claims) { c.Subject = "user123" }},
		{name: "company not a uuid", mutate: func(c *Claims) { c.Company = "acme" }},
		{name: "missing roles", mutate: func(c *Claims) { c.Roles = nil }},
		{name: "unknown role", mutate: func(c *Claims) { c.Roles = []string{"root"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims(userID)
			tt.mutate(claims)

			principal, err := v.Verify(createSignedToken(t, privateKey, claims))
			require.Error(t, err)
			require.Nil(t, principal)
		})
	}

	t.Run("token signed with wrong algorithm", func(t *testing.T) {
		// Sign with HS256 instead of ES256
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(userID))
		tokenStr, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		principal, err := v.Verify(tokenStr)
		require.Error(t, err)
		require.Nil(t, principal)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		otherKey, _, err := generateECKeyPair()
		require.NoError(t, err)

		principal, err := v.Verify(createSignedToken(t, otherKey, validClaims(userID)))
		require.Error(t, err)
		require.Nil(t, principal)
	})

	t.Run("malformed token", func(t *testing.T) {
		principal, err := v.Verify("invalid.token.string")
		require.Error(t, err)
		require.Nil(t, principal)
	})
}

func TestJWTVerifierMiddleware(t *testing.T) {
	privateKey, publicKey, err := generateECKeyPair()
	require.NoError(t, err)

	v, err := NewJWTVerifier(generatePublicKeyPEM(t, publicKey))
	require.NoError(t, err)

	userID := uuid.Must(uuid.NewV7())

	var (
		gotPrincipal *Principal
		gotActor     lifecycle.Actor
		gotActorOK   bool
	)
	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPrincipal = PrincipalFromContext(r.Context())
		gotActor, gotActorOK = lifecycle.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("health check endpoint", func(t *testing.T) {
		gotPrincipal = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Nil(t, gotPrincipal)
	})

	t.Run("missing bearer token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/test", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token sets principal and actor", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", createSignedToken(t, privateKey, validClaims(userID))))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotPrincipal)
		require.Equal(t, userID, gotPrincipal.UserID)
		require.True(t, gotActorOK)
		require.Equal(t, lifecycle.Actor{ID: userID, Name: "Helpdesk Harriet"}, gotActor)
	})
}

func TestIssueToken(t *testing.T) {
	privateKey, publicKey, err := generateECKeyPair()
	require.NoError(t, err)

	v, err := NewJWTVerifier(generatePublicKeyPEM(t, publicKey))
	require.NoError(t, err)

	want := Principal{
		UserID:    uuid.Must(uuid.NewV7()),
		CompanyID: uuid.Must(uuid.NewV7()),
		Name:      "Helpdesk Harriet",
		Roles:     []Role{RoleAdmin, RoleViewer},
	}

	token, err := IssueToken(generatePrivateKeyPEM(t, privateKey), want, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, want, *got)

	_, err = IssueToken("not a key", want, time.Hour)
	require.Error(t, err)
}
