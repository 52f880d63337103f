package commands

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/auth"
	"github.com/wolfeidau/mailroster/internal/catalog"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/server"
	"github.com/wolfeidau/mailroster/internal/store/memory"
)

type testServer struct {
	url       string
	companyID string
	alice     string
	bob       string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	resolver, err := catalog.NewStaticResolver(catalog.Catalog{
		Platforms: []models.Platform{{ID: "workspace", Name: "Workspace", AllowsReassignment: true}},
		Types:     []models.AccountType{{ID: "corporate", Name: "Corporate"}},
		Protocols: []models.Protocol{{ID: "imap", Name: "IMAP"}},
	})
	require.NoError(t, err)

	companyID := uuid.Must(uuid.NewV7())
	alice := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: companyID, Name: "Alice", Active: true}
	bob := &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: companyID, Name: "Bob", Active: true}
	engine := lifecycle.NewEngine(memory.NewStore(), memory.NewUserDirectory(alice, bob), resolver)

	srv := httptest.NewServer(server.NewServer(engine, false).Handler(zerolog.Nop()))
	t.Cleanup(srv.Close)

	return &testServer{
		url:       srv.URL,
		companyID: companyID.String(),
		alice:     alice.UserID.String(),
		bob:       bob.UserID.String(),
	}
}

func (s *testServer) globals(out *bytes.Buffer, asJSON bool) *Globals {
	return &Globals{Server: s.url, Timeout: 5 * time.Second, MaxRetries: 2, JSON: asJSON, out: out}
}

func TestAccountCommands(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	var out bytes.Buffer
	add := &AddAccountCmd{
		User:        srv.alice,
		Company:     srv.companyID,
		Address:     "alice@co.com",
		Principal:   true,
		Provenance:  "test",
		ConfigFlags: ConfigFlags{Platform: "workspace", Type: "corporate", Protocol: "imap", Login: "alice", Secret: "hunter2"},
	}
	require.NoError(t, add.Run(ctx, srv.globals(&out, true)))

	var added []*accountv1.Account
	require.NoError(t, json.Unmarshal(out.Bytes(), &added))
	require.Len(t, added, 1)
	account := added[0]
	require.Equal(t, "alice@co.com", account.Address)
	require.True(t, account.IsPrincipal)
	require.Equal(t, &accountv1.CredentialsInfo{Login: "alice", HasSecret: true}, account.Credentials)

	out.Reset()
	list := &ListAccountsCmd{User: srv.alice}
	require.NoError(t, list.Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "ACCOUNT ID")
	require.Contains(t, out.String(), "alice@co.com")
	require.Contains(t, out.String(), account.AccountID)

	out.Reset()
	deactivate := &DeactivateCmd{AccountID: account.AccountID, ActingUser: srv.alice, Reason: "user left", Provenance: "test"}
	require.NoError(t, deactivate.Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "inactive")

	out.Reset()
	require.NoError(t, (&TargetsCmd{AccountID: account.AccountID}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), srv.bob)
	require.Contains(t, out.String(), "Bob")

	out.Reset()
	reassign := &ReassignCmd{
		AccountID:   account.AccountID,
		To:          srv.bob,
		ActingUser:  srv.alice,
		Reason:      "role change",
		KeepAddress: true,
		Provenance:  "test",
	}
	require.NoError(t, reassign.Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "Correlation: ")

	out.Reset()
	require.NoError(t, (&ListAccountsCmd{User: srv.bob}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "alice@co.com")

	out.Reset()
	history := &ShowHistoryCmd{AccountID: account.AccountID}
	require.NoError(t, history.Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "reassignment_out")
	require.Contains(t, out.String(), "reassignment_in")
	require.Contains(t, out.String(), "to Bob")

	archive := filepath.Join(t.TempDir(), "history.zst")
	out.Reset()
	require.NoError(t, (&ExportHistoryCmd{AccountID: account.AccountID, Output: archive}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "Exported ")

	out.Reset()
	require.NoError(t, (&VerifyHistoryCmd{Archive: archive}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "Archive OK")
	require.Contains(t, out.String(), account.AccountID)
}

func TestPrincipalCommands(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, (&GetPrincipalCmd{User: srv.bob}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "has no principal account")

	out.Reset()
	configure := &ConfigurePrincipalCmd{
		User:        srv.bob,
		Company:     srv.companyID,
		Address:     "bob@co.com",
		ConfigFlags: ConfigFlags{Platform: "workspace", Type: "corporate", Protocol: "imap"},
	}
	require.NoError(t, configure.Run(ctx, srv.globals(&out, false)))

	out.Reset()
	require.NoError(t, (&GetPrincipalCmd{User: srv.bob}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "bob@co.com")
	require.Contains(t, out.String(), "yes")
}

func TestSeedAndDiscard(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	var out bytes.Buffer
	seed := &SeedCmd{User: srv.alice, Company: srv.companyID, Address: "pending@co.com"}
	require.NoError(t, seed.Run(ctx, srv.globals(&out, true)))

	var seeded []*accountv1.Account
	require.NoError(t, json.Unmarshal(out.Bytes(), &seeded))
	require.Len(t, seeded, 1)
	require.Equal(t, "pending", seeded[0].State)

	out.Reset()
	require.NoError(t, (&DiscardCmd{AccountID: seeded[0].AccountID}).Run(ctx, srv.globals(&out, false)))
	require.Contains(t, out.String(), "Discarded "+seeded[0].AccountID)
}

func TestCommandErrorIncludesLifecycleCode(t *testing.T) {
	srv := newTestServer(t)

	var out bytes.Buffer
	err := (&GetAccountCmd{AccountID: uuid.Must(uuid.NewV7()).String(), Viewer: srv.alice}).Run(context.Background(), srv.globals(&out, false))
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to get account")
}

func TestTokenCommand(t *testing.T) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	userID := uuid.Must(uuid.NewV7())
	companyID := uuid.Must(uuid.NewV7())
	cmd := &TokenCmd{
		User:       userID.String(),
		Company:    companyID.String(),
		Name:       "Olive Operator",
		Roles:      []string{"operator"},
		TTL:        time.Minute,
		SigningKey: string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})),
	}

	var out bytes.Buffer
	require.NoError(t, cmd.Run(context.Background(), &Globals{out: &out}))

	verifier, err := auth.NewJWTVerifier(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})))
	require.NoError(t, err)

	principal, err := verifier.Verify(string(bytes.TrimSpace(out.Bytes())))
	require.NoError(t, err)
	require.Equal(t, userID, principal.UserID)
	require.Equal(t, companyID, principal.CompanyID)
	require.Equal(t, "Olive Operator", principal.Name)
	require.Equal(t, []auth.Role{auth.RoleOperator}, principal.Roles)

	cmd.Roles = []string{"superuser"}
	require.ErrorContains(t, cmd.Run(context.Background(), &Globals{out: &out}), `unknown role "superuser"`)
}
