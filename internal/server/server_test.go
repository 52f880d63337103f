package server

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/auth"
	"github.com/wolfeidau/mailroster/internal/catalog"
	httpmiddleware "github.com/wolfeidau/mailroster/internal/http"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
	"github.com/wolfeidau/mailroster/internal/models"
	"github.com/wolfeidau/mailroster/internal/store/memory"
)

type testEnv struct {
	client    accountv1.AccountServiceClient
	url       string
	companyID uuid.UUID
	alice     *models.User
	bob       *models.User
}

func newTestEnv(t *testing.T, wrap func(http.Handler) http.Handler, authorize bool) *testEnv {
	t.Helper()

	resolver, err := catalog.NewStaticResolver(catalog.Catalog{
		Platforms: []models.Platform{{ID: "workspace", Name: "Workspace", AllowsReassignment: true}},
		Types:     []models.AccountType{{ID: "corporate", Name: "Corporate"}},
		Protocols: []models.Protocol{{ID: "imap", Name: "IMAP"}},
	})
	require.NoError(t, err)

	companyID := uuid.Must(uuid.NewV7())
	env := &testEnv{
		companyID: companyID,
		alice:     &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: companyID, Name: "Alice", Active: true},
		bob:       &models.User{UserID: uuid.Must(uuid.NewV7()), CompanyID: companyID, Name: "Bob", Active: true},
	}
	engine := lifecycle.NewEngine(memory.NewStore(), memory.NewUserDirectory(env.alice, env.bob), resolver)

	handler := NewServer(engine, authorize).Handler(zerolog.Nop())
	if wrap != nil {
		handler = wrap(handler)
	}
	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)

	env.url = testServer.URL
	env.client = accountv1.NewAccountServiceClient(http.DefaultClient, testServer.URL)
	return env
}

func workspaceConfig() accountv1.AccountConfig {
	return accountv1.AccountConfig{PlatformID: "workspace", TypeID: "corporate", ProtocolID: "imap"}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, false)

	resp, err := http.Get(env.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestReassignmentWorkflow(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ctx := context.Background()

	cfg := workspaceConfig()
	cfg.Address = "a@co.com"
	cfg.Credentials = &accountv1.Credentials{Login: "alice", Secret: "hunter2"}
	principal, err := env.client.ConfigurePrincipal(ctx, connect.NewRequest(&accountv1.ConfigurePrincipalRequest{
		UserID:    env.alice.UserID.String(),
		CompanyID: env.companyID.String(),
		Config:    cfg,
	}))
	require.NoError(t, err)
	account := principal.Msg.Account
	require.True(t, account.IsPrincipal)
	require.True(t, account.IsCurrentOwner)
	require.Equal(t, "active", account.State)
	require.Equal(t, &accountv1.CredentialsInfo{Login: "alice", HasSecret: true}, account.Credentials)

	_, err = env.client.AddAccount(ctx, connect.NewRequest(&accountv1.AddAccountRequest{
		UserID:    env.alice.UserID.String(),
		CompanyID: env.companyID.String(),
		Address:   "b@co.com",
		Config:    workspaceConfig(),
	}))
	require.NoError(t, err)

	deactivated, err := env.client.Deactivate(ctx, connect.NewRequest(&accountv1.DeactivateRequest{
		AccountID:    account.AccountID,
		ActingUserID: env.alice.UserID.String(),
		Reason:       "user left",
	}))
	require.NoError(t, err)
	require.Equal(t, "inactive", deactivated.Msg.Account.State)

	targets, err := env.client.ListReassignmentTargets(ctx, connect.NewRequest(&accountv1.ListReassignmentTargetsRequest{
		AccountID: account.AccountID,
	}))
	require.NoError(t, err)
	require.Len(t, targets.Msg.Users, 1)
	require.Equal(t, env.bob.UserID.String(), targets.Msg.Users[0].UserID)

	reassigned, err := env.client.Reassign(ctx, connect.NewRequest(&accountv1.ReassignRequest{
		AccountID:         account.AccountID,
		ActingUserID:      env.alice.UserID.String(),
		DestinationUserID: env.bob.UserID.String(),
		Options:           accountv1.ReassignOptions{KeepAddress: true},
		Reason:            "handover to Bob",
	}))
	require.NoError(t, err)
	require.Equal(t, env.bob.UserID.String(), reassigned.Msg.Account.UserID)
	require.Equal(t, env.alice.UserID.String(), reassigned.Msg.Account.PreviousOwnerID)
	require.Equal(t, "active", reassigned.Msg.Account.State)
	require.Equal(t, reassigned.Msg.Out.CorrelationID, reassigned.Msg.In.CorrelationID)
	require.True(t, reassigned.Msg.Out.WasPrincipal)
	require.Nil(t, reassigned.Msg.Placeholder)

	list, err := env.client.ListAccounts(ctx, connect.NewRequest(&accountv1.ListAccountsRequest{
		UserID: env.alice.UserID.String(),
	}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Accounts, 2)
	require.Equal(t, "b@co.com", list.Msg.Accounts[0].Address)
	require.Equal(t, account.AccountID, list.Msg.Accounts[1].AccountID)
	require.Equal(t, "reassigned", list.Msg.Accounts[1].State)
	require.False(t, list.Msg.Accounts[1].IsCurrentOwner)

	history, err := env.client.GetHistory(ctx, connect.NewRequest(&accountv1.GetHistoryRequest{
		AccountID: account.AccountID,
	}))
	require.NoError(t, err)
	kinds := make([]string, 0, len(history.Msg.Events))
	for _, e := range history.Msg.Events {
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []string{"configuration", "deactivation", "reassignment_out", "reassignment_in"}, kinds)

	none, err := env.client.GetPrincipal(ctx, connect.NewRequest(&accountv1.GetPrincipalRequest{
		UserID: env.alice.UserID.String(),
	}))
	require.NoError(t, err)
	require.Nil(t, none.Msg.Account)

	view, err := env.client.GetAccount(ctx, connect.NewRequest(&accountv1.GetAccountRequest{
		AccountID:    account.AccountID,
		ViewerUserID: env.bob.UserID.String(),
	}))
	require.NoError(t, err)
	require.True(t, view.Msg.Account.IsCurrentOwner)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ctx := context.Background()

	added, err := env.client.AddAccount(ctx, connect.NewRequest(&accountv1.AddAccountRequest{
		UserID:    env.alice.UserID.String(),
		CompanyID: env.companyID.String(),
		Address:   "a@co.com",
		Config:    workspaceConfig(),
	}))
	require.NoError(t, err)
	accountID := added.Msg.Account.AccountID

	_, err = env.client.Deactivate(ctx, connect.NewRequest(&accountv1.DeactivateRequest{
		AccountID:    accountID,
		ActingUserID: env.alice.UserID.String(),
		Reason:       "left",
	}))
	require.NoError(t, err)

	tests := []struct {
		name     string
		call     func() error
		wantCode connect.Code
		wantErr  string
	}{
		{
			name: "invalid uuid",
			call: func() error {
				_, err := env.client.GetHistory(ctx, connect.NewRequest(&accountv1.GetHistoryRequest{AccountID: "nope"}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "missing reason",
			call: func() error {
				_, err := env.client.Deactivate(ctx, connect.NewRequest(&accountv1.DeactivateRequest{
					AccountID:    accountID,
					ActingUserID: env.alice.UserID.String(),
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
			wantErr:  "ReasonRequired",
		},
		{
			name: "already inactive",
			call: func() error {
				_, err := env.client.Deactivate(ctx, connect.NewRequest(&accountv1.DeactivateRequest{
					AccountID:    accountID,
					ActingUserID: env.alice.UserID.String(),
					Reason:       "again",
				}))
				return err
			},
			wantCode: connect.CodeFailedPrecondition,
			wantErr:  "AlreadyInactive",
		},
		{
			name: "unknown account",
			call: func() error {
				_, err := env.client.GetHistory(ctx, connect.NewRequest(&accountv1.GetHistoryRequest{
					AccountID: uuid.Must(uuid.NewV7()).String(),
				}))
				return err
			},
			wantCode: connect.CodeNotFound,
			wantErr:  "AccountNotFound",
		},
		{
			name: "reassign to self",
			call: func() error {
				_, err := env.client.Reassign(ctx, connect.NewRequest(&accountv1.ReassignRequest{
					AccountID:         accountID,
					ActingUserID:      env.alice.UserID.String(),
					DestinationUserID: env.alice.UserID.String(),
					Options:           accountv1.ReassignOptions{KeepAddress: true},
					Reason:            "loop",
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
			wantErr:  "SameOwner",
		},
		{
			name: "stale expected version",
			call: func() error {
				stale := int64(1)
				notes := "x"
				_, err := env.client.EditAccount(ctx, connect.NewRequest(&accountv1.EditAccountRequest{
					AccountID:    accountID,
					ActingUserID: env.alice.UserID.String(),
					Patch:        accountv1.AccountPatch{Notes: &notes, ExpectedVersion: &stale},
					Reason:       "note",
				}))
				return err
			},
			wantCode: connect.CodeAborted,
			wantErr:  "ConcurrentModification",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			require.Equal(t, tt.wantCode, connect.CodeOf(err))
			require.Equal(t, tt.wantErr, LifecycleCode(err))
		})
	}
}

func TestAuthorization(t *testing.T) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	privateDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})))
	require.NoError(t, err)
	signingKey := string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateDER}))

	env := newTestEnv(t, verifier.Middleware(), true)
	ctx := context.Background()

	tokenFor := func(roles ...auth.Role) string {
		token, err := auth.IssueToken(signingKey, auth.Principal{
			UserID: uuid.Must(uuid.NewV7()),
			Name:   "Helpdesk Harriet",
			Roles:  roles,
		}, time.Minute)
		require.NoError(t, err)
		return token
	}
	withToken := func(token string, req *connect.Request[accountv1.AddAccountRequest]) *connect.Request[accountv1.AddAccountRequest] {
		req.Header().Set("Authorization", "Bearer "+token)
		return req
	}
	addReq := func() *connect.Request[accountv1.AddAccountRequest] {
		return connect.NewRequest(&accountv1.AddAccountRequest{
			UserID:    env.alice.UserID.String(),
			CompanyID: env.companyID.String(),
			Address:   uuid.NewString() + "@co.com",
			Config:    workspaceConfig(),
		})
	}

	t.Run("missing token", func(t *testing.T) {
		_, err := env.client.AddAccount(ctx, addReq())
		require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("viewer cannot write", func(t *testing.T) {
		_, err := env.client.AddAccount(ctx, withToken(tokenFor(auth.RoleViewer), addReq()))
		require.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	})

	t.Run("operator writes and is recorded as actor", func(t *testing.T) {
		resp, err := env.client.AddAccount(ctx, withToken(tokenFor(auth.RoleOperator), addReq()))
		require.NoError(t, err)

		req := connect.NewRequest(&accountv1.GetHistoryRequest{AccountID: resp.Msg.Account.AccountID})
		req.Header().Set("Authorization", "Bearer "+tokenFor(auth.RoleViewer))
		history, err := env.client.GetHistory(ctx, req)
		require.NoError(t, err)
		require.Len(t, history.Msg.Events, 1)
		require.Equal(t, "Helpdesk Harriet", history.Msg.Events[0].ActorName)
	})
}

func TestProvenanceDefaultsToClientIP(t *testing.T) {
	env := newTestEnv(t, httpmiddleware.ClientIPMiddleware(true), false)
	ctx := context.Background()

	tests := []struct {
		name       string
		provenance string
		want       string
	}{
		{name: "caller supplied", provenance: "console", want: "console"},
		{name: "forwarded address", want: "api:203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(&accountv1.AddAccountRequest{
				UserID:     env.alice.UserID.String(),
				CompanyID:  env.companyID.String(),
				Address:    uuid.NewString() + "@co.com",
				Config:     workspaceConfig(),
				Provenance: tt.provenance,
			})
			req.Header().Set("X-Forwarded-For", "203.0.113.9")
			resp, err := env.client.AddAccount(ctx, req)
			require.NoError(t, err)

			history, err := env.client.GetHistory(ctx, connect.NewRequest(&accountv1.GetHistoryRequest{
				AccountID: resp.Msg.Account.AccountID,
			}))
			require.NoError(t, err)
			require.Len(t, history.Msg.Events, 1)
			require.Equal(t, tt.want, history.Msg.Events[0].Provenance)
		})
	}
}

func TestReassignLogsOnce(t *testing.T) {
	env := newTestEnv(t, nil, false)
	ctx := context.Background()

	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	cfg := workspaceConfig()
	cfg.State = "inactive"
	added, err := env.client.AddAccount(ctx, connect.NewRequest(&accountv1.AddAccountRequest{
		UserID:    env.alice.UserID.String(),
		CompanyID: env.companyID.String(),
		Address:   "a@co.com",
		Config:    cfg,
	}))
	require.NoError(t, err)

	buf.Reset()
	_, err = env.client.Reassign(ctx, connect.NewRequest(&accountv1.ReassignRequest{
		AccountID:         added.Msg.Account.AccountID,
		ActingUserID:      env.alice.UserID.String(),
		DestinationUserID: env.bob.UserID.String(),
		Options:           accountv1.ReassignOptions{KeepAddress: true},
		Reason:            "handover",
	}))
	require.NoError(t, err)
	require.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"correlation_id"`)))
}
