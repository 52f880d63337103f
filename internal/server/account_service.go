package server

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/auth"
	httpmiddleware "github.com/wolfeidau/mailroster/internal/http"
	"github.com/wolfeidau/mailroster/internal/lifecycle"
)

// Verify AccountServer implements the handler interface
var _ accountv1.AccountServiceHandler = &AccountServer{}

// AccountServer implements the account service on top of the lifecycle engine.
type AccountServer struct {
	engine    *lifecycle.Engine
	authorize bool
}

// NewAccountServer creates a new account service. When authorize is set every call
// requires an authenticated principal holding the operation's permission.
func NewAccountServer(engine *lifecycle.Engine, authorize bool) *AccountServer {
	return &AccountServer{engine: engine, authorize: authorize}
}

func (s *AccountServer) require(ctx context.Context, perm auth.Permission) error {
	if !s.authorize {
		return nil
	}
	return auth.RequirePermission(ctx, perm)
}

// actingUser parses the acting user of a request, defaulting to the authenticated actor.
func actingUser(ctx context.Context, value string) (uuid.UUID, error) {
	if value == "" {
		if p := auth.PrincipalFromContext(ctx); p != nil {
			return p.UserID, nil
		}
	}
	return parseID("actingUserId", value)
}

// provenance defaults an empty request provenance to the caller's address.
func provenance(ctx context.Context, value string) string {
	if value != "" {
		return value
	}
	if ip := httpmiddleware.ClientIPFromContext(ctx); ip != "" {
		return "api:" + ip
	}
	return "api"
}

func (s *AccountServer) ConfigurePrincipal(
	ctx context.Context,
	req *connect.Request[accountv1.ConfigurePrincipalRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsWrite); err != nil {
		return nil, err
	}
	userID, err := parseID("userId", req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	companyID, err := parseID("companyId", req.Msg.CompanyID)
	if err != nil {
		return nil, err
	}

	account, err := s.engine.ConfigurePrincipal(ctx, userID, companyID, configFromAPI(req.Msg.Config))
	if err != nil {
		return nil, toConnectError("configure_principal", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: ownerView(account)}), nil
}

func (s *AccountServer) AddAccount(
	ctx context.Context,
	req *connect.Request[accountv1.AddAccountRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsWrite); err != nil {
		return nil, err
	}
	userID, err := parseID("userId", req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	companyID, err := parseID("companyId", req.Msg.CompanyID)
	if err != nil {
		return nil, err
	}

	account, err := s.engine.AddAccount(ctx, lifecycle.AddAccountInput{
		UserID:      userID,
		CompanyID:   companyID,
		Address:     req.Msg.Address,
		Config:      configFromAPI(req.Msg.Config),
		AsPrincipal: req.Msg.AsPrincipal,
		Provenance:  provenance(ctx, req.Msg.Provenance),
	})
	if err != nil {
		return nil, toConnectError("add_account", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: ownerView(account)}), nil
}

func (s *AccountServer) EditAccount(
	ctx context.Context,
	req *connect.Request[accountv1.EditAccountRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsWrite); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}
	actingUserID, err := actingUser(ctx, req.Msg.ActingUserID)
	if err != nil {
		return nil, err
	}

	account, err := s.engine.EditAccount(ctx, accountID, actingUserID, patchFromAPI(req.Msg.Patch), req.Msg.Reason)
	if err != nil {
		return nil, toConnectError("edit_account", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: ownerView(account)}), nil
}

func (s *AccountServer) Deactivate(
	ctx context.Context,
	req *connect.Request[accountv1.DeactivateRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsWrite); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}
	actingUserID, err := actingUser(ctx, req.Msg.ActingUserID)
	if err != nil {
		return nil, err
	}

	account, err := s.engine.Deactivate(ctx, accountID, actingUserID, req.Msg.Reason, provenance(ctx, req.Msg.Provenance))
	if err != nil {
		return nil, toConnectError("deactivate", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: ownerView(account)}), nil
}

func (s *AccountServer) Reassign(
	ctx context.Context,
	req *connect.Request[accountv1.ReassignRequest],
) (*connect.Response[accountv1.ReassignResponse], error) {
	if err := s.require(ctx, auth.PermAccountsReassign); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}
	actingUserID, err := actingUser(ctx, req.Msg.ActingUserID)
	if err != nil {
		return nil, err
	}
	destinationID, err := parseID("destinationUserId", req.Msg.DestinationUserID)
	if err != nil {
		return nil, err
	}

	opts := reassignOptionsFromAPI(req.Msg.Options)
	opts.Provenance = provenance(ctx, opts.Provenance)
	result, err := s.engine.Reassign(ctx, accountID, actingUserID, destinationID, opts, req.Msg.Reason)
	if err != nil {
		return nil, toConnectError("reassign", err)
	}

	return connect.NewResponse(&accountv1.ReassignResponse{
		Account:     ownerView(result.Account),
		Out:         eventToAPI(result.Out),
		In:          eventToAPI(result.In),
		Placeholder: ownerView(result.Placeholder),
	}), nil
}

func (s *AccountServer) SeedPending(
	ctx context.Context,
	req *connect.Request[accountv1.SeedPendingRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsSeed); err != nil {
		return nil, err
	}
	userID, err := parseID("userId", req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	companyID, err := parseID("companyId", req.Msg.CompanyID)
	if err != nil {
		return nil, err
	}

	account, err := s.engine.SeedPending(ctx, userID, companyID, req.Msg.Address)
	if err != nil {
		return nil, toConnectError("seed_pending", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: ownerView(account)}), nil
}

func (s *AccountServer) DiscardPending(
	ctx context.Context,
	req *connect.Request[accountv1.DiscardPendingRequest],
) (*connect.Response[accountv1.DiscardPendingResponse], error) {
	if err := s.require(ctx, auth.PermAccountsSeed); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}

	if err := s.engine.DiscardPending(ctx, accountID); err != nil {
		return nil, toConnectError("discard_pending", err)
	}

	return connect.NewResponse(&accountv1.DiscardPendingResponse{}), nil
}

func (s *AccountServer) ListAccounts(
	ctx context.Context,
	req *connect.Request[accountv1.ListAccountsRequest],
) (*connect.Response[accountv1.ListAccountsResponse], error) {
	if err := s.require(ctx, auth.PermAccountsRead); err != nil {
		return nil, err
	}
	userID, err := parseID("userId", req.Msg.UserID)
	if err != nil {
		return nil, err
	}

	views, err := s.engine.ListAccounts(ctx, userID)
	if err != nil {
		return nil, toConnectError("list_accounts", err)
	}

	accounts := make([]*accountv1.Account, 0, len(views))
	for _, v := range views {
		accounts = append(accounts, accountToAPI(v))
	}

	return connect.NewResponse(&accountv1.ListAccountsResponse{Accounts: accounts}), nil
}

func (s *AccountServer) GetPrincipal(
	ctx context.Context,
	req *connect.Request[accountv1.GetPrincipalRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsRead); err != nil {
		return nil, err
	}
	userID, err := parseID("userId", req.Msg.UserID)
	if err != nil {
		return nil, err
	}

	view, err := s.engine.GetPrincipal(ctx, userID)
	if err != nil {
		return nil, toConnectError("get_principal", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: accountToAPI(view)}), nil
}

func (s *AccountServer) GetAccount(
	ctx context.Context,
	req *connect.Request[accountv1.GetAccountRequest],
) (*connect.Response[accountv1.AccountResponse], error) {
	if err := s.require(ctx, auth.PermAccountsRead); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}
	viewerID, err := actingUser(ctx, req.Msg.ViewerUserID)
	if err != nil {
		return nil, err
	}

	view, err := s.engine.GetAccount(ctx, accountID, viewerID)
	if err != nil {
		return nil, toConnectError("get_account", err)
	}

	return connect.NewResponse(&accountv1.AccountResponse{Account: accountToAPI(view)}), nil
}

func (s *AccountServer) GetHistory(
	ctx context.Context,
	req *connect.Request[accountv1.GetHistoryRequest],
) (*connect.Response[accountv1.GetHistoryResponse], error) {
	if err := s.require(ctx, auth.PermAccountsRead); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}

	events, err := s.engine.GetHistory(ctx, accountID)
	if err != nil {
		return nil, toConnectError("get_history", err)
	}

	out := make([]*accountv1.Event, 0, len(events))
	for _, e := range events {
		out = append(out, eventToAPI(e))
	}

	return connect.NewResponse(&accountv1.GetHistoryResponse{Events: out}), nil
}

func (s *AccountServer) ListReassignmentTargets(
	ctx context.Context,
	req *connect.Request[accountv1.ListReassignmentTargetsRequest],
) (*connect.Response[accountv1.ListReassignmentTargetsResponse], error) {
	if err := s.require(ctx, auth.PermAccountsRead); err != nil {
		return nil, err
	}
	accountID, err := parseID("accountId", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}

	users, err := s.engine.ListReassignmentTargets(ctx, accountID)
	if err != nil {
		return nil, toConnectError("list_reassignment_targets", err)
	}

	out := make([]*accountv1.User, 0, len(users))
	for _, u := range users {
		out = append(out, userToAPI(u))
	}

	return connect.NewResponse(&accountv1.ListReassignmentTargetsResponse{Users: out}), nil
}
