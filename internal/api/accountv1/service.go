package accountv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// AccountServiceName is the fully-qualified name of the account service.
const AccountServiceName = "mailroster.account.v1.AccountService"

// Procedure paths of the account service's RPCs.
const (
	AccountServiceConfigurePrincipalProcedure      = "/mailroster.account.v1.AccountService/ConfigurePrincipal"
	AccountServiceAddAccountProcedure              = "/mailroster.account.v1.AccountService/AddAccount"
	AccountServiceEditAccountProcedure             = "/mailroster.account.v1.AccountService/EditAccount"
	AccountServiceDeactivateProcedure              = "/mailroster.account.v1.AccountService/Deactivate"
	AccountServiceReassignProcedure                = "/mailroster.account.v1.AccountService/Reassign"
	AccountServiceSeedPendingProcedure             = "/mailroster.account.v1.AccountService/SeedPending"
	AccountServiceDiscardPendingProcedure          = "/mailroster.account.v1.AccountService/DiscardPending"
	AccountServiceListAccountsProcedure            = "/mailroster.account.v1.AccountService/ListAccounts"
	AccountServiceGetPrincipalProcedure            = "/mailroster.account.v1.AccountService/GetPrincipal"
	AccountServiceGetAccountProcedure              = "/mailroster.account.v1.AccountService/GetAccount"
	AccountServiceGetHistoryProcedure              = "/mailroster.account.v1.AccountService/GetHistory"
	AccountServiceListReassignmentTargetsProcedure = "/mailroster.account.v1.AccountService/ListReassignmentTargets"
)

// AccountServiceHandler is implemented by the server.
type AccountServiceHandler interface {
	ConfigurePrincipal(context.Context, *connect.Request[ConfigurePrincipalRequest]) (*connect.Response[AccountResponse], error)
	AddAccount(context.Context, *connect.Request[AddAccountRequest]) (*connect.Response[AccountResponse], error)
	EditAccount(context.Context, *connect.Request[EditAccountRequest]) (*connect.Response[AccountResponse], error)
	Deactivate(context.Context, *connect.Request[DeactivateRequest]) (*connect.Response[AccountResponse], error)
	Reassign(context.Context, *connect.Request[ReassignRequest]) (*connect.Response[ReassignResponse], error)
	SeedPending(context.Context, *connect.Request[SeedPendingRequest]) (*connect.Response[AccountResponse], error)
	DiscardPending(context.Context, *connect.Request[DiscardPendingRequest]) (*connect.Response[DiscardPendingResponse], error)
	ListAccounts(context.Context, *connect.Request[ListAccountsRequest]) (*connect.Response[ListAccountsResponse], error)
	GetPrincipal(context.Context, *connect.Request[GetPrincipalRequest]) (*connect.Response[AccountResponse], error)
	GetAccount(context.Context, *connect.Request[GetAccountRequest]) (*connect.Response[AccountResponse], error)
	GetHistory(context.Context, *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error)
	ListReassignmentTargets(context.Context, *connect.Request[ListReassignmentTargetsRequest]) (*connect.Response[ListReassignmentTargetsResponse], error)
}

// NewAccountServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewAccountServiceHandler(svc AccountServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
	query := append([]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)

	handlers := map[string]http.Handler{
		AccountServiceConfigurePrincipalProcedure:      connect.NewUnaryHandler(AccountServiceConfigurePrincipalProcedure, svc.ConfigurePrincipal, opts...),
		AccountServiceAddAccountProcedure:              connect.NewUnaryHandler(AccountServiceAddAccountProcedure, svc.AddAccount, opts...),
		AccountServiceEditAccountProcedure:             connect.NewUnaryHandler(AccountServiceEditAccountProcedure, svc.EditAccount, opts...),
		AccountServiceDeactivateProcedure:              connect.NewUnaryHandler(AccountServiceDeactivateProcedure, svc.Deactivate, opts...),
		AccountServiceReassignProcedure:                connect.NewUnaryHandler(AccountServiceReassignProcedure, svc.Reassign, opts...),
		AccountServiceSeedPendingProcedure:             connect.NewUnaryHandler(AccountServiceSeedPendingProcedure, svc.SeedPending, opts...),
		AccountServiceDiscardPendingProcedure:          connect.NewUnaryHandler(AccountServiceDiscardPendingProcedure, svc.DiscardPending, opts...),
		AccountServiceListAccountsProcedure:            connect.NewUnaryHandler(AccountServiceListAccountsProcedure, svc.ListAccounts, query...),
		AccountServiceGetPrincipalProcedure:            connect.NewUnaryHandler(AccountServiceGetPrincipalProcedure, svc.GetPrincipal, query...),
		AccountServiceGetAccountProcedure:              connect.NewUnaryHandler(AccountServiceGetAccountProcedure, svc.GetAccount, query...),
		AccountServiceGetHistoryProcedure:              connect.NewUnaryHandler(AccountServiceGetHistoryProcedure, svc.GetHistory, query...),
		AccountServiceListReassignmentTargetsProcedure: connect.NewUnaryHandler(AccountServiceListReassignmentTargetsProcedure, svc.ListReassignmentTargets, query...),
	}

	return "/" + AccountServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// AccountServiceClient is a client for the account service.
type AccountServiceClient interface {
	ConfigurePrincipal(context.Context, *connect.Request[ConfigurePrincipalRequest]) (*connect.Response[AccountResponse], error)
	AddAccount(context.Context, *connect.Request[AddAccountRequest]) (*connect.Response[AccountResponse], error)
	EditAccount(context.Context, *connect.Request[EditAccountRequest]) (*connect.Response[AccountResponse], error)
	Deactivate(context.Context, *connect.Request[DeactivateRequest]) (*connect.Response[AccountResponse], error)
	Reassign(context.Context, *connect.Request[ReassignRequest]) (*connect.Response[ReassignResponse], error)
	SeedPending(context.Context, *connect.Request[SeedPendingRequest]) (*connect.Response[AccountResponse], error)
	DiscardPending(context.Context, *connect.Request[DiscardPendingRequest]) (*connect.Response[DiscardPendingResponse], error)
	ListAccounts(context.Context, *connect.Request[ListAccountsRequest]) (*connect.Response[ListAccountsResponse], error)
	GetPrincipal(context.Context, *connect.Request[GetPrincipalRequest]) (*connect.Response[AccountResponse], error)
	GetAccount(context.Context, *connect.Request[GetAccountRequest]) (*connect.Response[AccountResponse], error)
	GetHistory(context.Context, *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error)
	ListReassignmentTargets(context.Context, *connect.Request[ListReassignmentTargetsRequest]) (*connect.Response[ListReassignmentTargetsResponse], error)
}

// NewAccountServiceClient constructs a client for the account service at baseURL,
// for example https://mailroster.internal.example.
func NewAccountServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) AccountServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	query := append([]connect.ClientOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)

	return &accountServiceClient{
		configurePrincipal:      connect.NewClient[ConfigurePrincipalRequest, AccountResponse](httpClient, baseURL+AccountServiceConfigurePrincipalProcedure, opts...),
		addAccount:              connect.NewClient[AddAccountRequest, AccountResponse](httpClient, baseURL+AccountServiceAddAccountProcedure, opts...),
		editAccount:             connect.NewClient[EditAccountRequest, AccountResponse](httpClient, baseURL+AccountServiceEditAccountProcedure, opts...),
		deactivate:              connect.NewClient[DeactivateRequest, AccountResponse](httpClient, baseURL+AccountServiceDeactivateProcedure, opts...),
		reassign:                connect.NewClient[ReassignRequest, ReassignResponse](httpClient, baseURL+AccountServiceReassignProcedure, opts...),
		seedPending:             connect.NewClient[SeedPendingRequest, AccountResponse](httpClient, baseURL+AccountServiceSeedPendingProcedure, opts...),
		discardPending:          connect.NewClient[DiscardPendingRequest, DiscardPendingResponse](httpClient, baseURL+AccountServiceDiscardPendingProcedure, opts...),
		listAccounts:            connect.NewClient[ListAccountsRequest, ListAccountsResponse](httpClient, baseURL+AccountServiceListAccountsProcedure, query...),
		getPrincipal:            connect.NewClient[GetPrincipalRequest, AccountResponse](httpClient, baseURL+AccountServiceGetPrincipalProcedure, query...),
		getAccount:              connect.NewClient[GetAccountRequest, AccountResponse](httpClient, baseURL+AccountServiceGetAccountProcedure, query...),
		getHistory:              connect.NewClient[GetHistoryRequest, GetHistoryResponse](httpClient, baseURL+AccountServiceGetHistoryProcedure, query...),
		listReassignmentTargets: connect.NewClient[ListReassignmentTargetsRequest, ListReassignmentTargetsResponse](httpClient, baseURL+AccountServiceListReassignmentTargetsProcedure, query...),
	}
}

type accountServiceClient struct {
	configurePrincipal      *connect.Client[ConfigurePrincipalRequest, AccountResponse]
	addAccount              *connect.Client[AddAccountRequest, AccountResponse]
	editAccount             *connect.Client[EditAccountRequest, AccountResponse]
	deactivate              *connect.Client[DeactivateRequest, AccountResponse]
	reassign                *connect.Client[ReassignRequest, ReassignResponse]
	seedPending             *connect.Client[SeedPendingRequest, AccountResponse]
	discardPending          *connect.Client[DiscardPendingRequest, DiscardPendingResponse]
	listAccounts            *connect.Client[ListAccountsRequest, ListAccountsResponse]
	getPrincipal            *connect.Client[GetPrincipalRequest, AccountResponse]
	getAccount              *connect.Client[GetAccountRequest, AccountResponse]
	getHistory              *connect.Client[GetHistoryRequest, GetHistoryResponse]
	listReassignmentTargets *connect.Client[ListReassignmentTargetsRequest, ListReassignmentTargetsResponse]
}

func (c *accountServiceClient) ConfigurePrincipal(ctx context.Context, req *connect.Request[ConfigurePrincipalRequest]) (*connect.Response[AccountResponse], error) {
	return c.configurePrincipal.CallUnary(ctx, req)
}

func (c *accountServiceClient) AddAccount(ctx context.Context, req *connect.Request[AddAccountRequest]) (*connect.Response[AccountResponse], error) {
	return c.addAccount.CallUnary(ctx, req)
}

func (c *accountServiceClient) EditAccount(ctx context.Context, req *connect.Request[EditAccountRequest]) (*connect.Response[AccountResponse], error) {
	return c.editAccount.CallUnary(ctx, req)
}

func (c *accountServiceClient) Deactivate(ctx context.Context, req *connect.Request[DeactivateRequest]) (*connect.Response[AccountResponse], error) {
	return c.deactivate.CallUnary(ctx, req)
}

func (c *accountServiceClient) Reassign(ctx context.Context, req *connect.Request[ReassignRequest]) (*connect.Response[ReassignResponse], error) {
	return c.reassign.CallUnary(ctx, req)
}

func (c *accountServiceClient) SeedPending(ctx context.Context, req *connect.Request[SeedPendingRequest]) (*connect.Response[AccountResponse], error) {
	return c.seedPending.CallUnary(ctx, req)
}

func (c *accountServiceClient) DiscardPending(ctx context.Context, req *connect.Request[DiscardPendingRequest]) (*connect.Response[DiscardPendingResponse], error) {
	return c.discardPending.CallUnary(ctx, req)
}

func (c *accountServiceClient) ListAccounts(ctx context.Context, req *connect.Request[ListAccountsRequest]) (*connect.Response[ListAccountsResponse], error) {
	return c.listAccounts.CallUnary(ctx, req)
}

func (c *accountServiceClient) GetPrincipal(ctx context.Context, req *connect.Request[GetPrincipalRequest]) (*connect.Response[AccountResponse], error) {
	return c.getPrincipal.CallUnary(ctx, req)
}

func (c *accountServiceClient) GetAccount(ctx context.Context, req *connect.Request[GetAccountRequest]) (*connect.Response[AccountResponse], error) {
	return c.getAccount.CallUnary(ctx, req)
}

func (c *accountServiceClient) GetHistory(ctx context.Context, req *connect.Request[GetHistoryRequest]) (*connect.Response[GetHistoryResponse], error) {
	return c.getHistory.CallUnary(ctx, req)
}

func (c *accountServiceClient) ListReassignmentTargets(ctx context.Context, req *connect.Request[ListReassignmentTargetsRequest]) (*connect.Response[ListReassignmentTargetsResponse], error) {
	return c.listReassignmentTargets.CallUnary(ctx, req)
}
