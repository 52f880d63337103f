package commands

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
)

type AccountsCmd struct {
	List       ListAccountsCmd `cmd:"" help:"List the accounts visible to a user"`
	Get        GetAccountCmd   `cmd:"" help:"Show one account"`
	Add        AddAccountCmd   `cmd:"" help:"Add an account to a user"`
	Edit       EditAccountCmd  `cmd:"" help:"Edit an account"`
	Deactivate DeactivateCmd   `cmd:"" help:"Deactivate an account"`
	Reassign   ReassignCmd     `cmd:"" help:"Reassign an account to another user"`
	Seed       SeedCmd         `cmd:"" help:"Seed a pending account for a user"`
	Discard    DiscardCmd      `cmd:"" help:"Discard a pending account"`
	Targets    TargetsCmd      `cmd:"" help:"List users an account can be reassigned to"`
}

type ListAccountsCmd struct {
	User string `help:"User whose accounts are listed" required:""`
}

func (l *ListAccountsCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	resp, err := clients.Accounts.ListAccounts(ctx, connect.NewRequest(&accountv1.ListAccountsRequest{UserID: l.User}))
	if err != nil {
		return describeError("list accounts", err)
	}

	if len(resp.Msg.Accounts) == 0 && !globals.JSON {
		fmt.Fprintln(globals.writer(), "No accounts found")
		return nil
	}
	return globals.printAccounts(resp.Msg.Accounts...)
}

type GetAccountCmd struct {
	AccountID string `arg:"" help:"Account identifier"`
	Viewer    string `help:"User viewing the account" required:""`
}

func (g *GetAccountCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	resp, err := clients.Accounts.GetAccount(ctx, connect.NewRequest(&accountv1.GetAccountRequest{
		AccountID:    g.AccountID,
		ViewerUserID: g.Viewer,
	}))
	if err != nil {
		return describeError("get account", err)
	}
	return globals.printAccounts(resp.Msg.Account)
}

// ConfigFlags describe an account configuration, either inline or from a file.
type ConfigFlags struct {
	ConfigFile string `help:"YAML or JSON file holding the account configuration" type:"existingfile"`
	Platform   string `help:"Email platform identifier"`
	Type       string `help:"Account type identifier"`
	Protocol   string `help:"Access protocol identifier"`
	State      string `help:"Initial account state (active or inactive)"`
	Login      string `help:"Credential login"`
	Secret     string `help:"Credential secret" env:"MAILROSTER_ACCOUNT_SECRET"`
	Notes      string `help:"Free text notes"`
}

// accountConfig loads the config file, if any, then applies the inline flags over it.
func (c *ConfigFlags) accountConfig() (accountv1.AccountConfig, error) {
	var cfg accountv1.AccountConfig
	if c.ConfigFile != "" {
		if err := loadFile(c.ConfigFile, &cfg); err != nil {
			return cfg, err
		}
	}

	if c.Platform != "" {
		cfg.PlatformID = c.Platform
	}
	if c.Type != "" {
		cfg.TypeID = c.Type
	}
	if c.Protocol != "" {
		cfg.ProtocolID = c.Protocol
	}
	if c.State != "" {
		cfg.State = c.State
	}
	if c.Login != "" || c.Secret != "" {
		cfg.Credentials = &accountv1.Credentials{Login: c.Login, Secret: c.Secret}
	}
	if c.Notes != "" {
		cfg.Notes = &c.Notes
	}
	return cfg, nil
}

type AddAccountCmd struct {
	User       string `help:"Owning user" required:""`
	Company    string `help:"Company of the owning user" required:""`
	Address    string `help:"Email address" required:""`
	Principal  bool   `help:"Make the account the user's principal account"`
	Provenance string `help:"Where the request came from" default:"mailctl"`

	ConfigFlags `embed:""`
}

func (a *AddAccountCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := a.accountConfig()
	if err != nil {
		return err
	}

	clients, err := globals.clients()
	if err != nil {
		return err
	}

	req := &accountv1.AddAccountRequest{
		UserID:      a.User,
		CompanyID:   a.Company,
		Address:     a.Address,
		Config:      cfg,
		AsPrincipal: a.Principal,
		Provenance:  a.Provenance,
	}

	var account *accountv1.Account
	err = clients.Retry(ctx, func(ctx context.Context) error {
		resp, err := clients.Accounts.AddAccount(ctx, connect.NewRequest(req))
		if err != nil {
			return err
		}
		account = resp.Msg.Account
		return nil
	})
	if err != nil {
		return describeError("add account", err)
	}
	return globals.printAccounts(account)
}

type EditAccountCmd struct {
	AccountID       string `arg:"" help:"Account identifier"`
	ActingUser      string `help:"User making the change, defaults to the token's user"`
	Reason          string `help:"Reason recorded on the edit event"`
	PatchFile       string `help:"YAML or JSON file holding the fields to change" type:"existingfile"`
	Address         string `help:"New email address"`
	Platform        string `help:"New platform identifier"`
	Type            string `help:"New account type identifier"`
	Protocol        string `help:"New access protocol identifier"`
	Login           string `help:"New credential login"`
	Secret          string `help:"New credential secret" env:"MAILROSTER_ACCOUNT_SECRET"`
	Notes           string `help:"New notes"`
	Principal       string `help:"Mark or unmark the account as the user's principal account" enum:",set,clear" default:""`
	ExpectedVersion int64  `help:"Reject the edit unless the account is at this version"`
}

func (e *EditAccountCmd) patch() (accountv1.AccountPatch, error) {
	var patch accountv1.AccountPatch
	if e.PatchFile != "" {
		if err := loadFile(e.PatchFile, &patch); err != nil {
			return patch, err
		}
	}

	override(&patch.Address, e.Address)
	override(&patch.PlatformID, e.Platform)
	override(&patch.TypeID, e.Type)
	override(&patch.ProtocolID, e.Protocol)
	override(&patch.Notes, e.Notes)

	if e.Login != "" || e.Secret != "" {
		patch.Credentials = &accountv1.Credentials{Login: e.Login, Secret: e.Secret}
	}
	if e.Principal != "" {
		principal := e.Principal == "set"
		patch.IsPrincipal = &principal
	}
	if e.ExpectedVersion > 0 {
		patch.ExpectedVersion = &e.ExpectedVersion
	}
	return patch, nil
}

func (e *EditAccountCmd) Run(ctx context.Context, globals *Globals) error {
	patch, err := e.patch()
	if err != nil {
		return err
	}

	clients, err := globals.clients()
	if err != nil {
		return err
	}

	req := &accountv1.EditAccountRequest{
		AccountID:    e.AccountID,
		ActingUserID: e.ActingUser,
		Patch:        patch,
		Reason:       e.Reason,
	}

	var account *accountv1.Account
	err = clients.Retry(ctx, func(ctx context.Context) error {
		resp, err := clients.Accounts.EditAccount(ctx, connect.NewRequest(req))
		if err != nil {
			return err
		}
		account = resp.Msg.Account
		return nil
	})
	if err != nil {
		return describeError("edit account", err)
	}
	return globals.printAccounts(account)
}

type DeactivateCmd struct {
	AccountID  string `arg:"" help:"Account identifier"`
	ActingUser string `help:"User making the change, defaults to the token's user"`
	Reason     string `help:"Reason recorded on the deactivation event" required:""`
	Provenance string `help:"Where the request came from" default:"mailctl"`
}

func (d *DeactivateCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	req := &accountv1.DeactivateRequest{
		AccountID:    d.AccountID,
		ActingUserID: d.ActingUser,
		Reason:       d.Reason,
		Provenance:   d.Provenance,
	}

	var account *accountv1.Account
	err = clients.Retry(ctx, func(ctx context.Context) error {
		resp, err := clients.Accounts.Deactivate(ctx, connect.NewRequest(req))
		if err != nil {
			return err
		}
		account = resp.Msg.Account
		return nil
	})
	if err != nil {
		return describeError("deactivate account", err)
	}
	return globals.printAccounts(account)
}

type ReassignCmd struct {
	AccountID       string `arg:"" help:"Account identifier"`
	To              string `help:"Destination user" required:""`
	ActingUser      string `help:"User making the change, defaults to the token's user"`
	Reason          string `help:"Reason recorded on the reassignment events" required:""`
	OptionsFile     string `help:"YAML or JSON file holding reassignment options" type:"existingfile"`
	KeepAddress     bool   `help:"Keep the current address for the new owner"`
	NewAddress      string `help:"Address to give the account when the address is not kept"`
	Pass            string `help:"How the destination receives the account (principal or secondary)"`
	KeepAlias       bool   `help:"Leave the origin user a placeholder alias of the old address"`
	NameForNewOwner string `help:"Display name to use for the new owner"`
	Provenance      string `help:"Where the request came from" default:"mailctl"`
}

func (r *ReassignCmd) options() (accountv1.ReassignOptions, error) {
	var opts accountv1.ReassignOptions
	if r.OptionsFile != "" {
		if err := loadFile(r.OptionsFile, &opts); err != nil {
			return opts, err
		}
	}

	if r.KeepAddress {
		opts.KeepAddress = true
	}
	if r.NewAddress != "" {
		opts.NewAddress = r.NewAddress
	}
	if r.Pass != "" {
		opts.Pass = r.Pass
	}
	if r.KeepAlias {
		opts.KeepAliasForOrigin = true
	}
	if r.NameForNewOwner != "" {
		opts.NameForNewOwner = r.NameForNewOwner
	}
	if opts.Provenance == "" {
		opts.Provenance = r.Provenance
	}
	return opts, nil
}

func (r *ReassignCmd) Run(ctx context.Context, globals *Globals) error {
	opts, err := r.options()
	if err != nil {
		return err
	}

	clients, err := globals.clients()
	if err != nil {
		return err
	}

	req := &accountv1.ReassignRequest{
		AccountID:         r.AccountID,
		ActingUserID:      r.ActingUser,
		DestinationUserID: r.To,
		Options:           opts,
		Reason:            r.Reason,
	}

	var result *accountv1.ReassignResponse
	err = clients.Retry(ctx, func(ctx context.Context) error {
		resp, err := clients.Accounts.Reassign(ctx, connect.NewRequest(req))
		if err != nil {
			return err
		}
		result = resp.Msg
		return nil
	})
	if err != nil {
		return describeError("reassign account", err)
	}

	if globals.JSON {
		return globals.printJSON(result)
	}

	accounts := []*accountv1.Account{result.Account}
	if result.Placeholder != nil {
		accounts = append(accounts, result.Placeholder)
	}
	if err := globals.printAccounts(accounts...); err != nil {
		return err
	}
	fmt.Fprintf(globals.writer(), "\nCorrelation: %s\n", result.Out.CorrelationID)
	return nil
}

type SeedCmd struct {
	User    string `help:"Owning user" required:""`
	Company string `help:"Company of the owning user" required:""`
	Address string `help:"Email address" required:""`
}

func (s *SeedCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	req := &accountv1.SeedPendingRequest{UserID: s.User, CompanyID: s.Company, Address: s.Address}

	var account *accountv1.Account
	err = clients.Retry(ctx, func(ctx context.Context) error {
		resp, err := clients.Accounts.SeedPending(ctx, connect.NewRequest(req))
		if err != nil {
			return err
		}
		account = resp.Msg.Account
		return nil
	})
	if err != nil {
		return describeError("seed pending account", err)
	}
	return globals.printAccounts(account)
}

type DiscardCmd struct {
	AccountID string `arg:"" help:"Pending account identifier"`
}

func (d *DiscardCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	_, err = clients.Accounts.DiscardPending(ctx, connect.NewRequest(&accountv1.DiscardPendingRequest{AccountID: d.AccountID}))
	if err != nil {
		return describeError("discard pending account", err)
	}

	fmt.Fprintf(globals.writer(), "Discarded %s\n", d.AccountID)
	return nil
}

type TargetsCmd struct {
	AccountID string `arg:"" help:"Account identifier"`
}

func (t *TargetsCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	resp, err := clients.Accounts.ListReassignmentTargets(ctx, connect.NewRequest(&accountv1.ListReassignmentTargetsRequest{AccountID: t.AccountID}))
	if err != nil {
		return describeError("list reassignment targets", err)
	}

	if globals.JSON {
		return globals.printJSON(resp.Msg.Users)
	}

	fmt.Fprintf(globals.writer(), "%-36s %-36s %s\n", "USER ID", "COMPANY ID", "NAME")
	for _, u := range resp.Msg.Users {
		fmt.Fprintf(globals.writer(), "%-36s %-36s %s\n", u.UserID, u.CompanyID, u.Name)
	}
	return nil
}
