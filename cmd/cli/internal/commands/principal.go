package commands

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
)

type PrincipalCmd struct {
	Get       GetPrincipalCmd       `cmd:"" help:"Show a user's principal account"`
	Configure ConfigurePrincipalCmd `cmd:"" help:"Create or update a user's principal account"`
}

type GetPrincipalCmd struct {
	User string `help:"User whose principal account is shown" required:""`
}

func (g *GetPrincipalCmd) Run(ctx context.Context, globals *Globals) error {
	clients, err := globals.clients()
	if err != nil {
		return err
	}

	resp, err := clients.Accounts.GetPrincipal(ctx, connect.NewRequest(&accountv1.GetPrincipalRequest{UserID: g.User}))
	if err != nil {
		return describeError("get principal account", err)
	}

	if resp.Msg.Account == nil {
		if globals.JSON {
			return globals.printJSON(nil)
		}
		fmt.Fprintf(globals.writer(), "User %s has no principal account\n", g.User)
		return nil
	}
	return globals.printAccounts(resp.Msg.Account)
}

type ConfigurePrincipalCmd struct {
	User    string `help:"Owning user" required:""`
	Company string `help:"Company of the owning user" required:""`
	Address string `help:"Address for a new principal account"`

	ConfigFlags `embed:""`
}

func (c *ConfigurePrincipalCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, err := c.accountConfig()
	if err != nil {
		return err
	}
	if c.Address != "" {
		cfg.Address = c.Address
	}

	clients, err := globals.clients()
	if err != nil {
		return err
	}

	req := &accountv1.ConfigurePrincipalRequest{UserID: c.User, CompanyID: c.Company, Config: cfg}

	var account *accountv1.Account
	err = clients.Retry(ctx, func(ctx context.Context) error {
		resp, err := clients.Accounts.ConfigurePrincipal(ctx, connect.NewRequest(req))
		if err != nil {
			return err
		}
		account = resp.Msg.Account
		return nil
	})
	if err != nil {
		return describeError("configure principal account", err)
	}
	return globals.printAccounts(account)
}
