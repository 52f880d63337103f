package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/mailroster/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Accounts  commands.AccountsCmd  `cmd:"" help:"Manage email accounts"`
		Principal commands.PrincipalCmd `cmd:"" help:"Manage principal accounts"`
		History   commands.HistoryCmd   `cmd:"" help:"Inspect and archive account ownership history"`
		Token     commands.TokenCmd     `cmd:"" help:"Generate a JWT token"`

		Server      string        `help:"Account service URL" default:"http://localhost:8080" env:"MAILROSTER_SERVER"`
		BearerToken string        `name:"token" help:"Bearer token for the account service" env:"MAILROSTER_TOKEN"`
		Timeout     time.Duration `help:"Request timeout" default:"30s"`
		MaxRetries  uint          `help:"Attempts for requests that hit a concurrent modification" default:"3"`
		JSON        bool          `help:"Print JSON instead of tables"`
		Debug       bool          `help:"Enable debug mode."`
		Version     kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("mailctl"),
		kong.Description("Manage email account ownership and lifecycle."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		Server:     cli.Server,
		Token:      cli.BearerToken,
		Timeout:    cli.Timeout,
		MaxRetries: cli.MaxRetries,
		JSON:       cli.JSON,
	})
	cmd.FatalIfErrorf(err)
}
