package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/mailroster/internal/auth"
)

type TokenCmd struct {
	User       string        `help:"User identifier the token acts as" required:""`
	Company    string        `help:"Company identifier of the user" required:""`
	Name       string        `help:"Display name recorded as the actor of lifecycle events"`
	Roles      []string      `help:"Roles granted to the token (admin, operator, viewer)" default:"viewer"`
	TTL        time.Duration `help:"Token lifetime" default:"1h"`
	SigningKey string        `help:"JWT signing key" required:"" env:"JWT_SIGNING_KEY"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	principal, err := t.principal()
	if err != nil {
		return err
	}

	token, err := auth.IssueToken(t.SigningKey, principal, t.TTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.writer(), token)
	return nil
}

func (t *TokenCmd) principal() (auth.Principal, error) {
	userID, err := uuid.Parse(t.User)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("invalid user: %w", err)
	}
	companyID, err := uuid.Parse(t.Company)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("invalid company: %w", err)
	}

	roles := make([]auth.Role, 0, len(t.Roles))
	for _, r := range t.Roles {
		role := auth.Role(r)
		if _, ok := auth.RolePermissions[role]; !ok {
			return auth.Principal{}, fmt.Errorf("unknown role %q", r)
		}
		roles = append(roles, role)
	}

	return auth.Principal{UserID: userID, CompanyID: companyID, Name: t.Name, Roles: roles}, nil
}
