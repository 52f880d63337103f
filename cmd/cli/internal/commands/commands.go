package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/client"
	"github.com/wolfeidau/mailroster/internal/server"
)

type Globals struct {
	Debug   bool
	Version string

	Server     string
	Token      string
	Timeout    time.Duration
	MaxRetries uint
	JSON       bool

	out io.Writer
}

func (g *Globals) clients() (*client.Clients, error) {
	config := client.DefaultConfig()
	config.ServerURL = g.Server
	config.Token = g.Token
	config.Debug = g.Debug
	if g.Timeout > 0 {
		config.Timeout = g.Timeout
	}
	if g.MaxRetries > 0 {
		config.MaxRetries = g.MaxRetries
	}

	clients, err := client.NewClients(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clients: %w", err)
	}
	return clients, nil
}

func (g *Globals) writer() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// printJSON writes v as indented JSON.
func (g *Globals) printJSON(v any) error {
	enc := json.NewEncoder(g.writer())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (g *Globals) printAccounts(accounts ...*accountv1.Account) error {
	if g.JSON {
		return g.printJSON(accounts)
	}

	w := tabwriter.NewWriter(g.writer(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT ID\tADDRESS\tSTATE\tPRINCIPAL\tOWNER\tPLATFORM\tVERSION")
	for _, a := range accounts {
		principal := ""
		if a.IsPrincipal {
			principal = "yes"
		}
		owner := a.UserID
		if !a.IsCurrentOwner {
			owner += " (former)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			a.AccountID, a.Address, a.State, principal, owner, a.PlatformID, a.Version)
	}
	return w.Flush()
}

func (g *Globals) printEvents(events []*accountv1.Event) error {
	if g.JSON {
		return g.printJSON(events)
	}

	w := tabwriter.NewWriter(g.writer(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIMESTAMP\tKIND\tACTOR\tREASON\tDETAIL")
	for _, e := range events {
		actor := e.ActorName
		if actor == "" {
			actor = e.ActorID
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, e.Timestamp.Format(time.RFC3339Nano), e.Kind, actor, e.Reason, eventDetail(e))
	}
	return w.Flush()
}

func eventDetail(e *accountv1.Event) string {
	switch e.Kind {
	case "reassignment_out":
		return fmt.Sprintf("to %s (%s)", e.DestinationUserName, e.CorrelationID)
	case "reassignment_in":
		return fmt.Sprintf("from %s (%s)", e.OriginUserName, e.CorrelationID)
	case "edit":
		parts := make([]string, 0, len(e.Changes))
		for _, c := range e.Changes {
			parts = append(parts, fmt.Sprintf("%s: %q -> %q", c.Field, c.Before, c.After))
		}
		return strings.Join(parts, ", ")
	}
	return e.Provenance
}

// describeError adds the service's lifecycle error code to err.
func describeError(action string, err error) error {
	if code := server.LifecycleCode(err); code != "" {
		return fmt.Errorf("failed to %s (%s): %w", action, code, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}
