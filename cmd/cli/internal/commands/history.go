package commands

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
	"github.com/wolfeidau/mailroster/internal/ledger"
)

type HistoryCmd struct {
	Show   ShowHistoryCmd   `cmd:"" default:"withargs" help:"Show the ownership history of an account"`
	Export ExportHistoryCmd `cmd:"" help:"Export the ownership history of an account to an archive"`
	Verify VerifyHistoryCmd `cmd:"" help:"Verify a history archive and print its events"`
}

func fetchHistory(ctx context.Context, globals *Globals, accountID string) ([]*accountv1.Event, error) {
	clients, err := globals.clients()
	if err != nil {
		return nil, err
	}

	resp, err := clients.Accounts.GetHistory(ctx, connect.NewRequest(&accountv1.GetHistoryRequest{AccountID: accountID}))
	if err != nil {
		return nil, describeError("get history", err)
	}
	return resp.Msg.Events, nil
}

type ShowHistoryCmd struct {
	AccountID string `arg:"" help:"Account identifier"`
}

func (s *ShowHistoryCmd) Run(ctx context.Context, globals *Globals) error {
	events, err := fetchHistory(ctx, globals, s.AccountID)
	if err != nil {
		return err
	}
	return globals.printEvents(events)
}

type ExportHistoryCmd struct {
	AccountID string `arg:"" help:"Account identifier"`
	Output    string `short:"o" help:"Archive file to write" required:""`
}

func (e *ExportHistoryCmd) Run(ctx context.Context, globals *Globals) error {
	events, err := fetchHistory(ctx, globals, e.AccountID)
	if err != nil {
		return err
	}

	manifest, err := ledger.ExportFile(e.Output, e.AccountID, events, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}

	fmt.Fprintf(globals.writer(), "Exported %d events of %s to %s (crc64nvme %s)\n",
		manifest.Events, manifest.AccountID, e.Output, manifest.Checksum)
	return nil
}

type VerifyHistoryCmd struct {
	Archive string `arg:"" help:"Archive file to verify" type:"existingfile"`
}

func (v *VerifyHistoryCmd) Run(ctx context.Context, globals *Globals) error {
	manifest, events, err := ledger.VerifyFile(v.Archive)
	if err != nil {
		return fmt.Errorf("archive %s failed verification: %w", v.Archive, err)
	}

	if globals.JSON {
		return globals.printJSON(struct {
			Manifest *ledger.Manifest   `json:"manifest"`
			Events   []*accountv1.Event `json:"events"`
		}{manifest, events})
	}

	fmt.Fprintf(globals.writer(), "Archive OK: %d events of %s exported %s\n\n",
		manifest.Events, manifest.AccountID, manifest.ExportedAt.Format(time.RFC3339))
	return globals.printEvents(events)
}
