// Package ledger exports an account's ownership history as a self-verifying audit archive.
//
// An archive is a zstd stream of JSON lines: a header, one line per event in ledger order,
// and a trailer carrying the CRC64-NVME checksum of every uncompressed byte before it.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/mailroster/internal/api/accountv1"
)

// Format identifies the archive layout in the header line.
const Format = "mailroster.ledger.v1"

// maxLineSize bounds a single archived event.
const maxLineSize = 1 << 20

var (
	ErrMalformedArchive = errors.New("malformed ledger archive")
	ErrChecksumMismatch = errors.New("ledger archive checksum mismatch")
)

// Header is the first line of an archive.
type Header struct {
	Format     string    `json:"format"`
	AccountID  string    `json:"accountId"`
	ExportedAt time.Time `json:"exportedAt"`
	Events     int       `json:"events"`
}

type trailer struct {
	Checksum string `json:"crc64nvme"`
}

// Manifest summarises a written or verified archive.
type Manifest struct {
	Header
	Checksum string
}

// Export writes events of accountID to w. Events must be in ledger order.
func Export(w io.Writer, accountID string, events []*accountv1.Event, exportedAt time.Time) (*Manifest, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	h := crc64nvme.New()
	body := io.MultiWriter(enc, h)

	header := Header{
		Format:     Format,
		AccountID:  accountID,
		ExportedAt: exportedAt.UTC(),
		Events:     len(events),
	}
	if err := writeLine(body, header); err != nil {
		enc.Close()
		return nil, err
	}
	for _, e := range events {
		if e.AccountID != accountID {
			enc.Close()
			return nil, fmt.Errorf("event %s belongs to account %s, not %s", e.EventID, e.AccountID, accountID)
		}
		if err := writeLine(body, e); err != nil {
			enc.Close()
			return nil, err
		}
	}

	checksum := fmt.Sprintf("%016x", h.Sum64())
	if err := writeLine(enc, trailer{Checksum: checksum}); err != nil {
		enc.Close()
		return nil, err
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close encoder: %w", err)
	}

	return &Manifest{Header: header, Checksum: checksum}, nil
}

// Verify reads an archive from r and checks its checksum, event count and ordering.
func Verify(r io.Reader) (*Manifest, []*accountv1.Event, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var lines [][]byte
	for scanner.Scan() {
		lines = append(lines, bytes.Clone(scanner.Bytes()))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedArchive, err)
	}
	if len(lines) < 2 {
		return nil, nil, fmt.Errorf("%w: missing header or trailer", ErrMalformedArchive)
	}

	h := crc64nvme.New()
	for _, line := range lines[:len(lines)-1] {
		h.Write(line)
		h.Write([]byte{'\n'})
	}

	var t trailer
	if err := json.Unmarshal(lines[len(lines)-1], &t); err != nil || t.Checksum == "" {
		return nil, nil, fmt.Errorf("%w: invalid trailer", ErrMalformedArchive)
	}
	checksum := fmt.Sprintf("%016x", h.Sum64())
	if checksum != t.Checksum {
		return nil, nil, fmt.Errorf("%w: computed %s, recorded %s", ErrChecksumMismatch, checksum, t.Checksum)
	}

	var header Header
	if err := json.Unmarshal(lines[0], &header); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid header: %w", ErrMalformedArchive, err)
	}
	if header.Format != Format {
		return nil, nil, fmt.Errorf("%w: unsupported format %q", ErrMalformedArchive, header.Format)
	}

	eventLines := lines[1 : len(lines)-1]
	if len(eventLines) != header.Events {
		return nil, nil, fmt.Errorf("%w: header lists %d events, found %d", ErrMalformedArchive, header.Events, len(eventLines))
	}

	events := make([]*accountv1.Event, 0, len(eventLines))
	for i, line := range eventLines {
		e := &accountv1.Event{}
		if err := json.Unmarshal(line, e); err != nil {
			return nil, nil, fmt.Errorf("%w: event %d: %w", ErrMalformedArchive, i, err)
		}
		if e.AccountID != header.AccountID {
			return nil, nil, fmt.Errorf("%w: event %d belongs to account %s", ErrMalformedArchive, i, e.AccountID)
		}
		if i > 0 {
			prev := events[i-1]
			if e.Seq <= prev.Seq || !e.Timestamp.After(prev.Timestamp) {
				return nil, nil, fmt.Errorf("%w: event %d is out of order", ErrMalformedArchive, i)
			}
		}
		events = append(events, e)
	}

	return &Manifest{Header: header, Checksum: checksum}, events, nil
}

// ExportFile writes an archive to path, removing the partial file on failure.
func ExportFile(path, accountID string, events []*accountv1.Event, exportedAt time.Time) (*Manifest, error) {
	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	manifest, err := Export(dst, accountID, events, exportedAt)
	if err != nil {
		if closeErr := dst.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close archive during error cleanup")
		}
		os.Remove(path)
		return nil, err
	}

	if err := dst.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}

	log.Info().
		Str("account_id", accountID).
		Int("events", manifest.Events).
		Str("checksum", manifest.Checksum).
		Str("archive_path", path).
		Msg("Ledger archived with zstd compression")

	return manifest, nil
}

// VerifyFile verifies the archive at path.
func VerifyFile(path string) (*Manifest, []*accountv1.Event, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	return Verify(src)
}

func writeLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode archive line: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("failed to write archive line: %w", err)
	}
	return nil
}
