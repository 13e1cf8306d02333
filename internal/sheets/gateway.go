// Package sheets provides the remote tabular gateway over the Google
// Sheets API, plus the structured Failure type used across the sync
// subsystem.
//
// The gateway treats the remote spreadsheet as rectangular ranges of
// untyped cell values. Every operation performs blocking network I/O and
// normalizes any transport, auth or remote-service error into a *Failure;
// callers never see a raw API error.
package sheets

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// SpreadsheetInfo is the metadata subset the sync subsystem cares about.
type SpreadsheetInfo struct {
	Title      string
	SheetNames []string
}

// Gateway issues read/write/append/clear operations against a remote
// spreadsheet-like service. Ranges use sheet-name-and-A1 expressions,
// e.g. "Monitoreos!A2:T".
type Gateway interface {
	// ReadRange returns the rows of a range. An empty range yields a nil
	// slice, never an error.
	ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error)

	// WriteRange replaces the contents of a range with the given rows.
	// The write is atomic from the caller's perspective.
	WriteRange(ctx context.Context, spreadsheetID, rng string, rows [][]any) error

	// AppendRows appends rows after the last non-empty row of the range.
	AppendRows(ctx context.Context, spreadsheetID, rng string, rows [][]any) error

	// ClearRange removes all values from a range.
	ClearRange(ctx context.Context, spreadsheetID, rng string) error

	// Metadata fetches spreadsheet metadata. Used as the reachability
	// probe during sync configuration.
	Metadata(ctx context.Context, spreadsheetID string) (*SpreadsheetInfo, error)
}

// gateway implements Gateway over the Sheets v4 API.
type gateway struct {
	svc *gsheets.Service
}

// New creates a Gateway authenticated with the given service-account
// credentials file.
func New(ctx context.Context, credentialsFile string) (Gateway, error) {
	svc, err := gsheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, NewFailure(KindAuth, "failed to create sheets client", err)
	}
	return &gateway{svc: svc}, nil
}

// NewWithCredentialsJSON creates a Gateway from raw service-account JSON,
// building the OAuth2 transport explicitly. Used when credentials come
// from somewhere other than a file on disk.
func NewWithCredentialsJSON(ctx context.Context, data []byte) (Gateway, error) {
	cfg, err := google.JWTConfigFromJSON(data, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, NewFailure(KindAuth, "failed to parse service-account credentials", err)
	}
	svc, err := gsheets.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, NewFailure(KindAuth, "failed to create sheets client", err)
	}
	return &gateway{svc: svc}, nil
}

// NewWithService wraps an already constructed Sheets service. Useful when
// the caller owns transport construction.
func NewWithService(svc *gsheets.Service) Gateway {
	return &gateway{svc: svc}
}

func (g *gateway) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrap(fmt.Sprintf("failed to read range %s", rng), err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return resp.Values, nil
}

func (g *gateway) WriteRange(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	body := &gsheets.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, rng, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return wrap(fmt.Sprintf("failed to write range %s", rng), err)
	}
	return nil
}

func (g *gateway) AppendRows(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	body := &gsheets.ValueRange{Values: rows}
	_, err := g.svc.Spreadsheets.Values.Append(spreadsheetID, rng, body).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return wrap(fmt.Sprintf("failed to append to range %s", rng), err)
	}
	return nil
}

func (g *gateway) ClearRange(ctx context.Context, spreadsheetID, rng string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &gsheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return wrap(fmt.Sprintf("failed to clear range %s", rng), err)
	}
	return nil
}

func (g *gateway) Metadata(ctx context.Context, spreadsheetID string) (*SpreadsheetInfo, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, wrap(fmt.Sprintf("failed to fetch metadata for spreadsheet %s", spreadsheetID), err)
	}

	info := &SpreadsheetInfo{}
	if resp.Properties != nil {
		info.Title = resp.Properties.Title
	}
	for _, sheet := range resp.Sheets {
		if sheet.Properties != nil {
			info.SheetNames = append(info.SheetNames, sheet.Properties.Title)
		}
	}
	return info, nil
}
