// Package sheets implements the booking-store accessor against the
// Google Sheets API. Each logical table is one named sheet in a single
// spreadsheet; the whole sheet is read and written as a block.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gsheets "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"

	"github.com/ucscslugworks/bambu-printer-automations/internal/sheet"
)

// Client reads and writes spreadsheet tables. Implements engine.Accessor.
type Client struct {
	svc           *gsheets.Service
	spreadsheetID string
}

// New builds a client from OAuth client credentials and a previously
// obtained user token with the spreadsheets scope.
func New(ctx context.Context, credentialsPath, tokenPath, spreadsheetID string) (*Client, error) {
	creds, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(creds, gsheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}

	tok, err := readToken(tokenPath)
	if err != nil {
		return nil, err
	}

	svc, err := gsheets.NewService(ctx, option.WithTokenSource(cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("build sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// ReadTable fetches the named sheet in full. The first row is the
// header; every data row is padded to the header's width so downstream
// column lookups never index out of range.
func (c *Client) ReadTable(ctx context.Context, name string) (sheet.Table, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, name).Context(ctx).Do()
	if err != nil {
		return sheet.Table{}, fmt.Errorf("read table %q: %w", name, err)
	}
	if len(resp.Values) == 0 {
		return sheet.Table{}, fmt.Errorf("read table %q: sheet is empty", name)
	}

	header := stringRow(resp.Values[0], len(resp.Values[0]))
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		rows = append(rows, stringRow(raw, len(header)))
	}
	return sheet.Table{Name: name, Header: header, Rows: rows}, nil
}

// WriteTable replaces the named sheet's contents below the header.
// USER_ENTERED keeps the spreadsheet's own formatting rules applied.
func (c *Client) WriteTable(ctx context.Context, t sheet.Table) error {
	values := make([][]any, 0, len(t.Rows)+1)
	values = append(values, anyRow(t.Header))
	for _, row := range t.Rows {
		values = append(values, anyRow(row))
	}

	_, err := c.svc.Spreadsheets.Values.Update(
		c.spreadsheetID, t.Name, &gsheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write table %q: %w", t.Name, err)
	}
	return nil
}

// stringRow converts an API row to strings, padded to width.
func stringRow(raw []any, width int) []string {
	row := make([]string, width)
	for i, v := range raw {
		if i >= width {
			break
		}
		row[i] = fmt.Sprint(v)
	}
	return row
}

func anyRow(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sheets token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse sheets token: %w", err)
	}
	return &tok, nil
}
