package journal

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"fx-analyst-bot/internal/types"
)

// Sheets appends rows to a Google spreadsheet.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	rng           string
}

// NewSheets authenticates with a service-account file when one is given and
// falls back to application default credentials otherwise. Extra client
// options are appended last.
func NewSheets(ctx context.Context, spreadsheetID, rng, credentialsFile string, opts ...option.ClientOption) (*Sheets, error) {
	if spreadsheetID == "" {
		return nil, errors.New("journal.spreadsheet_id is required for the SHEETS sink")
	}
	if rng == "" {
		rng = "Sheet1!A:H"
	}
	var all []option.ClientOption
	if credentialsFile != "" {
		all = append(all, option.WithCredentialsFile(credentialsFile))
	}
	all = append(all, opts...)

	svc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Sheets{svc: svc, spreadsheetID: spreadsheetID, rng: rng}, nil
}

func (s *Sheets) Append(ctx context.Context, records []types.LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(records))
	for _, r := range records {
		cells := row(r)
		line := make([]interface{}, len(cells))
		for i, c := range cells {
			line[i] = c
		}
		values = append(values, line)
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, s.rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}

func (s *Sheets) Close() error { return nil }
