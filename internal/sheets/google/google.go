package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"ledger/internal/core"
	ports "ledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Mirror writes day snapshots of the ledger into one sheet of a Google
// spreadsheet. Writes are read-modify-write on the whole sheet, done with a
// single update, and are serialized per Mirror.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu sync.Mutex
}

// Ensure interface conformance
var _ ports.DayMirror = (*Mirror)(nil)

// LoadCredentials returns service account credentials from inline JSON or,
// when that is empty, from the file at path.
func LoadCredentials(inlineJSON, path string) ([]byte, error) {
	if s := strings.TrimSpace(inlineJSON); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// NewMirror creates a Sheets mirror authenticated with a service account.
func NewMirror(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte) (*Mirror, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, errors.New("missing sheet name")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Mirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     strings.TrimSpace(sheetName),
	}, nil
}

// WriteDay replaces the owner's rows for day.Date.
func (m *Mirror) WriteDay(ctx context.Context, owner string, day core.DayGroup) error {
	return m.replace(ctx, owner, dayMatcher(day.Date), dayRows(owner, []core.DayGroup{day}))
}

// WriteMonth replaces the owner's rows for the whole month.
func (m *Mirror) WriteMonth(ctx context.Context, owner string, month, year int, days []core.DayGroup) error {
	if err := core.ValidateMonthYear(month, year); err != nil {
		return err
	}
	return m.replace(ctx, owner, monthMatcher(month, year), dayRows(owner, days))
}

func (m *Mirror) replace(ctx context.Context, owner string, match func(string) bool, fresh [][]any) error {
	if m.svc == nil {
		return errors.New("sheets service not initialized")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rng := m.a1("A:G")
	resp, err := m.svc.Spreadsheets.Values.Get(m.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	rows := mergeRows(resp.Values, owner, match, fresh)
	written := fillTo(rows, len(resp.Values))

	// A single update spans the old extent; blank rows overwrite the stale tail.
	target := m.a1(fmt.Sprintf("A1:G%d", len(written)))
	vr := &gsheet.ValueRange{Values: written}
	if _, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, target, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", target, err)
	}

	slog.DebugContext(ctx, "Mirror sheet rewritten",
		"sheet", m.sheetName,
		"owner_id", owner,
		"rows", len(rows)-1,
		"fresh_rows", len(fresh))

	return nil
}

// a1 qualifies a range with the quoted sheet name.
func (m *Mirror) a1(r string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(m.sheetName, "'", "''"), r)
}
