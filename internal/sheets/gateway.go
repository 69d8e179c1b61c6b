package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const defaultTabName = "PROJECT"

// ParseMode validates a sync mode string.
func ParseMode(raw string) (string, error) {
	switch raw {
	case "mock", "real":
		return raw, nil
	}
	return "", ErrModeInvalid
}

// Gateway abstracts the external spreadsheet capability. The mock gateway
// keeps snapshots as local JSON files; the Google gateway talks to the
// Sheets API. Either way the engine only ever publishes and reads whole
// snapshots.
type Gateway interface {
	// EnsureSpreadsheet returns a spreadsheet id for the project, creating
	// one when spreadsheetID is empty.
	EnsureSpreadsheet(ctx context.Context, projectID int64, title, spreadsheetID string) (string, error)
	WriteRows(ctx context.Context, spreadsheetID, tab string, snap *Snapshot) error
	ReadRows(ctx context.Context, spreadsheetID, tab string) (*Snapshot, error)
}

// MockGateway stores each spreadsheet as <dir>/<spreadsheet_id>.json. It is
// the development default: the JSON file can be edited by hand and imported
// back, exercising the whole preview/apply path without Google.
type MockGateway struct {
	Dir string
}

func NewMockGateway(dir string) *MockGateway {
	return &MockGateway{Dir: dir}
}

func (g *MockGateway) EnsureSpreadsheet(_ context.Context, projectID int64, _, spreadsheetID string) (string, error) {
	if spreadsheetID != "" {
		return spreadsheetID, nil
	}
	return fmt.Sprintf("mock-sheet-%d", projectID), nil
}

func (g *MockGateway) File(spreadsheetID string) string {
	return filepath.Join(g.Dir, spreadsheetID+".json")
}

func (g *MockGateway) WriteRows(_ context.Context, spreadsheetID, _ string, snap *Snapshot) error {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.File(spreadsheetID), b, 0o644)
}

func (g *MockGateway) ReadRows(_ context.Context, spreadsheetID, _ string) (*Snapshot, error) {
	raw, err := os.ReadFile(g.File(spreadsheetID))
	if os.IsNotExist(err) {
		return nil, ErrSheetNotPublished
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, ErrSheetFormatInvalid
	}
	return &snap, nil
}
