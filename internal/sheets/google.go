package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cxema-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
	"gorm.io/gorm"
)

const (
	googleCallTimeout = 10 * time.Second
	gridRange         = "!A1:K400"
)

// GoogleGateway publishes and reads snapshots through the Google Sheets API,
// authenticated by the stored OAuth token. Every API call runs under a
// bounded timeout; transport failures surface as EXTERNAL_UNAVAILABLE rather
// than hanging the request.
type GoogleGateway struct {
	DB    *gorm.DB
	OAuth *oauth2.Config
}

func NewGoogleGateway(db *gorm.DB, oauthCfg *oauth2.Config) *GoogleGateway {
	return &GoogleGateway{DB: db, OAuth: oauthCfg}
}

func (g *GoogleGateway) client(ctx context.Context) (*sheets.Service, error) {
	var cred domain.GoogleCredential
	err := g.DB.WithContext(ctx).First(&cred, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuthRequired
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(cred.Token, &tok); err != nil {
		return nil, ErrAuthRequired
	}
	src := g.OAuth.TokenSource(ctx, &tok)
	svc, err := sheets.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, ErrExternalUnavailable
	}
	return svc, nil
}

func (g *GoogleGateway) EnsureSpreadsheet(ctx context.Context, projectID int64, title, spreadsheetID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, googleCallTimeout)
	defer cancel()

	svc, err := g.client(ctx)
	if err != nil {
		return "", err
	}

	if spreadsheetID == "" {
		created, err := svc.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: "Смета — " + title},
			Sheets: []*sheets.Sheet{
				{Properties: &sheets.SheetProperties{Title: defaultTabName}},
			},
		}).Context(ctx).Do()
		if err != nil {
			log.Error().Err(err).Int64("project_id", projectID).Msg("Spreadsheet create failed")
			return "", ErrExternalUnavailable
		}
		return created.SpreadsheetId, nil
	}

	// Make sure the tab still exists on a previously linked spreadsheet.
	meta, err := svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		log.Error().Err(err).Str("spreadsheet_id", spreadsheetID).Msg("Spreadsheet get failed")
		return "", ErrExternalUnavailable
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == defaultTabName {
			return spreadsheetID, nil
		}
	}
	_, err = svc.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: defaultTabName},
			}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", ErrExternalUnavailable
	}
	return spreadsheetID, nil
}

func (g *GoogleGateway) WriteRows(ctx context.Context, spreadsheetID, tab string, snap *Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, googleCallTimeout)
	defer cancel()

	svc, err := g.client(ctx)
	if err != nil {
		return err
	}

	rng := tab + gridRange
	if _, err := svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return ErrExternalUnavailable
	}
	grid := buildGrid(snap, snap.Meta.LastPublishedAt)
	_, err = svc.Spreadsheets.Values.Update(spreadsheetID, tab+"!A1", &sheets.ValueRange{
		Values: grid,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		log.Error().Err(err).Str("spreadsheet_id", spreadsheetID).Msg("Spreadsheet write failed")
		return ErrExternalUnavailable
	}
	return nil
}

func (g *GoogleGateway) ReadRows(ctx context.Context, spreadsheetID, tab string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, googleCallTimeout)
	defer cancel()

	svc, err := g.client(ctx)
	if err != nil {
		return nil, err
	}

	if tab == "" {
		tab = defaultTabName
	}
	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, fmt.Sprintf("%s%s", tab, gridRange)).Context(ctx).Do()
	if err != nil {
		log.Error().Err(err).Str("spreadsheet_id", spreadsheetID).Msg("Spreadsheet read failed")
		return nil, ErrExternalUnavailable
	}
	return parseGrid(resp.Values)
}
