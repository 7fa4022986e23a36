package appsflyer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"pausee/internal/engine"
)

const (
	colCampaignID = "Campaign ID"
	colCampaign   = "Campaign"
)

// ParseInstalls reads an installs report CSV. Each data row is one install.
// Only the campaign id and name columns are kept.
func ParseInstalls(r io.Reader) ([]engine.InstallRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case colCampaignID:
			idCol = i
		case colCampaign:
			nameCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("missing %q column", colCampaignID)
	}

	var rows []engine.InstallRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := engine.InstallRow{CampaignID: field(rec, idCol)}
		if nameCol >= 0 {
			row.CampaignName = field(rec, nameCol)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
