// Package sheetsgw adapts the Google Sheets API to the domain's spreadsheet
// gateway port.
package sheetsgw

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/phleudt/mailscheduler/internal/domain"
)

// Gateway implements domain.SpreadsheetGateway on the Sheets v4 API.
type Gateway struct {
	service *sheets.Service
}

// NewGateway creates a gateway over an authenticated HTTP client.
func NewGateway(ctx context.Context, client *http.Client) (*Gateway, error) {
	service, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Gateway{service: service}, nil
}

// ReadBatch fetches all references in one BatchGet. The API returns value
// ranges in request order, which the port contract relies on.
func (g *Gateway) ReadBatch(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference) ([]domain.ValueRange, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ranges := make([]string, len(refs))
	for i, ref := range refs {
		ranges[i] = ref.A1()
	}

	resp, err := g.service.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(ranges...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, &domain.GatewayError{Operation: "values.batchGet", Err: err}
	}

	result := make([]domain.ValueRange, len(refs))
	for i, vr := range resp.ValueRanges {
		if i >= len(result) {
			break
		}
		result[i] = toDomainRange(vr)
	}
	return result, nil
}

// Write sets a single reference to value.
func (g *Gateway) Write(ctx context.Context, spreadsheetID string, ref domain.SpreadsheetReference, value string) error {
	body := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	_, err := g.service.Spreadsheets.Values.Update(spreadsheetID, ref.A1(), body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return &domain.GatewayError{Operation: "values.update", Err: err}
	}
	return nil
}

// WriteBatch writes values[i] to refs[i] in one batchUpdate.
func (g *Gateway) WriteBatch(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference, values []string) error {
	if len(refs) != len(values) {
		return fmt.Errorf("write batch has %d references but %d values", len(refs), len(values))
	}
	if len(refs) == 0 {
		return nil
	}

	data := make([]*sheets.ValueRange, len(refs))
	for i, ref := range refs {
		data[i] = &sheets.ValueRange{
			Range:  ref.A1(),
			Values: [][]interface{}{{values[i]}},
		}
	}
	body := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}
	_, err := g.service.Spreadsheets.Values.BatchUpdate(spreadsheetID, body).Context(ctx).Do()
	if err != nil {
		return &domain.GatewayError{Operation: "values.batchUpdate", Err: err}
	}
	return nil
}

// SearchColumn scans a column top to bottom for the first cell equal to
// value and returns its cell reference with a 1-based row, or nil when the
// value is absent.
func (g *Gateway) SearchColumn(ctx context.Context, spreadsheetID string, column domain.SpreadsheetReference, value string) (*domain.SpreadsheetReference, error) {
	ranges, err := g.ReadBatch(ctx, spreadsheetID, []domain.SpreadsheetReference{column})
	if err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, nil
	}
	letter, err := column.ColumnLetter()
	if err != nil {
		return nil, err
	}

	for i, row := range ranges[0].Values {
		if len(row) == 0 || row[0] != value {
			continue
		}
		cell, err := domain.NewCellReference(fmt.Sprintf("%s%d", letter, i+1))
		if err != nil {
			return nil, err
		}
		if column.SheetTitle != "" {
			cell = cell.WithSheet(column.SheetTitle)
		}
		return &cell, nil
	}
	return nil, nil
}

func toDomainRange(vr *sheets.ValueRange) domain.ValueRange {
	if vr == nil {
		return domain.ValueRange{}
	}
	values := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		values[i] = cells
	}
	return domain.ValueRange{Values: values}
}
