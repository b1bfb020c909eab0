package workspace

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Row is one result row keyed by column name. Values arrive as strings in
// JSON_ARRAY format; absent or NULL cells are empty strings.
type Row map[string]string

// Float returns the named column parsed as a float, or 0 when absent or
// unparsable. Billing aggregates tolerate missing cells by design.
func (r Row) Float(col string) float64 {
	v, err := strconv.ParseFloat(r[col], 64)
	if err != nil {
		return 0
	}
	return v
}

// Int returns the named column parsed as an integer, or 0.
func (r Row) Int(col string) int {
	v, err := strconv.Atoi(r[col])
	if err != nil {
		return 0
	}
	return v
}

// Bool returns the named column parsed as a boolean, or false.
func (r Row) Bool(col string) bool {
	v, err := strconv.ParseBool(r[col])
	if err != nil {
		return false
	}
	return v
}

type statementRequest struct {
	WarehouseID string `json:"warehouse_id"`
	Statement   string `json:"statement"`
	Format      string `json:"format"`
	Disposition string `json:"disposition"`
	WaitTimeout string `json:"wait_timeout"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"status"`
	Manifest *struct {
		Schema struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest,omitempty"`
	Result *struct {
		DataArray [][]*string `json:"data_array"`
	} `json:"result,omitempty"`
}

// ExecuteSQL runs a statement on the given warehouse and returns the rows
// keyed by column name. The statement execution API is called with an inline
// JSON result and a 30s server-side wait; anything that does not reach
// SUCCEEDED is an error.
func (c *Client) ExecuteSQL(ctx context.Context, warehouseID, statement string) ([]Row, error) {
	c.log.Infow("executing SQL", "statement", truncate(statement, 100))

	req := statementRequest{
		WarehouseID: warehouseID,
		Statement:   statement,
		Format:      "JSON_ARRAY",
		Disposition: "INLINE",
		WaitTimeout: "30s",
	}
	var resp statementResponse
	if err := c.do(ctx, http.MethodPost, "/api/2.0/sql/statements", nil, req, &resp); err != nil {
		return nil, err
	}

	switch resp.Status.State {
	case "SUCCEEDED":
	case "FAILED":
		msg := "unknown error"
		if resp.Status.Error != nil {
			msg = resp.Status.Error.Message
		}
		return nil, fmt.Errorf("SQL execution failed: %s", msg)
	default:
		return nil, fmt.Errorf("SQL execution did not succeed: %s", resp.Status.State)
	}

	if resp.Result == nil || len(resp.Result.DataArray) == 0 {
		return nil, nil
	}

	var columns []string
	if resp.Manifest != nil {
		for _, col := range resp.Manifest.Schema.Columns {
			columns = append(columns, col.Name)
		}
	}

	rows := make([]Row, 0, len(resp.Result.DataArray))
	for _, raw := range resp.Result.DataArray {
		row := make(Row, len(columns))
		for i, name := range columns {
			if i < len(raw) && raw[i] != nil {
				row[name] = *raw[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
