package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/shhady/leadform/backend/config"
)

const createItemMutation = `mutation ($board: ID!, $group: String, $name: String!, $columns: JSON) {
  create_item (board_id: $board, group_id: $group, item_name: $name, column_values: $columns) { id }
}`

// BoardClient creates one item per submission on a monday.com board.
type BoardClient struct {
	config     *config.BoardConfig
	httpClient *http.Client
}

// BoardRequest is a GraphQL request body.
type BoardRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// BoardResponse is the subset of the GraphQL response we read.
type BoardResponse struct {
	Data struct {
		CreateItem struct {
			ID string `json:"id"`
		} `json:"create_item"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func NewBoardClient(cfg *config.BoardConfig) *BoardClient {
	return &BoardClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ColumnValues maps payload fields onto board columns. Fields without a
// configured column are left out.
func (c *BoardClient) ColumnValues(p *Payload) map[string]string {
	values := make(map[string]string, len(c.config.Columns))
	for field, column := range c.config.Columns {
		if v := p.Get(field); v != "" {
			values[column] = v
		}
	}
	return values
}

// CreateItem creates an item named after the submitter and returns its id.
func (c *BoardClient) CreateItem(ctx context.Context, p *Payload) (string, error) {
	columns, err := json.Marshal(c.ColumnValues(p))
	if err != nil {
		return "", fmt.Errorf("failed to marshal column values: %w", err)
	}

	name := p.Get("fullName")
	if name == "" {
		name = "ליד חדש"
	}
	vars := map[string]any{
		"board":   c.config.BoardID,
		"name":    name,
		"columns": string(columns),
	}
	if c.config.GroupID != "" {
		vars["group"] = c.config.GroupID
	}

	jsonData, err := json.Marshal(BoardRequest{Query: createItemMutation, Variables: vars})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.config.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("board API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result BoardResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w, body: %s", err, string(body))
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("board API error: %s", result.Errors[0].Message)
	}
	if result.ErrorMessage != "" {
		return "", fmt.Errorf("board API error: %s", result.ErrorMessage)
	}
	if result.Data.CreateItem.ID == "" {
		return "", fmt.Errorf("board API returned no item id")
	}

	return result.Data.CreateItem.ID, nil
}

// mappedFields lists the configured fields in a stable order, for logging.
func (c *BoardClient) mappedFields() []string {
	fields := make([]string, 0, len(c.config.Columns))
	for f := range c.config.Columns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
