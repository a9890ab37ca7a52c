package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

const (
	defaultBaseURL = "https://api.airtable.com/v0"

	fieldMobileNo   = "MobileNo"
	fieldFirstName  = "FirstName"
	fieldDriverName = "DriverName"
	fieldLessorName = "LessorName"
)

// AirtableClient reads driver records from an Airtable table.
type AirtableClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	baseID  string
	table   string
	view    string
	logger  *slog.Logger
}

type Options struct {
	BaseURL string
	APIKey  string
	BaseID  string
	Table   string
	View    string
}

func NewAirtableClient(httpClient *http.Client, opts Options, logger *slog.Logger) *AirtableClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = "Driver"
	}
	return &AirtableClient{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseID:  strings.TrimSpace(opts.BaseID),
		table:   table,
		view:    strings.TrimSpace(opts.View),
		logger:  logger.With("component", "airtable_client"),
	}
}

type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type airtableListResponse struct {
	Records []airtableRecord `json:"records"`
	Offset  string           `json:"offset,omitempty"`
}

type airtableErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// LookupByPhone resolves a carrier-format number to a driver. A number with no
// directory entry yields (nil, nil).
func (c *AirtableClient) LookupByPhone(ctx context.Context, carrierPhone string) (*domain.DriverRecord, error) {
	dirPhone, err := domain.ToDirectoryFormat(carrierPhone)
	if err != nil {
		return nil, err
	}
	page, err := c.listPage(ctx, equalsFormula(fieldMobileNo, dirPhone), "", 1)
	if err != nil {
		return nil, err
	}
	if len(page.Records) == 0 {
		c.logger.InfoContext(ctx, "No driver found for phone", "phone", carrierPhone)
		return nil, nil
	}
	rec := toDriverRecord(page.Records[0])
	return &rec, nil
}

// SearchByFirstName yields every driver whose first name equals name exactly.
// Pages are fetched lazily as the sequence is consumed; an error ends the sequence.
func (c *AirtableClient) SearchByFirstName(ctx context.Context, name string) iter.Seq2[domain.DriverRecord, error] {
	formula := equalsFormula(fieldFirstName, name)
	return func(yield func(domain.DriverRecord, error) bool) {
		offset := ""
		for {
			page, err := c.listPage(ctx, formula, offset, 0)
			if err != nil {
				yield(domain.DriverRecord{}, err)
				return
			}
			for _, r := range page.Records {
				if !yield(toDriverRecord(r), nil) {
					return
				}
			}
			if page.Offset == "" {
				return
			}
			offset = page.Offset
		}
	}
}

func (c *AirtableClient) listPage(ctx context.Context, formula, offset string, maxRecords int) (*airtableListResponse, error) {
	q := url.Values{}
	q.Set("filterByFormula", formula)
	if c.view != "" {
		q.Set("view", c.view)
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	if maxRecords > 0 {
		q.Set("maxRecords", fmt.Sprintf("%d", maxRecords))
	}
	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(c.table), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "Querying driver directory", "formula", formula, "offset", offset)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airtable request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("airtable read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr airtableErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Type != "" {
			return nil, fmt.Errorf("airtable http %d: %s: %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("airtable http %d", resp.StatusCode)
	}

	var out airtableListResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("airtable decode: %w", err)
	}
	return &out, nil
}

func toDriverRecord(r airtableRecord) domain.DriverRecord {
	name := stringField(r.Fields, fieldDriverName)
	if name == "" {
		name = stringField(r.Fields, fieldLessorName)
	}
	return domain.DriverRecord{
		MobileNumber: stringField(r.Fields, fieldMobileNo),
		DisplayName:  name,
	}
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []any:
		// lookup fields come back as arrays
		if len(s) > 0 {
			if first, ok := s[0].(string); ok {
				return strings.TrimSpace(first)
			}
		}
	}
	return ""
}

// equalsFormula builds {field} = 'value' with the value quoted for Airtable's formula language.
func equalsFormula(field, value string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
	return fmt.Sprintf("{%s} = '%s'", field, escaped)
}
