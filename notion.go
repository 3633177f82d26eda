package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// notionClient implements sourceAPI over the Notion REST API.
type notionClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	apiVersion string
	pageSize   int
}

func newNotionClient(cfg NotionConfig, pageSize int) *notionClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &notionClient{
		httpClient: &http.Client{Transport: transport, Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		apiVersion: cfg.APIVersion,
		pageSize:   pageSize,
	}
}

// --- wire types ---

type apiList struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

type apiRichText struct {
	PlainText string `json:"plain_text"`
}

func plainText(parts []apiRichText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return b.String()
}

type apiOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// flexibleText decodes a field the API serves either as a plain string or
// as a rich-text array, depending on object and API version.
type flexibleText string

func (f *flexibleText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleText(s)
		return nil
	}
	var parts []apiRichText
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*f = flexibleText(plainText(parts))
	return nil
}

type apiPropertyDef struct {
	Name        string       `json:"name"`
	Type        PropertyKind `json:"type"`
	Description flexibleText `json:"description"`
	Select      *struct {
		Options []apiOption `json:"options"`
	} `json:"select"`
	MultiSelect *struct {
		Options []apiOption `json:"options"`
	} `json:"multi_select"`
	Relation *struct {
		DatabaseID string `json:"database_id"`
	} `json:"relation"`
}

type apiDatabase struct {
	ID          string                    `json:"id"`
	Title       []apiRichText             `json:"title"`
	Description []apiRichText             `json:"description"`
	Properties  map[string]apiPropertyDef `json:"properties"`
}

type apiUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiFile struct {
	Name     string `json:"name"`
	File     *struct{ URL string `json:"url"` } `json:"file"`
	External *struct{ URL string `json:"url"` } `json:"external"`
}

type apiPropertyValue struct {
	Type        PropertyKind  `json:"type"`
	Title       []apiRichText `json:"title"`
	RichText    []apiRichText `json:"rich_text"`
	Number      *json.Number  `json:"number"`
	Select      *apiOption    `json:"select"`
	MultiSelect []apiOption   `json:"multi_select"`
	Date        *struct {
		Start string `json:"start"`
	} `json:"date"`
	Checkbox    *bool   `json:"checkbox"`
	URL         *string `json:"url"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Relation    []struct {
		ID string `json:"id"`
	} `json:"relation"`
	People         []apiUser `json:"people"`
	Files          []apiFile `json:"files"`
	CreatedTime    *string   `json:"created_time"`
	LastEditedTime *string   `json:"last_edited_time"`
	CreatedBy      *apiUser  `json:"created_by"`
	LastEditedBy   *apiUser  `json:"last_edited_by"`
}

type apiPage struct {
	ID         string                      `json:"id"`
	Properties map[string]apiPropertyValue `json:"properties"`
}

type apiBlock struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	HasChildren bool         `json:"has_children"`
	payload     json.RawMessage
}

func (b *apiBlock) UnmarshalJSON(data []byte) error {
	type head apiBlock
	if err := json.Unmarshal(data, (*head)(b)); err != nil {
		return err
	}
	// per-type payload lives under a key named after the block type
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	b.payload = fields[b.Type]
	return nil
}

// --- transport ---

// do issues one API call. HTTP 429 becomes a *rateLimitSignal carrying the
// Retry-After duration; any other non-2xx status is a transport error.
func (c *notionClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return &rateLimitSignal{retryAfter: retryAfterDuration(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: malformed response: %w", method, path, err)
	}
	return nil
}

// retryAfterDuration parses a Retry-After header value in seconds,
// defaulting to one second when absent or malformed.
func retryAfterDuration(header string) time.Duration {
	if header != "" {
		if secs, err := strconv.ParseFloat(header, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Second
}

func (list *apiList) nextCursor() string {
	if list.HasMore && list.NextCursor != nil {
		return *list.NextCursor
	}
	return ""
}

// --- sourceAPI implementation ---

func (c *notionClient) SearchDatabases(ctx context.Context, cursor string) ([]SourceDatabase, string, error) {
	body := map[string]any{
		"filter":    map[string]string{"property": "object", "value": "database"},
		"page_size": c.pageSize,
	}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	var list apiList
	if err := c.do(ctx, http.MethodPost, "/v1/search", body, &list); err != nil {
		return nil, "", err
	}

	dbs := make([]SourceDatabase, 0, len(list.Results))
	for _, raw := range list.Results {
		var db apiDatabase
		if err := json.Unmarshal(raw, &db); err != nil {
			return nil, "", fmt.Errorf("malformed database object: %w", err)
		}
		dbs = append(dbs, parseDatabase(db))
	}
	return dbs, list.nextCursor(), nil
}

func (c *notionClient) QueryRecords(ctx context.Context, databaseID, cursor string) ([]SourceRecord, string, error) {
	body := map[string]any{"page_size": c.pageSize}
	if cursor != "" {
		body["start_cursor"] = cursor
	}

	var list apiList
	path := "/v1/databases/" + url.PathEscape(databaseID) + "/query"
	if err := c.do(ctx, http.MethodPost, path, body, &list); err != nil {
		return nil, "", err
	}

	records := make([]SourceRecord, 0, len(list.Results))
	for _, raw := range list.Results {
		var page apiPage
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, "", fmt.Errorf("malformed page object: %w", err)
		}
		rec := SourceRecord{ID: page.ID, Properties: make(map[string]PropertyValue, len(page.Properties))}
		for name, val := range page.Properties {
			rec.Properties[name] = parsePropertyValue(val)
		}
		records = append(records, rec)
	}
	return records, list.nextCursor(), nil
}

func (c *notionClient) BlockChildren(ctx context.Context, blockID, cursor string) ([]Block, string, error) {
	path := "/v1/blocks/" + url.PathEscape(blockID) + "/children?page_size=" + strconv.Itoa(c.pageSize)
	if cursor != "" {
		path += "&start_cursor=" + url.QueryEscape(cursor)
	}

	var list apiList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, "", err
	}

	blocks := make([]Block, 0, len(list.Results))
	for _, raw := range list.Results {
		var blk apiBlock
		if err := json.Unmarshal(raw, &blk); err != nil {
			return nil, "", fmt.Errorf("malformed block object: %w", err)
		}
		blocks = append(blocks, parseBlock(blk))
	}
	return blocks, list.nextCursor(), nil
}

// --- parsing into the source model ---

// parseDatabase converts an API database object. Property order from the
// API is a JSON object, so a deterministic order is imposed here: the title
// property first, then the rest alphabetically.
func parseDatabase(db apiDatabase) SourceDatabase {
	title := plainText(db.Title)
	if title == "" {
		id := strings.ReplaceAll(db.ID, "-", "")
		if len(id) > 8 {
			id = id[:8]
		}
		title = "untitled_" + id
	}

	names := make([]string, 0, len(db.Properties))
	for name := range db.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := db.Properties[names[i]], db.Properties[names[j]]
		if (pi.Type == KindTitle) != (pj.Type == KindTitle) {
			return pi.Type == KindTitle
		}
		return names[i] < names[j]
	})

	out := SourceDatabase{
		ID:          db.ID,
		Title:       title,
		Description: plainText(db.Description),
	}
	for _, name := range names {
		def := db.Properties[name]
		prop := PropertyDefinition{
			Name:        name,
			Kind:        def.Type,
			Description: string(def.Description),
		}
		switch {
		case def.Select != nil:
			prop.Options = parseOptions(def.Select.Options)
		case def.MultiSelect != nil:
			prop.Options = parseOptions(def.MultiSelect.Options)
		case def.Relation != nil:
			prop.RelationTo = def.Relation.DatabaseID
		}
		out.Properties = append(out.Properties, prop)
	}
	return out
}

func parseOptions(opts []apiOption) []Option {
	out := make([]Option, len(opts))
	for i, o := range opts {
		color := o.Color
		if color == "" {
			color = "default"
		}
		out[i] = Option{ID: o.ID, Value: o.Name, Color: color}
	}
	return out
}

func parsePropertyValue(v apiPropertyValue) PropertyValue {
	out := PropertyValue{Kind: v.Type}
	switch v.Type {
	case KindTitle:
		out.Text = ptr(plainText(v.Title))
	case KindRichText:
		out.Text = ptr(plainText(v.RichText))
	case KindNumber:
		if v.Number != nil {
			out.Number = ptr(v.Number.String())
		}
	case KindSelect:
		if v.Select != nil {
			out.Text = ptr(v.Select.Name)
		}
	case KindMultiSelect:
		for _, o := range v.MultiSelect {
			out.List = append(out.List, o.Name)
		}
	case KindDate:
		if v.Date != nil {
			out.Time = ptr(v.Date.Start)
		}
	case KindCheckbox:
		out.Bool = v.Checkbox
	case KindURL:
		out.Text = v.URL
	case KindEmail:
		out.Text = v.Email
	case KindPhone:
		out.Text = v.PhoneNumber
	case KindRelation:
		for _, r := range v.Relation {
			out.List = append(out.List, r.ID)
		}
	case KindPeople:
		for _, u := range v.People {
			out.List = append(out.List, userLabel(u))
		}
	case KindFiles:
		for _, f := range v.Files {
			out.List = append(out.List, fileLabel(f))
		}
	case KindCreatedTime:
		out.Time = v.CreatedTime
	case KindLastEditedTime:
		out.Time = v.LastEditedTime
	case KindCreatedBy:
		if v.CreatedBy != nil {
			out.Text = ptr(userLabel(*v.CreatedBy))
		}
	case KindLastEditedBy:
		if v.LastEditedBy != nil {
			out.Text = ptr(userLabel(*v.LastEditedBy))
		}
	}
	return out
}

func userLabel(u apiUser) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

func fileLabel(f apiFile) string {
	switch {
	case f.File != nil && f.File.URL != "":
		return f.File.URL
	case f.External != nil && f.External.URL != "":
		return f.External.URL
	default:
		return f.Name
	}
}

func parseBlock(b apiBlock) Block {
	out := Block{ID: b.ID, Kind: b.Type, HasChildren: b.HasChildren}
	if len(b.payload) == 0 {
		return out
	}
	var content struct {
		RichText []apiRichText `json:"rich_text"`
		Checked  *bool         `json:"checked"`
		URL      string        `json:"url"`
	}
	if err := json.Unmarshal(b.payload, &content); err != nil {
		return out
	}
	out.Text = plainText(content.RichText)
	if out.Text == "" && content.URL != "" {
		out.Text = content.URL
	}
	if content.Checked != nil && *content.Checked {
		out.Text = "[x] " + out.Text
	} else if content.Checked != nil {
		out.Text = "[ ] " + out.Text
	}
	return out
}

func ptr[T any](v T) *T { return &v }
