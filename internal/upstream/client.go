package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mtogate/mtogate/internal/config"
)

// Record is one upstream row: a mapping from the requested field name to the
// raw primitive value the ERP returned. Records do not leave the reader
// layer; everything above it works with typed structs.
type Record map[string]any

// Querier is the form-query capability the rest of the gateway consumes.
// Tests substitute fakes for it.
type Querier interface {
	// Query executes a single page of a form query. fields are upstream
	// field names (case-sensitive); filter is passed through verbatim.
	Query(ctx context.Context, formID string, fields []string, filter string, offset, limit int) ([]Record, error)
}

// Client talks to the ERP's form-query RPC over HTTP. The ERP session
// handshake is not reentrant, so session establishment is serialised under a
// mutex; established sessions may be used concurrently.
type Client struct {
	cfg   config.Upstream
	httpc *http.Client

	mu      sync.Mutex
	session string
}

// NewClient builds a Client from the upstream configuration. No network
// traffic happens until the first Query.
func NewClient(cfg config.Upstream) *Client {
	return &Client{
		cfg: cfg,
		httpc: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

type loginRequest struct {
	AcctID    string `json:"acctID"`
	Username  string `json:"username"`
	AppID     string `json:"appID"`
	AppSecret string `json:"appSecret"`
	LCID      int    `json:"lcid"`
}

type loginResponse struct {
	LoginResultType int    `json:"loginResultType"`
	SessionID       string `json:"sessionId"`
	Message         string `json:"message"`
}

type queryRequest struct {
	FormID    string `json:"formId"`
	FieldKeys string `json:"fieldKeys"`
	Filter    string `json:"filterString"`
	StartRow  int    `json:"startRow"`
	Limit     int    `json:"limit"`
}

// queryResponse rows come back as positional arrays aligned with the
// requested field list.
type queryResponse struct {
	Rows    [][]any `json:"rows"`
	Error   string  `json:"error,omitempty"`
	Success bool    `json:"success"`
}

// ensureSession performs the login handshake once. Subsequent callers reuse
// the cached session id.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return c.session, nil
	}

	connectCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.ConnectTimeout)*time.Second)
		defer cancel()
	}

	body, err := json.Marshal(loginRequest{
		AcctID:    c.cfg.Account,
		Username:  c.cfg.User,
		AppID:     c.cfg.AppID,
		AppSecret: c.cfg.AppSecret,
		LCID:      c.cfg.LCID,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login: %w", err)
	}

	var lr loginResponse
	if err := c.post(connectCtx, "/api/login", body, &lr); err != nil {
		return "", err
	}
	if lr.LoginResultType != 1 || lr.SessionID == "" {
		return "", fmt.Errorf("%w: login rejected: %s", ErrQuery, lr.Message)
	}

	c.session = lr.SessionID
	return c.session, nil
}

// Query executes a single page of a form query.
func (c *Client) Query(ctx context.Context, formID string, fields []string, filter string, offset, limit int) ([]Record, error) {
	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(queryRequest{
		FormID:    formID,
		FieldKeys: strings.Join(fields, ","),
		Filter:    filter,
		StartRow:  offset,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var qr queryResponse
	if err := c.postWithSession(ctx, "/api/executeBillQuery", session, body, &qr); err != nil {
		return nil, err
	}
	if !qr.Success {
		return nil, fmt.Errorf("%w: form %s: %s", ErrQuery, formID, qr.Error)
	}

	records := make([]Record, 0, len(qr.Rows))
	for _, row := range qr.Rows {
		if len(row) != len(fields) {
			return nil, fmt.Errorf("%w: form %s: row has %d values, expected %d", ErrQuery, formID, len(row), len(fields))
		}
		rec := make(Record, len(fields))
		for i, f := range fields {
			rec[f] = row[i]
		}
		records = append(records, rec)
	}
	return records, nil
}

// QueryAll pages through a form query until a short page arrives or max
// records have been collected. max <= 0 means unbounded.
func QueryAll(ctx context.Context, q Querier, formID string, fields []string, filter string, pageSize, max int) ([]Record, error) {
	if pageSize <= 0 {
		pageSize = 2000
	}

	var out []Record
	for offset := 0; ; offset += pageSize {
		limit := pageSize
		if max > 0 && max-len(out) < limit {
			limit = max - len(out)
		}
		if limit <= 0 {
			break
		}

		page, err := q.Query(ctx, formID, fields, filter, offset, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < limit {
			break
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// Ping verifies the upstream is reachable by establishing (or reusing) a
// session.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ensureSession(ctx)
	return err
}

func (c *Client) post(ctx context.Context, path string, body []byte, out any) error {
	return c.doPost(ctx, path, "", body, out)
}

func (c *Client) postWithSession(ctx context.Context, path, session string, body []byte, out any) error {
	return c.doPost(ctx, path, session, body, out)
}

func (c *Client) doPost(ctx context.Context, path, session string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.URL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Session-Id", session)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d: %s", ErrQuery, resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrQuery, err)
	}
	return nil
}
