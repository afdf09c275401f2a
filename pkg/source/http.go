package source

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/expr"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// httpCaller is the shared request/auth/retry machinery behind both
// http_batch and http_single adapters. OAuth2 tokens are cached and
// refreshed per caller instance.
type httpCaller struct {
	method      string
	headers     map[string]string
	body        string
	auth        *config.AuthConfig
	contentType string
	client      *http.Client
	retry       RetryPolicy

	tokenMu     sync.RWMutex
	accessToken string
	tokenExpiry time.Time
}

func newHTTPCaller(method string, headers map[string]string, body string, auth *config.AuthConfig, contentType string, retry *config.RetryConfig) *httpCaller {
	if method == "" {
		method = http.MethodGet
	}
	policy := DefaultRetryPolicy()
	if retry != nil {
		if retry.MaxAttempts > 0 {
			policy.MaxAttempts = retry.MaxAttempts
		}
		if retry.InitialBackoffMs > 0 {
			policy.InitialBackoff = time.Duration(retry.InitialBackoffMs) * time.Millisecond
		}
	}
	return &httpCaller{
		method: method, headers: headers, body: body, auth: auth,
		contentType: contentType, client: &http.Client{Timeout: 30 * time.Second}, retry: policy,
	}
}

func (c *httpCaller) fetchJSON(ctx context.Context, op, requestURL string) (map[string]any, error) {
	var result map[string]any
	err := Retry(ctx, op, c.retry, func() error {
		var bodyReader io.Reader
		if c.body != "" {
			bodyReader = bytes.NewReader([]byte(c.body))
		}
		req, err := http.NewRequestWithContext(ctx, c.method, requestURL, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		if err := c.setAuth(ctx, req); err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
		}
		if c.contentType != "" {
			got := resp.Header.Get("Content-Type")
			if got != c.contentType {
				return errs.Connection(op, "content-type %q does not match expected %q", got, c.contentType)
			}
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	return result, err
}

func (c *httpCaller) setAuth(ctx context.Context, req *http.Request) error {
	if c.auth == nil {
		return nil
	}
	switch c.auth.Type {
	case "basic":
		auth := base64.StdEncoding.EncodeToString([]byte(c.auth.Username + ":" + c.auth.Password))
		req.Header.Set("Authorization", "Basic "+auth)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case "oauth2":
		token, err := c.getOAuth2Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (c *httpCaller) getOAuth2Token(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", c.auth.ClientID)
	data.Set("client_secret", c.auth.ClientSecret)
	if len(c.auth.Scopes) > 0 {
		data.Set("scope", strings.Join(c.auth.Scopes, " "))
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.auth.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed %d: %s", resp.StatusCode, string(b))
	}
	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

// extractRows pulls a row list out of a decoded JSON body: either the
// `data` array field or the whole body treated as a single row.
func extractRows(data map[string]any) []map[string]any {
	if arr, ok := data["data"].([]any); ok {
		rows := make([]map[string]any, 0, len(arr))
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		return rows
	}
	return []map[string]any{data}
}

// HTTPBatchSource issues one request (the configured method, GET by
// default) per deduplicated URL drawn from an
// input frame's url column, concurrently, honouring the configured
// pagination.
type HTTPBatchSource struct {
	output     string
	input      string
	urlColExpr expr.Expr
	caller     *httpCaller
	pagination *config.PaginationConfig
	model      *model.Model
}

// NewHTTPBatchSource builds an HTTPBatchSource from a resolved HTTPBatchConfig.
func NewHTTPBatchSource(cfg config.HTTPBatchConfig, m *model.Model) (*HTTPBatchSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.http_batch", "output symbol unresolved")
	}
	input, ok := cfg.Input.Value()
	if !ok {
		return nil, errs.Config("source.http_batch", "input symbol unresolved")
	}
	if cfg.URLColumn == "" {
		return nil, errs.Config("source.http_batch", "url_column is required")
	}
	colExpr := expr.Column(cfg.URLColumn)
	caller := newHTTPCaller(cfg.Method, cfg.Headers, cfg.Body, cfg.Auth, cfg.ContentType, cfg.Retry)
	return &HTTPBatchSource{output: output, input: input, urlColExpr: colExpr, caller: caller, pagination: cfg.Pagination, model: m}, nil
}

func (s *HTTPBatchSource) Output() string { return s.output }

// Input names the frame this source reads its URL column from, exported
// so pkg/request can reuse this adapter under its own gating (the
// Request Group wraps the same http_batch/http_single entries).
func (s *HTTPBatchSource) Input() string { return s.input }

// FetchFromInput drives the batch from an already-extracted input table,
// letting the Group supply the input (http_batch reads its URLs from a
// named frame, not from its own fetch(ctx) alone).
func (s *HTTPBatchSource) FetchFromInput(ctx context.Context, in frame.Table) (frame.Frame, error) {
	var urls []string
	for _, row := range in.Rows {
		v, err := s.urlColExpr.Eval(row)
		if err != nil {
			continue
		}
		if str, ok := v.(string); ok && str != "" {
			urls = append(urls, str)
		}
	}
	urls = dedupStrings(urls)

	var mu sync.Mutex
	var rows []map[string]any
	var firstErr error
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(requestURL string) {
			defer wg.Done()
			pageRows, err := s.fetchURL(ctx, requestURL)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			rows = append(rows, pageRows...)
		}(u)
	}
	wg.Wait()
	if firstErr != nil {
		return frame.Frame{}, firstErr
	}
	return buildFrame(rows, s.model)
}

func (s *HTTPBatchSource) fetchURL(ctx context.Context, requestURL string) ([]map[string]any, error) {
	if s.pagination == nil {
		data, err := s.caller.fetchJSON(ctx, "source.http_batch", requestURL)
		if err != nil {
			return nil, err
		}
		return extractRows(data), nil
	}
	return s.fetchPaginated(ctx, requestURL)
}

func (s *HTTPBatchSource) fetchPaginated(ctx context.Context, startURL string) ([]map[string]any, error) {
	p := s.pagination
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = 100
	}
	currentURL := startURL
	offset := 0
	var rows []map[string]any
	for page := 0; currentURL != "" && page < maxPages; page++ {
		select {
		case <-ctx.Done():
			return rows, ctx.Err()
		default:
		}
		data, err := s.caller.fetchJSON(ctx, "source.http_batch", currentURL)
		if err != nil {
			return rows, fmt.Errorf("page %d: %w", page, err)
		}
		var items []any
		if p.DataField != "" {
			if field, ok := data[p.DataField].([]any); ok {
				items = field
			}
		} else {
			items = []any{data}
		}
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		currentURL = s.nextURL(data, startURL, &offset, len(items))
	}
	return rows, nil
}

func (s *HTTPBatchSource) nextURL(data map[string]any, startURL string, offset *int, pageLen int) string {
	p := s.pagination
	switch p.Type {
	case "offset":
		if pageLen == 0 {
			return ""
		}
		*offset += p.PageSize
		if p.PageSize == 0 {
			*offset += pageLen
		}
		return addQueryParam(startURL, p.OffsetParam, strconv.Itoa(*offset))
	case "cursor":
		cursor, ok := data[p.CursorField].(string)
		if !ok || cursor == "" {
			return ""
		}
		return addQueryParam(startURL, p.CursorParam, cursor)
	default: // next_url
		if p.NextField == "" {
			return ""
		}
		next, ok := data[p.NextField].(string)
		if !ok {
			return ""
		}
		return next
	}
}

func addQueryParam(rawURL, key, value string) string {
	if key == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// HTTPSingleSource assembles one URL by interpolating `{}` placeholders
// with separator-joined (comma by default) column values pulled from
// other named frames, and
// issues a single request.
type HTTPSingleSource struct {
	output    string
	template  string
	values    []config.ValueRef
	separator string
	caller    *httpCaller
	model     *model.Model
}

// NewHTTPSingleSource builds an HTTPSingleSource from a resolved HTTPSingleConfig.
func NewHTTPSingleSource(cfg config.HTTPSingleConfig, m *model.Model) (*HTTPSingleSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.http_single", "output symbol unresolved")
	}
	if cfg.URL == "" {
		return nil, errs.Config("source.http_single", "url is required")
	}
	sep := cfg.Separator
	if sep == "" {
		sep = ","
	}
	caller := newHTTPCaller(cfg.Method, cfg.Headers, cfg.Body, cfg.Auth, cfg.ContentType, cfg.Retry)
	return &HTTPSingleSource{output: output, template: cfg.URL, values: cfg.Values, separator: sep, caller: caller, model: m}, nil
}

func (s *HTTPSingleSource) Output() string { return s.output }

// Values lists the named-frame/column references this source interpolates
// into its URL template, exported for the same cross-package reuse reason
// as HTTPBatchSource.Input.
func (s *HTTPSingleSource) Values() []config.ValueRef { return s.values }

// resolveURL interpolates each `{}` in the template with the
// separator-joined values of its corresponding named frame's column.
func (s *HTTPSingleSource) resolveURL(named map[string]frame.Table) (string, error) {
	out := s.template
	for _, ref := range s.values {
		t, ok := named[ref.Frame]
		if !ok {
			return "", errs.Config("source.http_single", "no such frame %q for value interpolation", ref.Frame)
		}
		var parts []string
		for _, row := range t.Rows {
			if v, ok := row[ref.Column]; ok {
				parts = append(parts, fmt.Sprint(v))
			}
		}
		joined := strings.Join(parts, s.separator)
		out = strings.Replace(out, "{}", joined, 1)
	}
	return out, nil
}

func (s *HTTPSingleSource) FetchWithNamed(ctx context.Context, named map[string]frame.Table) (frame.Frame, error) {
	requestURL, err := s.resolveURL(named)
	if err != nil {
		return frame.Frame{}, err
	}
	data, err := s.caller.fetchJSON(ctx, "source.http_single", requestURL)
	if err != nil {
		return frame.Frame{}, err
	}
	return buildFrame(extractRows(data), s.model)
}
