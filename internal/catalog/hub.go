package catalog

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"resty.dev/v3"

	"github.com/oxide-lab/discover/internal/filter"
	"github.com/oxide-lab/discover/internal/model"
)

const (
	DefaultHubURL  = "https://huggingface.co"
	DefaultTimeout = 20 * time.Second

	// MaxWindow is the largest offset+limit requested from the hub.
	MaxWindow = 1000
)

// Hub searches the Hugging Face model API for GGUF repositories.
type Hub struct {
	client  *resty.Client
	baseURL string
	log     logrus.FieldLogger
}

// NewHub returns a Hub for baseURL. client may be nil. A non-empty token is
// sent as a bearer token.
func NewHub(client *resty.Client, baseURL, token string, log logrus.FieldLogger) *Hub {
	if client == nil {
		client = resty.New().SetTimeout(DefaultTimeout)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultHubURL
	}
	client.SetHeader("Accept", "application/json")
	if token = strings.TrimSpace(token); token != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	return &Hub{client: client, baseURL: baseURL, log: log}
}

// BaseURL returns the hub root URL.
func (h *Hub) BaseURL() string {
	return h.baseURL
}

// Close releases the underlying HTTP client.
func (h *Hub) Close() error {
	return h.client.Close()
}

// Search implements Searcher. The hub has no offset parameter, so the window
// is requested from the start and sliced locally.
func (h *Hub) Search(ctx context.Context, query string, f filter.Filters, offset, limit int) ([]model.Raw, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return []model.Raw{}, nil
	}
	window := offset + limit
	if window > MaxWindow {
		window = MaxWindow
	}
	if offset >= window {
		return []model.Raw{}, nil
	}

	reqID, ok := RequestID(ctx)
	if !ok {
		reqID = uuid.NewString()
	}
	log := h.log.WithFields(logrus.Fields{"request_id": reqID, "query": query, "offset": offset, "limit": limit})

	var models []hubModel
	start := time.Now()
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("X-Request-Id", reqID).
		SetQueryParamsFromValues(searchParams(query, f, window)).
		SetResult(&models).
		Get(h.baseURL + "/api/models")
	if err != nil {
		log.WithError(err).Debug("catalog request failed")
		return nil, fmt.Errorf("cannot query catalog: %w", err)
	}
	if resp.IsError() {
		log.WithField("status", resp.StatusCode()).Debug("catalog returned error status")
		return nil, errorFromResponse(resp)
	}
	log.WithFields(logrus.Fields{"results": len(models), "elapsed": time.Since(start)}).Debug("catalog request done")

	if offset >= len(models) {
		return []model.Raw{}, nil
	}
	models = models[offset:]
	if len(models) > limit {
		models = models[:limit]
	}
	out := make([]model.Raw, 0, len(models))
	for _, m := range models {
		out = append(out, m.raw(h.baseURL))
	}
	return out, nil
}

func searchParams(query string, f filter.Filters, window int) url.Values {
	v := url.Values{}
	query = strings.TrimSpace(query)
	if query != "" {
		v.Set("search", query)
	}
	v.Set("limit", strconv.Itoa(window))
	v.Set("sort", hubSort(query, f.SortBy))
	v.Set("direction", "-1")
	v.Set("full", "true")
	v.Set("config", "true")
	v.Add("filter", filter.FormatGGUF)
	if s := strings.TrimSpace(f.License); s != "" && !strings.EqualFold(s, filter.Any) {
		v.Add("filter", "license:"+strings.ToLower(s))
	}
	if s := strings.TrimSpace(f.PipelineTag); s != "" && !strings.EqualFold(s, filter.Any) {
		v.Set("pipeline_tag", s)
	}
	if s := strings.TrimSpace(f.Language); s != "" && !strings.EqualFold(s, filter.Any) {
		v.Set("language", strings.ToLower(s))
	}
	return v
}

func hubSort(query string, key filter.SortKey) string {
	switch key {
	case filter.SortLikes:
		return "likes"
	case filter.SortLastModified:
		return "lastModified"
	}
	if query == "" {
		return "trendingScore"
	}
	return "downloads"
}

func errorFromResponse(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if body == "" && resp.RawResponse != nil && resp.RawResponse.Body != nil {
		defer resp.RawResponse.Body.Close()
		if b, err := io.ReadAll(resp.RawResponse.Body); err == nil {
			body = strings.TrimSpace(string(b))
		}
	}
	if body == "" {
		return fmt.Errorf("%w: status %d", ErrStatus, resp.StatusCode())
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Errorf("%w: status %d: %s", ErrStatus, resp.StatusCode(), body)
}
