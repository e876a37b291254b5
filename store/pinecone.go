package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vector-viz/config"
)

/*
Pinecone is a client for the Pinecone REST API.

The control plane is used to resolve the data-plane host of an index; listing and fetching
go to the data plane. Every request passes through an optional rate limiter.
*/
type Pinecone struct {
	apiKey     string
	index      string
	controlURL string
	apiVersion string
	httpClient *http.Client
	limiter    *rate.Limiter

	host   string
	hostMu sync.Mutex
}

/*
IndexDescription describes an index as returned by the control plane
*/
type IndexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

/*
NamespaceStats holds the statistics of one namespace
*/
type NamespaceStats struct {
	VectorCount int `json:"vectorCount"`
}

/*
IndexStats holds the statistics of an index as returned by the data plane
*/
type IndexStats struct {
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
	Dimension        int                       `json:"dimension"`
	IndexFullness    float64                   `json:"indexFullness"`
	TotalVectorCount int                       `json:"totalVectorCount"`
}

/*
NewPinecone creates a client from the store configuration
*/
func NewPinecone(cfg config.PineconeConfig) *Pinecone {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	p := &Pinecone{
		apiKey:     cfg.APIKey,
		index:      cfg.Index,
		controlURL: strings.TrimRight(cfg.ControlURL, "/"),
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: timeout},
	}
	if cfg.Host != "" {
		p.host = withScheme(cfg.Host)
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p
}

/*
ListIndexes returns every index visible to the API key
*/
func (p *Pinecone) ListIndexes(ctx context.Context) ([]IndexDescription, error) {
	body, err := p.do(ctx, http.MethodGet, p.controlURL+"/indexes", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Indexes []IndexDescription `json:"indexes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.Indexes, nil
}

/*
DescribeIndex returns the description of a single index
*/
func (p *Pinecone) DescribeIndex(ctx context.Context, name string) (*IndexDescription, error) {
	body, err := p.do(ctx, http.MethodGet, p.controlURL+"/indexes/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}

	var desc IndexDescription
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &desc, nil
}

/*
DescribeIndexStats returns per-namespace record counts of the configured index
*/
func (p *Pinecone) DescribeIndexStats(ctx context.Context) (*IndexStats, error) {
	host, err := p.dataHost(ctx)
	if err != nil {
		return nil, err
	}

	body, err := p.do(ctx, http.MethodPost, host+"/describe_index_stats", []byte("{}"))
	if err != nil {
		return nil, err
	}

	var stats IndexStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &stats, nil
}

/*
ListPage returns one page of record identifiers in a namespace
*/
func (p *Pinecone) ListPage(ctx context.Context, namespace, cursor string, limit int) (Page, error) {
	host, err := p.dataHost(ctx)
	if err != nil {
		return Page{}, err
	}

	query := url.Values{}
	query.Set("namespace", namespace)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("paginationToken", cursor)
	}

	body, err := p.do(ctx, http.MethodGet, host+"/vectors/list?"+query.Encode(), nil)
	if err != nil {
		return Page{}, err
	}
	return DecodeListPage(body)
}

/*
Fetch returns the records for ids in one request, in the order of ids
*/
func (p *Pinecone) Fetch(ctx context.Context, namespace string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}

	host, err := p.dataHost(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("namespace", namespace)
	for _, id := range ids {
		query.Add("ids", id)
	}

	body, err := p.do(ctx, http.MethodGet, host+"/vectors/fetch?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	records, err := DecodeFetch(body)
	if err != nil {
		return nil, err
	}
	return orderByIDs(records, ids), nil
}

/*
dataHost resolves the data-plane host of the configured index once
*/
func (p *Pinecone) dataHost(ctx context.Context) (string, error) {
	p.hostMu.Lock()
	defer p.hostMu.Unlock()

	if p.host != "" {
		return p.host, nil
	}
	if p.index == "" {
		return "", ErrIndexNotFound
	}

	desc, err := p.DescribeIndex(ctx, p.index)
	if err != nil {
		return "", fmt.Errorf("failed to resolve host of index %s: %w", p.index, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("%w: index %s has no host", ErrMalformedResponse, p.index)
	}

	p.host = withScheme(desc.Host)
	log.WithFields(log.Fields{"index": p.index, "host": p.host}).Debug("Resolved index host")
	return p.host, nil
}

func (p *Pinecone) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", p.apiKey)
	if p.apiVersion != "" {
		req.Header.Set("X-Pinecone-API-Version", p.apiVersion)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(body))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, errorMessage(body))
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
}

/*
errorMessage extracts the message of an error body, which is either
{"error": {"message": ...}} or {"message": ...}
*/
func errorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &nested); err == nil {
		if nested.Error.Message != "" {
			return nested.Error.Message
		}
		if nested.Message != "" {
			return nested.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func withScheme(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}
