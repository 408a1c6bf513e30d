package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"paperledger/internal/logger"

	"github.com/panjf2000/ants/v2"
	"github.com/tidwall/gjson"
)

const maxQuoteBody = 1 << 20

type HTTPOptions struct {
	// URLTemplate contains a {code} placeholder, e.g.
	// "https://quotes.example.com/api/quote?symbol={code}".
	URLTemplate string
	// PricePath is a gjson path into the response body, e.g. "data.last".
	PricePath string
	Workers   int
	Timeout   time.Duration
	Client    *http.Client
}

// HTTPSource fetches one quote per code, fanning requests out over a
// bounded goroutine pool.
type HTTPSource struct {
	tpl    string
	path   string
	client *http.Client
	pool   *ants.Pool
}

func NewHTTPSource(opts HTTPOptions) (*HTTPSource, error) {
	tpl := strings.TrimSpace(opts.URLTemplate)
	if !strings.Contains(tpl, "{code}") {
		return nil, fmt.Errorf("pricing: url template must contain {code}")
	}
	path := strings.TrimSpace(opts.PricePath)
	if path == "" {
		return nil, fmt.Errorf("pricing: price path cannot be empty")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("pricing: create worker pool: %w", err)
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{tpl: tpl, path: path, client: client, pool: pool}, nil
}

// Quotes returns every quote that could be fetched. It fails only when codes
// were requested and none of them produced a price.
func (s *HTTPSource) Quotes(ctx context.Context, codes []string) (map[string]float64, error) {
	out := make(map[string]float64, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, code := range codes {
		code := code
		wg.Add(1)
		task := func() {
			defer wg.Done()
			price, err := s.fetch(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			out[code] = price
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("submit %s: %w", code, err))
			mu.Unlock()
		}
	}
	wg.Wait()
	for _, err := range errs {
		logger.Warnf("[pricing] %v", err)
	}
	if len(out) == 0 && len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

func (s *HTTPSource) fetch(ctx context.Context, code string) (float64, error) {
	target := strings.ReplaceAll(s.tpl, "{code}", url.QueryEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("quote %s: %w", code, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("quote %s: %w", code, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBody))
	if err != nil {
		return 0, fmt.Errorf("quote %s: read body: %w", code, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("quote %s: status %d", code, resp.StatusCode)
	}
	return parsePrice(code, gjson.GetBytes(body, s.path))
}

func parsePrice(code string, res gjson.Result) (float64, error) {
	if !res.Exists() {
		return 0, fmt.Errorf("quote %s: price field missing", code)
	}
	var price float64
	switch res.Type {
	case gjson.Number:
		price = res.Float()
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(res.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("quote %s: %w", code, err)
		}
		price = v
	default:
		return 0, fmt.Errorf("quote %s: unexpected price type %s", code, res.Type)
	}
	if price <= 0 {
		return 0, fmt.Errorf("quote %s: non-positive price %v", code, price)
	}
	return price, nil
}

func (s *HTTPSource) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Release()
	}
	return nil
}
