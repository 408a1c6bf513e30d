package pricing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paperledger/internal/ledger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStaticSourceReturnsKnownCodes(t *testing.T) {
	s := NewStaticSource(map[string]float64{"000001.sz": 10.5})
	s.Set("600519", 1500)

	got, err := s.Quotes(context.Background(), []string{"000001.SZ", "600519", "300750"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"000001.SZ": 10.5, "600519": 1500}, got)
}

func quoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "000001.SZ":
			fmt.Fprint(w, `{"data":{"last":10.25}}`)
		case "600519":
			fmt.Fprint(w, `{"data":{"last":"1688.00"}}`)
		case "ZERO":
			fmt.Fprint(w, `{"data":{"last":0}}`)
		case "MISSING":
			fmt.Fprint(w, `{"data":{}}`)
		default:
			http.Error(w, "unknown", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSourceFetchesConcurrently(t *testing.T) {
	srv := quoteServer(t)
	src, err := NewHTTPSource(HTTPOptions{
		URLTemplate: srv.URL + "/quote?symbol={code}",
		PricePath:   "data.last",
		Workers:     2,
	})
	require.NoError(t, err)
	defer src.Close()

	got, err := src.Quotes(context.Background(), []string{"000001.SZ", "600519", "ZERO", "MISSING", "NOPE"})
	require.NoError(t, err, "partial results are not an error")
	assert.Equal(t, map[string]float64{"000001.SZ": 10.25, "600519": 1688}, got)
}

func TestHTTPSourceFailsWhenNothingFetched(t *testing.T) {
	srv := quoteServer(t)
	src, err := NewHTTPSource(HTTPOptions{URLTemplate: srv.URL + "/quote?symbol={code}", PricePath: "data.last"})
	require.NoError(t, err)
	defer src.Close()

	got, err := src.Quotes(context.Background(), []string{"NOPE"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "status 404"))
	assert.Empty(t, got)

	got, err = src.Quotes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewHTTPSourceValidatesOptions(t *testing.T) {
	_, err := NewHTTPSource(HTTPOptions{URLTemplate: "http://x/quote", PricePath: "p"})
	assert.Error(t, err)
	_, err = NewHTTPSource(HTTPOptions{URLTemplate: "http://x/{code}"})
	assert.Error(t, err)
}

type fakeHash struct {
	data map[string]string
	err  error
}

func (f fakeHash) HGetAll(_ context.Context, _ string) *redis.MapStringStringCmd {
	return redis.NewMapStringStringResult(f.data, f.err)
}

func TestRedisSourceParsesHash(t *testing.T) {
	src := &RedisSource{
		client: fakeHash{data: map[string]string{"000001.SZ": "10.5", "600519": "bad", "300750": "-1"}},
		key:    "quotes",
	}
	got, err := src.Quotes(context.Background(), []string{"000001.sz", "600519", "300750", "688981"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"000001.sz": 10.5}, got)

	src.client = fakeHash{err: errors.New("connection refused")}
	_, err = src.Quotes(context.Background(), []string{"000001.SZ"})
	assert.Error(t, err)
	assert.NoError(t, src.Close())
}

func TestNewRedisSourceValidatesOptions(t *testing.T) {
	_, err := NewRedisSource(RedisOptions{Key: "quotes"})
	assert.Error(t, err)
	_, err = NewRedisSource(RedisOptions{Address: "localhost:6379"})
	assert.Error(t, err)

	src, err := NewRedisSource(RedisOptions{Address: "localhost:6379", Key: "quotes"})
	require.NoError(t, err)
	assert.NoError(t, src.Close())
}

type mockMarker struct{ mock.Mock }

func (m *mockMarker) HeldCodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}

func (m *mockMarker) MarkPrices(ctx context.Context, prices map[string]float64) (ledger.MarkResult, error) {
	args := m.Called(ctx, prices)
	return args.Get(0).(ledger.MarkResult), args.Error(1)
}

func TestRefresherMarksHeldCodes(t *testing.T) {
	m := &mockMarker{}
	m.On("HeldCodes", mock.Anything).Return([]string{"000001", "600519"}, nil).Once()
	m.On("MarkPrices", mock.Anything, map[string]float64{"000001": 11}).
		Return(ledger.MarkResult{Matched: 1}, nil).Once()

	r := NewRefresher(NewStaticSource(map[string]float64{"000001": 11}), m)
	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	m.AssertExpectations(t)
}

func TestRefresherSkipsEmptyBook(t *testing.T) {
	m := &mockMarker{}
	m.On("HeldCodes", mock.Anything).Return([]string{}, nil).Once()

	r := NewRefresher(NewStaticSource(nil), m)
	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
	m.AssertNotCalled(t, "MarkPrices", mock.Anything, mock.Anything)
}
