package apilog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RaghavSood/aurorabridge/db"
)

type memRecorder struct {
	mu   sync.Mutex
	rows []db.InsertAPIRequestParams
}

func (m *memRecorder) InsertAPIRequest(ctx context.Context, arg db.InsertAPIRequestParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, arg)
	return nil
}

func (m *memRecorder) snapshot() []db.InsertAPIRequestParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.InsertAPIRequestParams(nil), m.rows...)
}

func TestTransportRecordsExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Contains(t, string(body), `"method":"query"`)
		io.WriteString(w, `{"jsonrpc":"2.0","result":{}}`)
	}))
	defer srv.Close()

	rec := &memRecorder{}
	client := NewHTTPClient("near", rec)

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"jsonrpc":"2.0","id":"1","method":"query","params":{}}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := client.Do(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, `{"jsonrpc":"2.0","result":{}}`, string(body))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	row := rec.snapshot()[0]
	require.Equal(t, "near", row.Provider)
	require.Equal(t, "query", row.RpcMethod.String)
	require.Equal(t, int64(200), row.ResponseStatus.Int64)
	require.NotContains(t, row.RequestHeaders.String, "secret")
}

func TestRPCMethod(t *testing.T) {
	require.Equal(t, "eth_call", rpcMethod([]byte(`{"method":"eth_call"}`)))
	require.Equal(t, "eth_chainId", rpcMethod([]byte(` [{"method":"eth_chainId"},{"method":"eth_call"}]`)))
	require.Equal(t, "", rpcMethod([]byte(`not json`)))
	require.Equal(t, "", rpcMethod(nil))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", maxBodySize+10)
	require.True(t, strings.HasSuffix(truncate(long), "...[truncated]"))
	require.Equal(t, "short", truncate("short"))
}
