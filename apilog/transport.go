package apilog

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/db"
)

const maxBodySize = 64 * 1024 // 64KB

// Recorder persists one logged exchange. *db.Store satisfies it.
type Recorder interface {
	InsertAPIRequest(ctx context.Context, arg db.InsertAPIRequestParams) error
}

// Transport is an http.RoundTripper that records every JSON-RPC exchange
// with a chain node.
type Transport struct {
	inner    http.RoundTripper
	provider string
	store    Recorder
}

// NewHTTPClient returns a client whose requests to provider ("near",
// "aurora") are recorded in store.
func NewHTTPClient(provider string, store Recorder) *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &Transport{
			inner:    http.DefaultTransport,
			provider: provider,
			store:    store,
		},
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	start := time.Now()
	resp, err := t.inner.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	params := db.InsertAPIRequestParams{
		Provider:       t.provider,
		RpcMethod:      toNullString(rpcMethod(reqBody)),
		Method:         req.Method,
		Url:            req.URL.String(),
		RequestHeaders: toNullString(headerString(req.Header)),
		RequestBody:    toNullString(truncate(string(reqBody))),
		DurationMs:     sql.NullInt64{Int64: duration, Valid: true},
	}

	if err != nil {
		params.Error = toNullString(err.Error())
	} else {
		var respBody []byte
		if resp.Body != nil {
			respBody, _ = io.ReadAll(resp.Body)
			resp.Body = io.NopCloser(bytes.NewReader(respBody))
		}
		params.ResponseStatus = sql.NullInt64{Int64: int64(resp.StatusCode), Valid: true}
		params.ResponseHeaders = toNullString(headerString(resp.Header))
		params.ResponseBody = toNullString(truncate(string(respBody)))
	}

	// Insert asynchronously so we don't slow down the request
	go func() {
		if dbErr := t.store.InsertAPIRequest(context.Background(), params); dbErr != nil {
			log.Warnf("apilog: failed to log %s %s: %v", params.Method, params.Url, dbErr)
		}
	}()

	return resp, err
}

// rpcMethod extracts the JSON-RPC method name from a request body. Batches
// are labelled by their first call.
func rpcMethod(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	type call struct {
		Method string `json:"method"`
	}
	if body[0] == '[' {
		var batch []call
		if err := json.Unmarshal(body, &batch); err != nil || len(batch) == 0 {
			return ""
		}
		return batch[0].Method
	}
	var c call
	if err := json.Unmarshal(body, &c); err != nil {
		return ""
	}
	return c.Method
}

func headerString(h http.Header) string {
	h = h.Clone()
	h.Del("Authorization")
	var buf bytes.Buffer
	h.Write(&buf)
	return buf.String()
}

func truncate(s string) string {
	if len(s) > maxBodySize {
		return s[:maxBodySize] + "...[truncated]"
	}
	return s
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
