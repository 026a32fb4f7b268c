package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ghost.drop/config"
	"ghost.drop/internal/access"
	"ghost.drop/internal/crypto"
	"ghost.drop/internal/drops"
	"ghost.drop/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	cfg.Access.Enabled = true
	cfg.Access.AdminToken = "test-admin-token"
	if mutate != nil {
		mutate(cfg)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	st := store.NewMemoryStore(time.Minute, cfg.Drops.MaxFailedAttempts)
	t.Cleanup(func() { st.Close() })

	dropSvc := drops.NewService(st, cfg.Drops, log)
	accessSvc := access.NewService(access.NewMemoryStore(), log)

	srv := httptest.NewServer(SetupRouter(dropSvc, accessSvc, NewMemoryLimiter(), cfg, log))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func uploadDrop(t *testing.T, srv *httptest.Server, req UploadRequest) UploadResponse {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/upload", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[UploadResponse](t, resp)
}

func validUpload() UploadRequest {
	return UploadRequest{
		EncryptedData: "Y2lwaGVydGV4dA==",
		IV:            "aXZpdml2aXZpdg==",
		Salt:          "c2FsdHNhbHRzYWx0",
		Version:       "1.0",
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadAndRetrieveOnce(t *testing.T) {
	srv := newTestServer(t, nil)

	up := uploadDrop(t, srv, validUpload())
	assert.True(t, up.Success)
	assert.Len(t, up.ID, 32)
	assert.Equal(t, 1, up.MaxViews)
	assert.Equal(t, int((24 * time.Hour).Seconds()), up.ExpiresIn)

	resp, err := http.Get(srv.URL + "/api/retrieve/" + up.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ret := decodeBody[RetrieveResponse](t, resp)
	assert.Equal(t, "Y2lwaGVydGV4dA==", ret.Data.EncryptedData)
	assert.Equal(t, "1.0", ret.Data.Version)

	// Single view: the second attempt finds nothing.
	resp, err = http.Get(srv.URL + "/api/retrieve/" + up.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := map[string]UploadRequest{
		"missing encryptedData": {IV: "a", Salt: "b", Version: "1.0"},
		"missing iv":            {EncryptedData: "a", Salt: "b", Version: "1.0"},
		"missing salt":          {EncryptedData: "a", IV: "b", Version: "1.0"},
		"missing version":       {EncryptedData: "a", IV: "b", Salt: "c"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/upload", req)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestUploadBurnTimerValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	req := validUpload()
	req.BurnTimer = 400
	resp := postJSON(t, srv.URL+"/api/upload", req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadBurnTimerCapsExpiry(t *testing.T) {
	srv := newTestServer(t, nil)

	req := validUpload()
	req.BurnTimer = 60
	up := uploadDrop(t, srv, req)
	assert.Equal(t, 60, up.ExpiresIn)

	resp, err := http.Get(srv.URL + "/api/retrieve/" + up.ID)
	require.NoError(t, err)
	ret := decodeBody[RetrieveResponse](t, resp)
	assert.Equal(t, 60, ret.Data.BurnTimer)
}

func TestRetrieveInvalidID(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/retrieve/short")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRetrieveUnknownID(t *testing.T) {
	srv := newTestServer(t, nil)

	id := crypto.GenerateID()
	resp, err := http.Get(srv.URL + "/api/retrieve/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReportFailedDecryptThreshold(t *testing.T) {
	srv := newTestServer(t, nil)

	up := uploadDrop(t, srv, validUpload())

	for i := 1; i <= 2; i++ {
		resp := postJSON(t, srv.URL+"/api/report-failed-decrypt", ReportRequest{ID: up.ID})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		rep := decodeBody[ReportResponse](t, resp)
		assert.False(t, rep.Deleted)
		assert.Equal(t, i, rep.FailedAttempts)
		assert.Equal(t, 3, rep.MaxAttempts)
	}

	resp := postJSON(t, srv.URL+"/api/report-failed-decrypt", ReportRequest{ID: up.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decodeBody[ReportResponse](t, resp)
	assert.True(t, rep.Deleted)

	// The condemned drop is gone.
	getResp, err := http.Get(srv.URL + "/api/retrieve/" + up.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestReportFailedDecryptMissingDrop(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/report-failed-decrypt", ReportRequest{ID: crypto.GenerateID()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decodeBody[ReportResponse](t, resp)
	assert.True(t, rep.Deleted)
}

func TestDestroyAlwaysSucceeds(t *testing.T) {
	srv := newTestServer(t, nil)

	up := uploadDrop(t, srv, validUpload())

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/api/destroy", DestroyRequest{ID: up.ID})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		ok := decodeBody[SuccessResponse](t, resp)
		assert.True(t, ok.Success)
	}

	// Nonexistent ids get the same answer.
	resp := postJSON(t, srv.URL+"/api/destroy", DestroyRequest{ID: crypto.GenerateID()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEndToEndClientSideEncryption(t *testing.T) {
	srv := newTestServer(t, nil)

	key, err := crypto.GenerateKeyMaterial()
	require.NoError(t, err)

	env, err := crypto.Encrypt([]byte("hello"), key)
	require.NoError(t, err)

	up := uploadDrop(t, srv, UploadRequest{
		EncryptedData: env.EncryptedData,
		IV:            env.IV,
		Salt:          env.Salt,
		Version:       env.Version,
	})

	resp, err := http.Get(srv.URL + "/api/retrieve/" + up.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ret := decodeBody[RetrieveResponse](t, resp)

	plaintext, err := crypto.Decrypt(&crypto.Envelope{
		EncryptedData: ret.Data.EncryptedData,
		IV:            ret.Data.IV,
		Salt:          ret.Data.Salt,
		Version:       ret.Data.Version,
	}, key)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plaintext))

	resp, err = http.Get(srv.URL + "/api/retrieve/" + up.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitRetrieve(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Retrieve = config.WindowConfig{Requests: 2, Window: time.Minute}
	})

	id := crypto.GenerateID()
	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(srv.URL + "/api/retrieve/" + id)
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, statuses)
}

func TestAccessCodeFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	// Admin routes require the token.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/codes", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/admin/codes", nil)
	req.Header.Set("X-Admin-Token", "test-admin-token")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	gen := decodeBody[GenerateCodeResponse](t, resp)
	require.NotEmpty(t, gen.Code)

	// First validation passes, second is rejected.
	resp = postJSON(t, srv.URL+"/api/access/validate", AccessCodeRequest{Code: gen.Code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	val := decodeBody[ValidateCodeResponse](t, resp)
	assert.True(t, val.Valid)

	resp = postJSON(t, srv.URL+"/api/access/validate", AccessCodeRequest{Code: gen.Code})
	val = decodeBody[ValidateCodeResponse](t, resp)
	assert.False(t, val.Valid)

	resp = postJSON(t, srv.URL+"/api/access/expire", AccessCodeRequest{Code: gen.Code})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestJSONOnlyRejectsOtherContentTypes(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/upload", "text/plain", bytes.NewReader([]byte("nope")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "caller-supplied", resp.Header.Get("X-Request-ID"))
}

func TestUploadPayloadTooLarge(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Drops.MaxPayloadBytes = 256
	})

	req := validUpload()
	req.EncryptedData = fmt.Sprintf("%0512d", 0)
	resp := postJSON(t, srv.URL+"/api/upload", req)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
