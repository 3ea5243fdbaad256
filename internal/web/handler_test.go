package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	mu          sync.Mutex
	credentials []string
	reply       string
	err         error
}

func (s *stubProvider) Generate(_ context.Context, credential, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials = append(s.credentials, credential)

	return s.reply, s.err
}

type stubHistory struct {
	entries []domain.Classification
	err     error
	limit   int
	sources []string
}

func (s *stubHistory) GetRecentClassificationsBySource(_ context.Context, sources []string, limit int) ([]domain.Classification, error) {
	s.limit = limit
	s.sources = sources
	return s.entries, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(p classifier.Provider, history HistoryReader, serverKey string) *gin.Engine {
	svc := classifier.NewService(classifier.NewClient(p, time.Second), nil, "gemini", "gemini-1.5-pro-latest", discardLogger())
	return Setup(NewHandler(svc, history, stubPinger{}, serverKey), discardLogger())
}

func postForm(router http.Handler, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/classify", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postJSON(router http.Handler, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIndexRendersExampleAbstract(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil, "server-key")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Classify Abstract")
	assert.Contains(t, w.Body.String(), "Ferroptosis is an iron-dependent form")
	assert.Contains(t, w.Body.String(), "gemini-1.5-pro-latest")
}

func TestClassifyFormSuccess(t *testing.T) {
	stub := &stubProvider{reply: " Ferroptosis\n"}
	router := newTestRouter(stub, nil, "server-key")

	w := postForm(router, url.Values{"text": {ExampleAbstract}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Category: Ferroptosis")
	assert.Contains(t, w.Body.String(), `class="box success"`)
	assert.Equal(t, []string{"server-key"}, stub.credentials)
}

func TestClassifyFormEmptyTextWarns(t *testing.T) {
	stub := &stubProvider{reply: "Ferroptosis"}
	router := newTestRouter(stub, nil, "server-key")

	w := postForm(router, url.Values{"text": {"   "}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please paste an abstract into the text box.")
	assert.Contains(t, w.Body.String(), `class="box warning"`)
	assert.Empty(t, stub.credentials)
}

func TestClassifyFormProviderErrorShowsError(t *testing.T) {
	stub := &stubProvider{err: errors.New("simulated transport error")}
	router := newTestRouter(stub, nil, "server-key")

	w := postForm(router, url.Values{"text": {ExampleAbstract}})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Error: Could not contact the AI model.")
	assert.Contains(t, w.Body.String(), `class="box error"`)
}

func TestClassifyFormKeyFieldOverridesServerKey(t *testing.T) {
	stub := &stubProvider{reply: "neither"}
	router := newTestRouter(stub, nil, "server-key")

	postForm(router, url.Values{"text": {"abstract"}, "api_key": {" session-key "}})

	assert.Equal(t, []string{"session-key"}, stub.credentials)
}

func TestClassifyAPISuccess(t *testing.T) {
	router := newTestRouter(&stubProvider{reply: "Ferroptosis"}, nil, "server-key")

	w := postJSON(router, ClassifyRequest{Text: ExampleAbstract})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ferroptosis", data["category"])
	assert.Equal(t, "Category: Ferroptosis", data["display"])
	assert.NotEmpty(t, resp.Meta.RequestID)
}

func TestClassifyAPIMissingText(t *testing.T) {
	router := newTestRouter(&stubProvider{reply: "Ferroptosis"}, nil, "server-key")

	w := postJSON(router, ClassifyRequest{Text: ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "MISSING_TEXT", resp.Error.Code)
}

func TestClassifyAPIMissingCredential(t *testing.T) {
	stub := &stubProvider{reply: "Ferroptosis"}
	router := newTestRouter(stub, nil, "")

	w := postJSON(router, ClassifyRequest{Text: "valid abstract"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_CREDENTIAL", decode(t, w).Error.Code)
	assert.Empty(t, stub.credentials)
}

func TestClassifyAPIProviderFailure(t *testing.T) {
	router := newTestRouter(&stubProvider{err: errors.New("simulated transport error")}, nil, "key")

	w := postJSON(router, ClassifyRequest{Text: "valid abstract"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "PROVIDER_CALL_FAILURE", resp.Error.Code)
	assert.True(t, strings.HasPrefix(resp.Error.Message, "Error:"))
}

func TestClassifyAPIConfigurationFailure(t *testing.T) {
	stub := &stubProvider{err: classifier.ConfigurationError(errors.New("API key not valid"))}
	router := newTestRouter(stub, nil, "key")

	w := postJSON(router, ClassifyRequest{Text: "valid abstract"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "CONFIGURATION_FAILURE", decode(t, w).Error.Code)
}

func TestClassifyAPIInvalidBody(t *testing.T) {
	router := newTestRouter(&stubProvider{}, nil, "key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
}

func TestHistoryAPI(t *testing.T) {
	history := &stubHistory{entries: []domain.Classification{
		{ID: 1, Source: "web", Category: "Ferroptosis", Provider: "gemini", Model: "m"},
	}}
	router := newTestRouter(&stubProvider{}, history, "key")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=500", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxHistoryLimit, history.limit)
	assert.ElementsMatch(t, []string{"web", "api"}, history.sources)

	entries, ok := decode(t, w).Data.([]any)
	require.True(t, ok)
	assert.Len(t, entries, 1)
}

func TestHistoryPageError(t *testing.T) {
	router := newTestRouter(&stubProvider{}, &stubHistory{err: errors.New("db closed")}, "key")

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "History is unavailable.")
}

func TestHealth(t *testing.T) {
	svc := classifier.NewService(classifier.NewClient(&stubProvider{}, 0), nil, "gemini", "m", discardLogger())

	ok := Setup(NewHandler(svc, nil, stubPinger{}, ""), discardLogger())
	w := httptest.NewRecorder()
	ok.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down := Setup(NewHandler(svc, nil, stubPinger{err: errors.New("closed")}, ""), discardLogger())
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
