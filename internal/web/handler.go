package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"faclassifier/internal/classifier"
	"faclassifier/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100

	ExampleAbstract = "Ferroptosis is an iron-dependent form of regulated cell death, arising from the " +
		"accumulation of lipid-based reactive oxygen species when glutathione-dependent " +
		"repair systems are compromised. This review provides an analysis of the " +
		"most recent advances in ferroptosis, with a special focus on Friedreich's Ataxia " +
		"(FA), the most common autosomal recessive neurodegenerative disease, caused by " +
		"reduced levels of frataxin. The use of anti-ferroptosis drugs will be of paramount importance in FA therapy."
)

// Classifier is the part of classifier.Service the handlers need.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) classifier.Outcome
	Provider() string
	Model() string
}

// The web surfaces only list what was classified through them; bot and feed
// entries belong to Telegram users.
var historySources = []string{string(classifier.SourceWeb), string(classifier.SourceAPI)}

type HistoryReader interface {
	GetRecentClassificationsBySource(ctx context.Context, sources []string, limit int) ([]domain.Classification, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	classifier       Classifier
	history          HistoryReader
	pinger           Pinger
	serverCredential string
}

// NewHandler builds the handlers. history and pinger may be nil.
func NewHandler(c Classifier, history HistoryReader, pinger Pinger, serverCredential string) *Handler {
	return &Handler{
		classifier:       c,
		history:          history,
		pinger:           pinger,
		serverCredential: strings.TrimSpace(serverCredential),
	}
}

type ClassifyRequest struct {
	Text   string `json:"text"    form:"text"`
	APIKey string `json:"api_key" form:"api_key"`
}

type ClassifyData struct {
	Category string `json:"category"`
	Display  string `json:"display"`
}

type pageResult struct {
	Style string
	Text  string
}

// credential prefers a key supplied with the request over the server key.
func (h *Handler) credential(requestKey string) string {
	if key := strings.TrimSpace(requestKey); key != "" {
		return key
	}
	return h.serverCredential
}

func (h *Handler) pageData(abstract string, result *pageResult) gin.H {
	return gin.H{
		"Abstract":     abstract,
		"Result":       result,
		"HasServerKey": h.serverCredential != "",
		"Provider":     h.classifier.Provider(),
		"Model":        h.classifier.Model(),
	}
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.pageData(ExampleAbstract, nil))
}

func (h *Handler) ClassifyForm(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "index.html", h.pageData("", &pageResult{
			Style: "error",
			Text:  classifier.ErrorPrefix + " invalid form submission.",
		}))
		return
	}

	outcome := h.classifier.Classify(c.Request.Context(), classifier.Request{
		Credential: h.credential(req.APIKey),
		Text:       req.Text,
		Source:     classifier.SourceWeb,
	})

	status := http.StatusOK
	result := &pageResult{Style: "success", Text: outcome.String()}

	switch {
	case outcome.Rejected():
		status = http.StatusBadRequest
		result.Style = "warning"
	case !outcome.OK():
		status = http.StatusBadGateway
		result.Style = "error"
	}

	c.HTML(status, "index.html", h.pageData(req.Text, result))
}

func (h *Handler) ClassifyAPI(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}

	outcome := h.classifier.Classify(c.Request.Context(), classifier.Request{
		Credential: h.credential(req.APIKey),
		Text:       req.Text,
		Source:     classifier.SourceAPI,
	})

	if !outcome.OK() {
		status, code := outcomeStatus(outcome)
		respondError(c, status, code, outcome.Message)
		return
	}

	respondSuccess(c, http.StatusOK, ClassifyData{
		Category: outcome.Category,
		Display:  outcome.String(),
	})
}

func (h *Handler) HistoryPage(c *gin.Context) {
	entries, err := h.recent(c)

	data := gin.H{"Entries": entries}
	status := http.StatusOK
	if err != nil {
		data["Error"] = "History is unavailable."
		status = http.StatusInternalServerError
	}

	c.HTML(status, "history.html", data)
}

func (h *Handler) HistoryAPI(c *gin.Context) {
	entries, err := h.recent(c)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "history is unavailable")
		return
	}

	if entries == nil {
		entries = []domain.Classification{}
	}

	respondSuccess(c, http.StatusOK, entries)
}

func (h *Handler) recent(c *gin.Context) ([]domain.Classification, error) {
	if h.history == nil {
		return nil, nil
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxHistoryLimit)
		}
	}

	return h.history.GetRecentClassificationsBySource(c.Request.Context(), historySources, limit)
}

func (h *Handler) Health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger.Ping(c.Request.Context()); err != nil {
			respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "database is unavailable")
			return
		}
	}

	respondSuccess(c, http.StatusOK, gin.H{"status": "ok"})
}
