package web

import (
	"embed"
	"html/template"
	"log/slog"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Setup creates the gin engine serving the form, the JSON API and history.
func Setup(h *Handler, log *slog.Logger) *gin.Engine {
	router := gin.New()

	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.Use(RequestID())
	router.Use(Logger(log))
	router.Use(Recovery(log))

	router.GET("/health", h.Health)

	router.GET("/", h.Index)
	router.POST("/classify", h.ClassifyForm)
	router.GET("/history", h.HistoryPage)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/classify", h.ClassifyAPI)
		v1.GET("/history", h.HistoryAPI)
	}

	return router
}
