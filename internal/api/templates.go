package api

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// LoadTemplates installs the embedded page templates on router.
func LoadTemplates(router *gin.Engine) {
	router.SetHTMLTemplate(pageTemplates)
}
