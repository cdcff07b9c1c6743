package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

// layoutName is rendered around every page, which is injected with {{embed}}.
const layoutName = "layout"

var pageTitles = map[string]string{
	"apology":  "Apology",
	"buy":      "Buy",
	"history":  "History",
	"index":    "Portfolio",
	"login":    "Log In",
	"quote":    "Quote",
	"quoted":   "Quoted",
	"register": "Register",
	"sell":     "Sell",
}

func NewViews() *html.Engine {
	templates, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err.Error())
	}

	engine := html.NewFileSystem(http.FS(templates), ".html")
	engine.AddFunc("usd", utils.USD)
	return engine
}
