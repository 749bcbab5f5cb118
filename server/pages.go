package server

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

var legalPage = template.Must(template.New("legal").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>{{.Title}}</title>
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
	</style>
</head>
<body>
	<h1>{{.Title}}</h1>
	{{range .Paragraphs}}<p>{{.}}</p>
	{{end}}
</body>
</html>`))

type legalDoc struct {
	Title      string
	Paragraphs []string
}

var privacyPolicy = legalDoc{
	Title: "Privacy Policy",
	Paragraphs: []string{
		"The bot stores the guild id, the requesting user id and the title and link of every track it plays, so the history and most played commands can list them.",
		"Queues live in memory only and are lost when the bot restarts.",
		"Search queries are forwarded to the audio and catalog providers used to find tracks. Nothing else about you is stored or shared.",
		"Ask a server administrator to remove the bot to stop all collection for that server.",
	},
}

var termsOfService = legalDoc{
	Title: "Terms of Service",
	Paragraphs: []string{
		"The bot plays audio that is publicly available on third party services. You are responsible for what you request.",
		"The service is provided as is, with no uptime guarantee.",
		"Abusing the bot or the services it relies on may get you or your server blocked.",
	},
}

func servePage(doc legalDoc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := legalPage.Execute(c.Writer, doc); err != nil {
			c.Error(err)
		}
	}
}
