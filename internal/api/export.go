// ABOUTME: HTML transcript export for a chat
// ABOUTME: Renders assistant markdown with goldmark into a standalone document

package api

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/store"
)

var exportTemplate = template.Must(template.New("export").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.message { margin: 1.5rem 0; padding: 1rem; border-radius: 8px; }
.message.user { background: #eef2ff; }
.message.assistant { background: #f4f4f5; }
.message.system { background: #fef9c3; }
.role { font-weight: bold; font-size: 0.8rem; text-transform: uppercase; color: #555; }
.timestamp { font-size: 0.75rem; color: #999; }
pre { overflow-x: auto; background: #1e1e1e; color: #eee; padding: 0.75rem; border-radius: 6px; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="timestamp">Exported {{.ExportedAt}}</p>
{{range .Messages}}
<div class="message {{.Role}}">
<div class="role">{{.Role}}</div>
{{.Body}}
<div class="timestamp">{{.Timestamp}}</div>
</div>
{{end}}
</body>
</html>
`))

type exportMessage struct {
	Role      string
	Body      template.HTML
	Timestamp string
}

type exportData struct {
	Title      string
	ExportedAt string
	Messages   []exportMessage
}

func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.MustFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")

	chat, err := s.store.GetChat(r.Context(), authCtx.UserID, chatID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), authCtx.UserID, chatID, 0)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	data := exportData{
		Title:      chat.Title,
		ExportedAt: time.Now().UTC().Format(time.RFC1123),
	}
	for _, m := range msgs {
		data.Messages = append(data.Messages, exportMessage{
			Role:      m.Role,
			Body:      renderMessageBody(m),
			Timestamp: m.CreatedAt.Format(time.RFC1123),
		})
	}

	var buf bytes.Buffer
	if err := exportTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("failed to render export", "error", err, "chat_id", chatID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", chat.Title+".html"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// renderMessageBody converts assistant markdown to HTML; user and system
// turns are escaped verbatim.
func renderMessageBody(m *store.Message) template.HTML {
	if m.Role == store.RoleAssistant {
		var htmlBuf bytes.Buffer
		if err := goldmark.Convert([]byte(m.Content), &htmlBuf); err == nil {
			return template.HTML(htmlBuf.String())
		}
	}
	escaped := template.HTMLEscapeString(m.Content)
	return template.HTML("<p>" + escaped + "</p>")
}
