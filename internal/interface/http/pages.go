package http

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/solvera/ojt-core/internal/application/query"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/pkg/logger"
	"github.com/solvera/ojt-core/pkg/timeutil"
)

//go:embed templates/*.html
var templateFS embed.FS

// qrSize is the edge length in pixels of generated QR images.
const qrSize = 512

// pages holds the parsed HTML templates.
type pages struct {
	byName map[string]*template.Template
}

// pageData is the view model shared by every page.
type pageData struct {
	Title   string
	Heading string
	Message string
	Session *attendance.Session

	// Refresh is the meta refresh value of redirect pages.
	Refresh   string
	TargetURL string

	Image    template.URL
	Value    string
	Download bool
	Filename string

	Page     *query.PortalPage
	PrevPage int
	NextPage int
	Self     string

	Detail *query.ParticipantDetail
	Return string
}

var pageFuncs = template.FuncMap{
	"datetime": func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			return timeutil.FormatLocal(t, timeutil.FormatDateTime)
		case *time.Time:
			if t == nil {
				return "-"
			}
			return timeutil.FormatLocal(*t, timeutil.FormatDateTime)
		}
		return ""
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(timeutil.FormatDate)
	},
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"score": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.1f", *v)
	},
}

func loadPages() (*pages, error) {
	names := []string{"message.html", "redirect.html", "qr.html", "portal_dashboard.html", "portal_participant.html"}
	p := &pages{byName: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := template.New(name).Funcs(pageFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.byName[name] = t
	}
	return p, nil
}

// render executes a page into a buffer first so a template error still
// produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	t, ok := s.pages.byName[name]
	if !ok {
		s.logger.Error("unknown template", logger.String("template", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		logger.FromContext(r.Context()).Error("render template failed",
			logger.String("template", name),
			logger.Err(err),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderMessage renders the generic message page.
func (s *Server) renderMessage(w http.ResponseWriter, r *http.Request, status int, heading, message string, session *attendance.Session) {
	s.render(w, r, status, "message.html", pageData{
		Title:   heading,
		Heading: heading,
		Message: message,
		Session: session,
	})
}

// notFoundPage renders the HTML 404 page of public and portal routes.
func (s *Server) notFoundPage(w http.ResponseWriter, r *http.Request) {
	s.renderMessage(w, r, http.StatusNotFound, "Not found", "The page you are looking for does not exist.", nil)
}

// qrPNG encodes value as a QR code PNG.
func qrPNG(value string) ([]byte, error) {
	return qrcode.Encode(value, qrcode.Medium, qrSize)
}

// qrDataURI encodes value as an inline PNG image.
func qrDataURI(value string) (template.URL, error) {
	png, err := qrPNG(value)
	if err != nil {
		return "", err
	}
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png)), nil
}
