package http

import (
	"context"
	"net/http"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/application/command"
	"github.com/solvera/ojt-core/internal/domain/attendance"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC ATTENDANCE PAGES
// ══════════════════════════════════════════════════════════════════════════════

const (
	qrModeJoin    = "join"
	qrModeCheckin = "checkin"

	qrEngineClient = "client"
	qrEngineServer = "server"
)

// checkIn runs a token check-in and renders the failure cases. ok is false
// when a response was already written.
func (s *Server) checkIn(w http.ResponseWriter, r *http.Request, method attendance.Method) (*command.CheckInResult, bool) {
	res, err := s.deps.Commands.Attendance.CheckIn(r.Context(), command.CheckInCommand{
		Token:  pathID(r, "token"),
		Method: method,
	})
	switch {
	case err == nil:
		return res, true
	case shared.IsNotFound(err) || shared.IsValidation(err):
		s.notFoundPage(w, r)
	case shared.IsStateConflict(err):
		// Outside the check-in window: show why, the row is untouched.
		s.renderMessage(w, r, http.StatusOK, "Check-in", shared.UserMessage(err), nil)
	default:
		logger.FromContext(r.Context()).Error("check-in failed",
			logger.String("method", string(method)),
			logger.Err(err),
		)
		s.renderMessage(w, r, http.StatusInternalServerError, "Something went wrong", "Please try again in a moment.", nil)
	}
	return nil, false
}

// handleQRCheckIn handles GET /ojt/q/{token}.
func (s *Server) handleQRCheckIn(w http.ResponseWriter, r *http.Request) {
	res, ok := s.checkIn(w, r, attendance.MethodQR)
	if !ok {
		return
	}
	s.renderMessage(w, r, http.StatusOK, "Check-in", res.Message, &res.Session)
}

// handleJoinCheckIn handles GET /ojt/a/{token}: online check-in, then a client
// redirect to the meeting. Sessions without a meeting link get an info page.
func (s *Server) handleJoinCheckIn(w http.ResponseWriter, r *http.Request) {
	res, ok := s.checkIn(w, r, attendance.MethodOnline)
	if !ok {
		return
	}
	if res.MeetingURL == "" {
		s.renderMessage(w, r, http.StatusOK, "Check-in",
			res.Message+" The meeting link for this session is not available yet.", &res.Session)
		return
	}
	s.render(w, r, http.StatusOK, "redirect.html", pageData{
		Title:     "Joining meeting",
		Heading:   "Joining meeting",
		Message:   res.Message,
		Session:   &res.Session,
		Refresh:   "0;url=" + res.MeetingURL,
		TargetURL: res.MeetingURL,
	})
}

// qrValue resolves the URL a QR code should carry. Any mode other than join
// encodes the check-in link.
func (s *Server) qrValue(ctx context.Context, token, mode string) (string, error) {
	links, err := s.deps.Queries.AttendanceByToken(ctx, token, s.config.BaseURL)
	if err != nil {
		return "", err
	}
	if mode == qrModeJoin {
		return links.JoinURL, nil
	}
	return links.QRURL, nil
}

// handleQRImage handles GET /ojt/qrimg/{token}?mode=join|checkin&engine=client|server.
// The server engine streams a PNG; the client engine renders a page around it.
func (s *Server) handleQRImage(w http.ResponseWriter, r *http.Request) {
	mode := getQueryParamLower(r, "mode", qrModeJoin)
	engine := getQueryParamLower(r, "engine", qrEngineClient)

	value, ok := s.resolveQR(w, r, mode)
	if !ok {
		return
	}

	if engine == qrEngineServer && s.deps.Features.IsEnabled(config.FeatureQRServerEngine, nil) {
		png, err := qrPNG(value)
		if err == nil {
			w.Header().Set("Content-Type", "image/png")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(png)
			return
		}
		logger.FromContext(r.Context()).Warn("server QR engine failed, falling back to page", logger.Err(err))
	}
	s.renderQRPage(w, r, value, mode, false)
}

// handleQRPNG handles GET /ojt/qrpng/{token}?mode=checkin|join: a page with a
// downloadable PNG.
func (s *Server) handleQRPNG(w http.ResponseWriter, r *http.Request) {
	mode := getQueryParamLower(r, "mode", qrModeCheckin)
	value, ok := s.resolveQR(w, r, mode)
	if !ok {
		return
	}
	s.renderQRPage(w, r, value, mode, true)
}

func (s *Server) resolveQR(w http.ResponseWriter, r *http.Request, mode string) (string, bool) {
	value, err := s.qrValue(r.Context(), pathID(r, "token"), mode)
	if err != nil {
		if !shared.IsNotFound(err) {
			logger.FromContext(r.Context()).Error("resolve QR token failed", logger.Err(err))
		}
		s.notFoundPage(w, r)
		return "", false
	}
	if value == "" {
		s.notFoundPage(w, r)
		return "", false
	}
	return value, true
}

func (s *Server) renderQRPage(w http.ResponseWriter, r *http.Request, value, mode string, download bool) {
	img, err := qrDataURI(value)
	if err != nil {
		logger.FromContext(r.Context()).Error("encode QR failed", logger.Err(err))
		s.renderMessage(w, r, http.StatusInternalServerError, "Something went wrong", "The QR code could not be generated.", nil)
		return
	}
	heading := "Check-in QR code"
	if mode == qrModeJoin {
		heading = "Join QR code"
	}
	s.render(w, r, http.StatusOK, "qr.html", pageData{
		Title:    heading,
		Heading:  heading,
		Image:    img,
		Value:    value,
		Download: download,
		Filename: "ojt-" + mode + ".png",
	})
}
