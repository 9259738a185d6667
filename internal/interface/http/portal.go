package http

import (
	"net/http"
	"strconv"

	"github.com/solvera/ojt-core/config"
	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/internal/domain/shared"
	"github.com/solvera/ojt-core/internal/interface/http/handlers"
	"github.com/solvera/ojt-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTAL
// ══════════════════════════════════════════════════════════════════════════════

// portalEnabled reports whether the portal is on for the request's user.
func (s *Server) portalEnabled(r *http.Request) bool {
	u, ok := userFrom(r)
	if !ok {
		return false
	}
	return s.deps.Features.IsEnabled(config.FeaturePortal, &config.FeatureContext{
		PartnerID: u.PartnerID,
		Internal:  u.Internal,
	})
}

// handlePortalDashboard handles GET /my/ojt?page=N.
func (s *Server) handlePortalDashboard(w http.ResponseWriter, r *http.Request) {
	if !s.portalEnabled(r) {
		s.notFoundPage(w, r)
		return
	}
	u, _ := userFrom(r)

	page, err := s.deps.Queries.PortalDashboard(r.Context(), u, getQueryParamInt(r, "page", 1))
	if err != nil {
		s.portalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "portal_dashboard.html", pageData{
		Title:    "My OJT",
		Page:     page,
		PrevPage: page.Page - 1,
		NextPage: page.Page + 1,
		Self:     portalPageURL(page.Page),
	})
}

// handlePortalParticipant handles GET /my/ojt/participant/{id}?ret=...
func (s *Server) handlePortalParticipant(w http.ResponseWriter, r *http.Request) {
	if !s.portalEnabled(r) {
		s.notFoundPage(w, r)
		return
	}
	u, _ := userFrom(r)

	detail, err := s.deps.Queries.PortalParticipantDetail(r.Context(), u, pathID(r, "id"))
	if err != nil {
		s.portalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "portal_participant.html", pageData{
		Title:  detail.Participant.Name,
		Detail: detail,
		Return: safeReturn(r.URL.Query().Get("ret")),
	})
}

func (s *Server) portalError(w http.ResponseWriter, r *http.Request, err error) {
	if shared.IsNotFound(err) || shared.IsForbidden(err) {
		s.notFoundPage(w, r)
		return
	}
	logger.FromContext(r.Context()).Error("portal request failed", logger.Err(err))
	s.renderMessage(w, r, http.StatusInternalServerError, "Something went wrong", "Please try again in a moment.", nil)
}

// portalPageURL is the dashboard URL of page n.
func portalPageURL(n int) string {
	if n <= 1 {
		return "/my/ojt"
	}
	return "/my/ojt?page=" + strconv.Itoa(n)
}

// safeReturn accepts only same-site paths as return targets.
func safeReturn(ret string) string {
	if ret == "" || ret[0] != '/' || (len(ret) > 1 && (ret[1] == '/' || ret[1] == '\\')) {
		return "/my/ojt"
	}
	return ret
}

// userFrom returns the portal user set by the Basic auth middleware.
func userFrom(r *http.Request) (*account.User, bool) {
	return handlers.UserFromContext(r.Context())
}
