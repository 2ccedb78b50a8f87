package http

import (
	"context"
	"net/http"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/report"
)

const readyTimeout = 2 * time.Second

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Text("ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.Ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			NewJSONResponse().Status(http.StatusServiceUnavailable).Text("not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Text("ready").Write(w)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Text(s.service.DisplayName() + " Service is UP").Write(w)
}

// handleReport serves GET /api/report?id=&year=&month=.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := ParseReportQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.Reports.GetMonthlyReport(r.Context(), q.UserID, q.Year, q.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Report served",
		append(log.NewFields().WithReportKey(q.UserID, q.Year, q.Month).ToSlice(),
			log.FieldSource, string(res.Source))...)
	NewJSONResponse().JSON(report.NewDocument(res.Report)).Write(w)
}

func (s *Server) handleAddCost(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCostBody(r, s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Costs.AddCost(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	u, err := ParseUserBody(r, s.deps.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Users.AddUser(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).JSON(saved).Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(summary).Write(w)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(users).Write(w)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.deps.Logs.ListLogs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(logs).Write(w)
}

// handleAbout lists the team members and nothing else.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	team := s.deps.Team
	if team == nil {
		team = []core.TeamMember{}
	}
	NewJSONResponse().JSON(team).Write(w)
}
