package http

import (
	"net/http"
	"strings"

	"landledger/internal/core"
	applog "landledger/internal/log"
)

func (s *Server) handleListAgreements(w http.ResponseWriter, r *http.Request) {
	opts, err := ParseListOptions(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.agreements.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(list).Write(w)
}

func (s *Server) handleCreateAgreement(w http.ResponseWriter, r *http.Request) {
	var fields core.AgreementFields
	if err := DecodeJSON(w, r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := s.agreements.Create(r.Context(), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(a).Write(w)
}

func (s *Server) handleGetAgreement(w http.ResponseWriter, r *http.Request) {
	a, err := s.agreements.Get(r.Context(), agreementID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(a).Write(w)
}

// handleUpdateAgreement replaces an agreement, creating it under the given
// id when it does not exist yet.
func (s *Server) handleUpdateAgreement(w http.ResponseWriter, r *http.Request) {
	var fields core.AgreementFields
	if err := DecodeJSON(w, r, &fields); err != nil {
		writeError(w, r, err)
		return
	}
	a, _, err := s.agreements.Update(r.Context(), agreementID(r), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(a).Write(w)
}

func (s *Server) handleDeleteAgreement(w http.ResponseWriter, r *http.Request) {
	id := agreementID(r)
	if err := s.agreements.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if u, ok := currentUser(r.Context()); ok {
		applog.FromContext(r.Context()).InfoContext(r.Context(), "Agreement deleted by user",
			applog.FieldAgreementID, id,
			applog.FieldUsername, u.Username)
	}
	NewJSONResponse().Message("Agreement deleted successfully").Write(w)
}

func (s *Server) handleAgreementTable(w http.ResponseWriter, r *http.Request) {
	q, err := ParseTableQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.agreements.Table(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(p).Write(w)
}

func agreementID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}
