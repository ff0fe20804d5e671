package http

import (
	"net/http"

	"finwiz/internal/core"
)

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	statements, err := s.statements.List(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if statements == nil {
		statements = []core.Statement{}
	}
	NewJSONResponse().Data(statements).Write(w)
}

func (s *Server) handleCreateStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.statements.Create(r.Context(), accountID, req.toStatement())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context(), accountID)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/statements/"+created.ID.String()).
		Data(created).
		Write(w)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "statementID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.statements.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(st).Write(w)
}

// handleUpdateStatement may move a statement between accounts, so both the
// old and the new account lose their cached analytics.
func (s *Server) handleUpdateStatement(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "statementID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	current, err := s.statements.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.statements.Update(r.Context(), id, req.toStatement())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context(), current.AccountID, updated.AccountID)
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteStatement(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "statementID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	removed, err := s.statements.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context(), removed.AccountID)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
