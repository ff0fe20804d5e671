package http

import (
	"net/http"

	"finwiz/internal/core"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context(), wantsStatements(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	NewJSONResponse().Data(accounts).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	account, err := s.accounts.Get(r.Context(), id, wantsStatements(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(account).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := s.accounts.Create(r.Context(), req.toAccount())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context(), created.ID)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/accounts/"+created.ID.String()).
		Data(created).
		Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := s.accounts.Update(r.Context(), id, req.toAccount())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context(), id)
	NewJSONResponse().Data(updated).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "accountID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.accounts.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(r.Context(), id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
