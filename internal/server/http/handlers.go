package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/userservice/internal/convert"
	"github.com/and161185/userservice/internal/errs"
	"github.com/and161185/userservice/internal/service"
)

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Auth ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req convert.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	u, err := s.auth.Register(r.Context(), service.RegisterInput{
		Email:                 req.Email,
		Password:              req.Password,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		PhoneNumber:           req.PhoneNumber,
		PrivacyPolicyAccepted: req.PrivacyPolicyAccepted,
	})
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToUser(*u))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req convert.LoginRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	tok, p, err := s.auth.Login(r.Context(), req.Identity, req.Password, r.RemoteAddr)
	if err != nil {
		// unknown identity and wrong password look the same
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrInvalidCredential) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToLoginResponse(tok, p, s.now()))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req convert.RefreshRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	tok, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrExpired) {
			writeError(w, r, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToRefreshResponse(tok, s.now()))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	if err := s.auth.LogoutPrincipal(r.Context(), p); err != nil {
		fail(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Users ---

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	u, err := s.users.Me(r.Context(), p)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(*u))
}

func (s *Server) assignBusinessUnit(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, s.log, fmt.Errorf("%w: bad user id", errs.ErrInvalidInput))
		return
	}
	var req convert.AssignBusinessUnitRequest
	if err := decode(w, r, &req); err != nil {
		fail(w, r, s.log, err)
		return
	}
	p, _ := PrincipalFromCtx(r.Context())
	if err := s.users.AssignBusinessUnit(r.Context(), p, userID, req.BusinessUnitID); err != nil {
		fail(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) businessUnitName(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name, err := s.users.BusinessUnitName(r.Context(), id)
	if err != nil {
		fail(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.BusinessUnitName{ID: id, Name: name})
}
