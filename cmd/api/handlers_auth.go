package main

import (
	"net/http"
	"time"

	"disputeflow/auth"
)

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req auth.RegisterRequest
	if err := decodeBody(w, r, registerSchema, &req); err != nil {
		s.fail(ctx, w, "register", err)
		return
	}
	user, err := s.auth.Register(ctx, req)
	if err != nil {
		s.fail(ctx, w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, toUserResponse(*user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req auth.LoginRequest
	if err := decodeBody(w, r, loginSchema, &req); err != nil {
		s.fail(ctx, w, "login", err)
		return
	}
	res, err := s.auth.Login(ctx, req)
	if err != nil {
		s.fail(ctx, w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserResponse(res.User),
	})
}
