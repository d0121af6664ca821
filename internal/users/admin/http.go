// Copyright (c) 2026 Identra. All rights reserved.

package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/identra/identra/internal/platform/middleware"
	requestutil "github.com/identra/identra/internal/platform/request"
	"github.com/identra/identra/internal/platform/respond"
	"github.com/identra/identra/internal/platform/sec"
	"github.com/identra/identra/pkg/pagination"
)

// # HTTP Handler

// Handler exposes the user management service over REST.
type Handler struct {
	service *Service
}

// NewHandler creates the user management HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes assembles the /users router.
//
// Role tiers: listing and mutations are admin-only, single-account reads are
// open to moderators, and /me is available to any authenticated user.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Patch("/me", handler.updateProfile)

	router.Group(func(moderator chi.Router) {
		moderator.Use(middleware.RequireRole(sec.RoleModerator))
		moderator.Get("/{id}", handler.get)
	})

	router.Group(func(adminOnly chi.Router) {
		adminOnly.Use(middleware.RequireRole(sec.RoleAdmin))
		adminOnly.Get("/", handler.list)
		adminOnly.Post("/", handler.create)
		adminOnly.Patch("/{id}", handler.update)
		adminOnly.Delete("/{id}", handler.deactivate)
	})

	return router
}

// # Directory Endpoints

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	users, meta, err := handler.service.List(request.Context(), params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, users, meta)
}

func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.service.Get(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input CreateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Create(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, user)
}

func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var input UpdateInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Update(request.Context(), requestutil.Param(request, "id"), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

func (handler *Handler) deactivate(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.Deactivate(request.Context(), requestutil.Param(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

// # Self-Service Endpoints

func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input ProfileInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.UpdateProfile(request.Context(), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}
