// Copyright (c) 2026 Identra. All rights reserved.

package auth

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/platform/middleware"
	requestutil "github.com/identra/identra/internal/platform/request"
	"github.com/identra/identra/internal/platform/respond"
	"github.com/identra/identra/internal/platform/validate"
)

// # HTTP Handler

// Handler exposes the authentication service over REST.
type Handler struct {
	service *Service

	// frontendURL is where OAuth callbacks redirect the browser to.
	frontendURL string

	// secureCookies marks refresh cookies Secure (production only, so local
	// development over plain HTTP keeps working).
	secureCookies bool
}

// NewHandler creates the authentication HTTP handler.
func NewHandler(service *Service, frontendURL string, secureCookies bool) *Handler {
	return &Handler{
		service:       service,
		frontendURL:   frontendURL,
		secureCookies: secureCookies,
	}
}

// Routes assembles the /auth router.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/verify-email", handler.verifyEmail)

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Get("/me", handler.me)
		protected.Post("/change-password", handler.changePassword)
	})

	router.Route("/{provider}", func(oauth chi.Router) {
		oauth.Get("/", handler.oauthBegin)
		oauth.Get("/callback", handler.oauthCallback)
	})

	return router
}

// # Local Credential Endpoints

func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input RegisterInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Register(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.RefreshToken)
	respond.Created(writer, result)
}

func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input LoginInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Login(request.Context(), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.RefreshToken)
	respond.OK(writer, result)
}

func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	token := handler.refreshTokenFrom(request)
	if token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldRefreshToken, "Refresh token is missing"))
		return
	}

	result, err := handler.service.RefreshSession(request.Context(), token)
	if err != nil {
		handler.clearRefreshCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.RefreshToken)
	respond.OK(writer, result)
}

// logout clears the refresh cookie. Sessions are stateless JWTs, so there is
// no server-side session to revoke; the access token simply ages out.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Me(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}

// # Password Lifecycle Endpoints

func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if _, err := handler.service.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password reset instructions sent",
	})
}

func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ResetPassword(request.Context(), input.Token, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password has been reset",
	})
}

func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password has been changed",
	})
}

func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input struct {
		Token string `json:"token"`
	}
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.VerifyEmail(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email has been verified",
	})
}

// # OAuth Endpoints

func (handler *Handler) oauthBegin(writer http.ResponseWriter, request *http.Request) {
	provider := requestutil.Param(request, "provider")

	authURL, err := handler.service.AuthorizationURL(request.Context(), provider)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, authURL, http.StatusTemporaryRedirect)
}

// oauthCallback finishes the flow and hands the browser back to the frontend.
// Tokens travel in the URL fragment so they never reach frontend server logs.
func (handler *Handler) oauthCallback(writer http.ResponseWriter, request *http.Request) {
	provider := requestutil.Param(request, "provider")
	state := request.URL.Query().Get("state")
	code := request.URL.Query().Get("code")

	result, err := handler.service.CompleteOAuth(request.Context(), provider, state, code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.RefreshToken)

	fragment := url.Values{}
	fragment.Set(FieldAccessToken, result.AccessToken)
	http.Redirect(writer, request, handler.frontendURL+"/auth/callback#"+fragment.Encode(), http.StatusTemporaryRedirect)
}

// # Refresh Cookie Plumbing

// refreshTokenFrom reads the refresh token from the scoped cookie, falling
// back to a JSON body for clients that cannot use cookies.
func (handler *Handler) refreshTokenFrom(request *http.Request) string {
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		return ""
	}
	return input.RefreshToken
}

func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    token,
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   handler.service.RefreshTokenTTL(),
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
