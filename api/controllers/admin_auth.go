package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/wavelength-fm/station-backend/api/responses"
	"github.com/wavelength-fm/station-backend/api/validators"
	"github.com/wavelength-fm/station-backend/pkg/auth"
	"github.com/wavelength-fm/station-backend/pkg/config"
	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/security"
)

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=256"`
}

type adminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminLogin exchanges the configured operator credentials for a bearer token.
func AdminLogin(cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !cfg.Admin.Enabled() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin login is not configured"))
			return
		}

		var body adminLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		invalid := pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")

		email := strings.ToLower(strings.TrimSpace(body.Email))
		expected := strings.ToLower(strings.TrimSpace(cfg.Admin.Email))
		emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(expected)) == 1

		// verify even on an email miss so timing does not reveal the account
		passwordOK, err := security.VerifyPassword(body.Password, cfg.Admin.PasswordHash)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify admin password"))
			return
		}
		if !emailOK || !passwordOK {
			responses.WriteError(ctx, logg, w, invalid)
			return
		}

		token, expiresAt, err := auth.MintAccessToken(cfg.JWT, time.Now().UTC(), auth.AccessTokenPayload{
			Subject: expected,
			Role:    auth.RoleAdmin,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token"))
			return
		}

		if logg != nil {
			actorCtx := logg.WithActor(ctx, expected)
			if security.NeedsRehash(cfg.Admin.PasswordHash, cfg.Password) {
				logg.Warn(actorCtx, "admin.password_hash_weaker_than_config")
			}
			logg.Info(actorCtx, "admin.login")
		}
		responses.WriteSuccess(w, adminLoginResponse{Token: token, ExpiresAt: expiresAt})
	}
}
