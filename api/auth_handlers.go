package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const loginBodyLimit = 4 * 1024

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
	OTP      string `json:"otp,omitempty" validate:"omitempty,len=6,numeric"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// login exchanges the configured credentials for a JWT
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	if !a.config.Auth.Enabled {
		writeError(w, http.StatusNotImplemented, "Authentication is disabled in configuration", nil, a.logger)
		return
	}

	ip := a.clientIP(r)
	if !a.loginLimit.Allow(r.Context(), ip) {
		a.logger.Warnw("Login rate limit exceeded", "ip", ip)
		a.writeRateLimitResponse(w, a.loginLimit.Limit())
		return
	}

	var creds loginRequest
	if err := a.decodeJSONBodyWithLimit(w, r, &creds, loginBodyLimit); err != nil {
		return
	}
	if err := a.validateRequest(w, &creds); err != nil {
		return
	}

	// compare both fields every time so timing does not reveal which was wrong
	userOK := subtle.ConstantTimeCompare([]byte(creds.Username), []byte(a.config.Auth.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(a.config.Auth.HashedPassword), []byte(creds.Password)) == nil
	if !userOK || !passOK {
		a.logger.Infow("AUDIT: Login attempt failed",
			"action", "login",
			"outcome", "failure",
			"username", sanitizeLogMessage(creds.Username),
			"source_ip", ip)
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil, nil)
		return
	}

	if secret := a.config.Auth.TOTPSecret; secret != "" {
		if creds.OTP == "" {
			writeError(w, http.StatusUnauthorized, "One-time code required", nil, nil)
			return
		}
		if !a.totp.verify(creds.OTP, secret, time.Now()) {
			a.logger.Infow("AUDIT: Login attempt failed",
				"action", "login",
				"outcome", "failure",
				"reason", "invalid_otp",
				"username", sanitizeLogMessage(creds.Username),
				"source_ip", ip)
			writeError(w, http.StatusUnauthorized, "Invalid one-time code", nil, nil)
			return
		}
	}

	token, expiresAt, err := generateJWT(creds.Username, a.config, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err, a.logger)
		return
	}

	a.logger.Infow("AUDIT: Login succeeded",
		"action", "login",
		"outcome", "success",
		"username", creds.Username,
		"source_ip", ip)
	a.respondJSON(w, loginResponse{Token: token, ExpiresAt: expiresAt}, http.StatusOK)
}
