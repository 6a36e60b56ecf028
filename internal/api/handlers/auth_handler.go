package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/olamide-hq/ragline/internal/config"
)

type AuthHandler struct {
	cfg *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type TokenRequest struct {
	APISecret string `json:"api_secret"`
	ClientID  string `json:"client_id"`
}

// IssueToken exchanges the shared API secret for a short-lived bearer
// token used by the protected routes.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if h.cfg.APISecret == "" ||
		subtle.ConstantTimeCompare([]byte(req.APISecret), []byte(h.cfg.APISecret)) != 1 {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = "default"
	}

	claims := jwt.MapClaims{
		"client_id": clientID,
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.JwtSecret))
	if err != nil {
		log.Printf("ERROR: signing token: %v", err)
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token": signed,
	})
}
