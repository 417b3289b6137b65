package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/nucmed-tracker/internal/application"
	"github.com/example/nucmed-tracker/internal/workflow"
)

var (
	errBadRequestBody      = errors.New("le format de la requête est invalide.")
	errInvalidPatientID    = errors.New("identifiant de patient invalide.")
	errInvalidUserID       = errors.New("identifiant d'utilisateur invalide.")
	errInvalidRoleID       = errors.New("identifiant de rôle invalide.")
	errInvalidAssetID      = errors.New("identifiant d'équipement invalide.")
	errInvalidItemID       = errors.New("identifiant d'article invalide.")
	errInvalidLotID        = errors.New("identifiant de lot invalide.")
	errInvalidDoseID       = errors.New("identifiant de dose invalide.")
	errInvalidBirthDate    = errors.New("la date de naissance doit être au format AAAA-MM-JJ.")
	errInvalidTimestamp    = errors.New("les dates doivent être au format RFC 3339.")
	errMissingSessionToken = errors.New("un jeton d'authentification est requis")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "vous n'avez pas les droits nécessaires pour cette opération.",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "adresse e-mail ou mot de passe incorrect.",
		})
	case errors.Is(err, application.ErrSessionExpired):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "la session a expiré. Veuillez vous reconnecter.",
		})
	case errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_REVOKED",
			Message:   "la session a été révoquée. Veuillez vous reconnecter.",
		})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_ACCOUNT_DISABLED",
			Message:   "ce compte est désactivé.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "la ressource demandée est introuvable."})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "une ressource identique existe déjà."})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "la requête entre en conflit avec l'état actuel de la ressource."})
	case errors.Is(err, workflow.ErrUnknownRoom):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Errors:  map[string]string{"room_id": "salle inconnue"},
			Message: "la saisie comporte des erreurs.",
		})
	case errors.Is(err, workflow.ErrWrongRoom):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "le patient ne se trouve pas dans cette salle."})
	case errors.Is(err, workflow.ErrAlreadySeen):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Message: "cette étape est déjà terminée pour ce patient."})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "la saisie comporte des erreurs.",
				Errors:  vErr.FieldErrors,
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "une erreur interne est survenue."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "le contenu de la requête est incorrect."
	case http.StatusUnauthorized:
		return "authentification requise."
	case http.StatusForbidden:
		return "vous n'avez pas les droits nécessaires pour cette opération."
	case http.StatusNotFound:
		return "la ressource demandée est introuvable."
	case http.StatusConflict:
		return "la requête entre en conflit avec l'état actuel de la ressource."
	case http.StatusUnprocessableEntity:
		return "la saisie comporte des erreurs."
	default:
		return "une erreur interne est survenue."
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
