package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/checkout"
	"go-storefront/ledger"
	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/utils"
)

const (
	storeTimeout    = 5 * time.Second
	pipelineTimeout = 30 * time.Second
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Ref           string `json:"ref,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

var kindStatus = map[checkout.Kind]int{
	checkout.KindEmptyCart:              http.StatusBadRequest,
	checkout.KindUnsupportedProvider:    http.StatusBadRequest,
	checkout.KindInvalidAddress:         http.StatusUnprocessableEntity,
	checkout.KindInvalidShipment:        http.StatusUnprocessableEntity,
	checkout.KindInsufficientStock:      http.StatusConflict,
	checkout.KindOrderNotPayable:        http.StatusConflict,
	checkout.KindAlreadyShipped:         http.StatusConflict,
	checkout.KindOrderNotCancellable:    http.StatusConflict,
	checkout.KindInvalidTransition:      http.StatusConflict,
	checkout.KindReconciliationMismatch: http.StatusNotFound,
	checkout.KindOrderNotFound:          http.StatusNotFound,
	checkout.KindGatewayError:           http.StatusBadGateway,
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}

func respondFailure(w http.ResponseWriter, r *http.Request, status int, code, message, ref string) {
	respondJSON(w, status, ErrorResponse{
		Error:         code,
		Message:       message,
		Ref:           ref,
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	respondFailure(w, r, http.StatusBadRequest, "invalid_request", message, "")
}

func notFound(w http.ResponseWriter, r *http.Request, message string) {
	respondFailure(w, r, http.StatusNotFound, "not_found", message, "")
}

// respondError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a bare 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cerr *checkout.Error
		verr *models.ValidationError
	)
	switch {
	case errors.As(err, &cerr):
		status, ok := kindStatus[cerr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		respondFailure(w, r, status, string(cerr.Kind), cerr.Message, cerr.Ref)
	case errors.As(err, &verr):
		badRequest(w, r, verr.Reason)
	case errors.Is(err, models.ErrNotFound), errors.Is(err, ledger.ErrProductNotFound):
		notFound(w, r, "resource not found")
	case errors.Is(err, models.ErrDuplicate):
		respondFailure(w, r, http.StatusConflict, "duplicate", "resource already exists", "")
	case errors.Is(err, models.ErrConflict):
		respondFailure(w, r, http.StatusConflict, "conflict", "resource was changed concurrently, retry", "")
	default:
		cid := middleware.GetCorrelationID(r.Context())
		log.Printf("correlation_id=%s %s %s: %v", cid, r.Method, r.URL.Path, err)
		respondFailure(w, r, http.StatusInternalServerError, "internal", "internal server error", "")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, r, "Invalid input")
		return false
	}
	return true
}

// pathID parses the {name} route variable as an ObjectID.
func pathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		badRequest(w, r, "Invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseID(w http.ResponseWriter, r *http.Request, field, value string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		badRequest(w, r, "Invalid "+field)
		return primitive.NilObjectID, false
	}
	return id, true
}

// currentUser returns the caller's claims and user id.
func currentUser(w http.ResponseWriter, r *http.Request) (*utils.Claims, primitive.ObjectID, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		respondFailure(w, r, http.StatusUnauthorized, "unauthorized", "Unauthorized", "")
		return nil, primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		respondFailure(w, r, http.StatusUnauthorized, "unauthorized", "Unauthorized", "")
		return nil, primitive.NilObjectID, false
	}
	return claims, userID, true
}

func owns(claims *utils.Claims, userID, owner primitive.ObjectID) bool {
	return claims.IsAdmin() || userID == owner
}

func storeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), storeTimeout)
}
