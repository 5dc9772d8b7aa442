package httpx

import "net/http"

const (
	StatusOK                  = http.StatusOK                  // Successful request
	StatusCreated             = http.StatusCreated             // Account or poll created
	StatusNoContent           = http.StatusNoContent           // Successful with no body
	StatusBadRequest          = http.StatusBadRequest          // Validation or malformed input
	StatusUnauthorized        = http.StatusUnauthorized        // Missing, expired, or revoked credentials
	StatusForbidden           = http.StatusForbidden           // Authenticated but not owner or admin
	StatusNotFound            = http.StatusNotFound            // Poll or user not found
	StatusConflict            = http.StatusConflict            // Duplicate vote, closed poll, or taken email
	StatusUnprocessableEntity = http.StatusUnprocessableEntity // Vote naming an unknown option
	StatusTooManyRequests     = http.StatusTooManyRequests     // Rate limit exceeded
	StatusInternalError       = http.StatusInternalServerError // Unexpected server error
	StatusServiceUnavailable  = http.StatusServiceUnavailable  // Backing store outage
)
