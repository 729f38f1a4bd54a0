package receipt

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/zombor/ticket-ocr/internal/scanning"
)

// Kind classifies a failed OCR request
type Kind int

const (
	KindMissingInput Kind = iota + 1
	KindInvalidBody
	KindUnauthorized
	KindUpstreamUnreadable
	KindUpstreamFailure
	KindInternalFailure
)

func (k Kind) String() string {
	switch k {
	case KindMissingInput:
		return "missing_input"
	case KindInvalidBody:
		return "invalid_body"
	case KindUnauthorized:
		return "unauthorized"
	case KindUpstreamUnreadable:
		return "upstream_unreadable"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindInternalFailure:
		return "internal_failure"
	default:
		return "unknown"
	}
}

// Messages shown to the app's users
const (
	msgMissingImage = "Scan manquant. Veuillez scanner un document avant d'en extraire des informations."
	msgUnreadable   = "Le scan est flou, illisible ou n'a pas été identifié comme un ticket de caisse. Veuillez essayer avec un autre scan."
	msgInvalidBody  = "Requête invalide. Le corps doit être un objet JSON contenant base64_image."
	msgTooLarge     = "Scan trop volumineux. La taille maximale est de 50 Mo."
	msgForbidden    = "Forbidden"
)

// Error is a request failure with the HTTP status and body it maps to
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Details is an optional diagnostic payload, usually the upstream body
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyScanError maps a scanner failure to the response the caller gets
func classifyScanError(err error) *Error {
	if errors.Is(err, scanning.ErrUnreadable) {
		return &Error{Kind: KindUpstreamUnreadable, Status: http.StatusBadRequest, Message: msgUnreadable, Err: err}
	}

	var apiErr *scanning.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		return &Error{
			Kind:    KindUpstreamFailure,
			Status:  status,
			Message: err.Error(),
			Details: upstreamDetails(apiErr.Body),
			Err:     err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &Error{Kind: KindUpstreamFailure, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}

	return &Error{Kind: KindInternalFailure, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

// upstreamDetails keeps a JSON body as-is and falls back to the raw text
func upstreamDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
