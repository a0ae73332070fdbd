package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/types"
)

// WriteSuccess renders data inside the success envelope with status 200.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

// WriteSuccessStatus renders data inside the success envelope with an
// explicit status code.
func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	encode(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err onto the error envelope and logs the full chain.
// Messages from 5xx classifications never reach the client; those fall
// back to the code's public message.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	logError(ctx, logg, typed, err)
	encode(w, meta.HTTPStatus, types.ErrorEnvelope{Error: clientError(typed, meta)})
}

func clientError(typed *pkgerrors.Error, meta pkgerrors.Metadata) types.APIError {
	out := types.APIError{
		Code:    string(typed.Code()),
		Message: meta.PublicMessage,
	}
	if meta.HTTPStatus < http.StatusInternalServerError {
		if msg := typed.Message(); msg != "" {
			out.Message = msg
		}
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return out
}

func logError(ctx context.Context, logg *logger.Logger, typed *pkgerrors.Error, err error) {
	if logg == nil {
		return
	}

	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error":         dump.TopMessage,
		"error_code":    dump.Code,
		"error_chain":   dump.Chain,
		"pg_code":       dump.PGCode,
		"pg_detail":     dump.PGDetail,
		"pg_message":    dump.PGMessage,
		"pg_table":      dump.PGTable,
		"pg_column":     dump.PGColumn,
		"pg_constraint": dump.PGConstraint,
	}
	if dm, ok := typed.Details().(map[string]any); ok {
		if step, ok := dm["step"]; ok {
			fields["step"] = step
		}
	}

	logg.Error(logg.WithFields(ctx, fields), "request.error", err)
}

func encode(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
