package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"fleet-ai-gateway/internal/models"
	"fleet-ai-gateway/pkg/api"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

const maxJsonBodyBytes = 10 << 20

type codedError struct {
	err  error
	code int
	// message is what the client sees. When empty the wrapped error text is used.
	message string
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func (e *codedError) detail() string {
	if e.message != "" {
		return e.message
	}
	return e.err.Error()
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// identifier accepts non-empty strings and numbers.
	if err := v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.String:
			return strings.TrimSpace(fl.Field().String()) != ""
		case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
			return true
		default:
			return false
		}
	}); err != nil {
		panic(err)
	}

	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, after, ok := strings.Cut(field, "."); ok {
			field = after
		}
		return fmt.Errorf("%w: field '%s' failed '%s' validation", models.ErrValidation, field, fe.Tag())
	}
	return fmt.Errorf("%w: %v", models.ErrValidation, err)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxJsonBodyBytes))
	if err != nil {
		slog.Error("error reading request body", "error", err)
		return nil, fmt.Errorf("%w: unable to read request body", models.ErrValidation)
	}
	return body, nil
}

// decodePayload decodes the raw body keeping numbers exactly as sent, so the
// payload can be forwarded to a model unmodified.
func decodePayload(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(dst)
}

// ParsePayload decodes a JSON object body twice: into the typed record T,
// which is validated, and into the untyped payload forwarded to the model.
func ParsePayload[T any](r *http.Request, v *validator.Validate) (T, models.Payload, error) {
	var data T

	body, err := readBody(r)
	if err != nil {
		return data, nil, err
	}

	if err := json.Unmarshal(body, &data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, nil, fmt.Errorf("%w: unable to parse request body", models.ErrValidation)
	}

	var payload models.Payload
	if err := decodePayload(body, &payload); err != nil || payload == nil {
		return data, nil, fmt.Errorf("%w: request body must be a JSON object", models.ErrValidation)
	}

	if err := v.Struct(data); err != nil {
		return data, nil, validationError(err)
	}

	return data, payload, nil
}

// ParsePayloadList is ParsePayload for bodies holding a JSON array of objects.
func ParsePayloadList[T any](r *http.Request, v *validator.Validate) ([]T, []models.Payload, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, nil, err
	}

	var data []T
	if err := json.Unmarshal(body, &data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return nil, nil, fmt.Errorf("%w: unable to parse request body", models.ErrValidation)
	}

	var payloads []models.Payload
	if err := decodePayload(body, &payloads); err != nil || payloads == nil {
		return nil, nil, fmt.Errorf("%w: request body must be a JSON array of objects", models.ErrValidation)
	}

	for i, item := range data {
		if payloads[i] == nil {
			return nil, nil, fmt.Errorf("%w: item %d must be a JSON object", models.ErrValidation, i)
		}
		if err := v.Struct(item); err != nil {
			return nil, nil, fmt.Errorf("item %d: %w", i, validationError(err))
		}
	}

	return data, payloads, nil
}

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&data, r.Form); err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			var cerr *codedError
			if errors.As(err, &cerr) {
				writeJsonError(w, cerr.code, cerr.detail())
			} else {
				slog.Error("recieved non coded error from endpoint", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
				writeJsonError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, res)
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		writeJsonError(w, http.StatusInternalServerError, "error serializing response body")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}

func writeJsonError(w http.ResponseWriter, code int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(api.ErrorResponse{Detail: detail}); err != nil {
		slog.Error("error writing error response", "error", err)
	}
}
