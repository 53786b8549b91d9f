package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lexdraft/api/internal/auth"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/revisions"
	"lexdraft/api/internal/util"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	validate   *validator.Validate
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)
	_ = validate.RegisterValidation("sessionid", func(fl validator.FieldLevel) bool {
		return revisions.ValidSessionID(fl.Field().String())
	})
	return &HTTPServer{service: service, corsOrigin: corsOrigin, validate: validate}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/oauth/{provider}", s.handleOAuth)
		r.Get("/doc-prompts", s.handleListDocPrompts)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/auth/attorney/verify", s.handleSubmitVerification)
			r.Put("/auth/attorney/verify/{userID}", s.handleDecideVerification)
			r.Get("/auth/attorney/pending", s.handlePendingVerifications)

			r.Get("/users/me", s.handleMe)
			r.Patch("/users/me", s.handleUpdateMe)
			r.Get("/users", s.handleListUsers)
			r.Delete("/users/{userID}", s.handleDeleteUser)

			r.Post("/cases", s.handleCreateCase)
			r.Get("/cases", s.handleListCases)
			r.Get("/cases/{caseID}", s.handleGetCase)
			r.Patch("/cases/{caseID}", s.handleUpdateCase)
			r.Delete("/cases/{caseID}", s.handleDeleteCase)
			r.Post("/cases/{caseID}/assign", s.handleAssignAttorney)

			r.Post("/chat", s.handleChat)
			r.Get("/chat/{sessionID}/messages", s.handleChatHistory)
			r.Put("/chat/{sessionID}/context", s.handleSessionContext)

			r.Post("/drafts", s.handleCreateDraft)
			r.Post("/drafts/generate", s.handleGenerateDraft)
			r.Get("/drafts/{sessionID}", s.handleGetDraft)
			r.Put("/drafts/{sessionID}", s.handleUpdateDraft)
			r.Get("/drafts/{sessionID}/revisions", s.handleDraftRevisions)
			r.Get("/drafts/{sessionID}/compare", s.handleCompareRevisions)
			r.Get("/drafts/{sessionID}/export", s.handleExportDraft)

			r.Post("/doc-prompts", s.handleCreateDocPrompt)
			r.Put("/doc-prompts/{promptID}", s.handleUpdateDocPrompt)
			r.Delete("/doc-prompts/{promptID}", s.handleDeleteDocPrompt)

			r.Post("/documents/refine", s.handleRefine)
			r.Get("/documents/templates/{name}", s.handleTemplate)
			r.Post("/documents/generate", s.handleGenerateDocument)

			r.Get("/search", s.handleSearch)
		})
	})
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// Auth

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body SignUpInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.SignUp(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body SignInInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.SignIn(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleOAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	token := strings.TrimSpace(body.AccessToken)
	if token == "" {
		token = bearerToken(r)
	}
	result, err := s.service.OAuthSignIn(r.Context(), chi.URLParam(r, "provider"), token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	var body VerificationInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.SubmitVerification(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleDecideVerification(w http.ResponseWriter, r *http.Request) {
	var body VerificationDecisionInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.DecideVerification(r.Context(), sessionFrom(r), chi.URLParam(r, "userID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handlePendingVerifications(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	result, err := s.service.PendingVerifications(r.Context(), sessionFrom(r), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Users

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Me(r.Context(), sessionFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var body UpdateProfileInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.UpdateMe(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	result, err := s.service.ListUsers(r.Context(), sessionFrom(r), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteUser(r.Context(), sessionFrom(r), chi.URLParam(r, "userID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Cases

func (s *HTTPServer) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var body CreateCaseInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.CreateCase(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleListCases(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	result, err := s.service.ListCases(r.Context(), sessionFrom(r), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetCase(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetCase(r.Context(), sessionFrom(r), chi.URLParam(r, "caseID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleUpdateCase(w http.ResponseWriter, r *http.Request) {
	var body UpdateCaseInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.UpdateCase(r.Context(), sessionFrom(r), chi.URLParam(r, "caseID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteCase(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCase(r.Context(), sessionFrom(r), chi.URLParam(r, "caseID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAssignAttorney(w http.ResponseWriter, r *http.Request) {
	var body AssignAttorneyInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.AssignAttorney(r.Context(), sessionFrom(r), chi.URLParam(r, "caseID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Chat

func (s *HTTPServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var body ChatInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.Chat(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ChatHistory(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleSessionContext(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Context map[string]any `json:"context"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.UpdateSessionContext(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"), body.Context)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Drafts

func (s *HTTPServer) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var body CreateDraftInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.CreateDraft(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, draftPayload(result))
}

func (s *HTTPServer) handleGenerateDraft(w http.ResponseWriter, r *http.Request) {
	var body GenerateDraftInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.GenerateDraft(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftPayload(result))
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.service.GetDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftView(draft))
}

func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content *string `json:"content" validate:"required"`
	}
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.UpdateDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"), *body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftPayload(result))
}

func (s *HTTPServer) handleDraftRevisions(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.DraftRevisions(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCompareRevisions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := s.service.CompareRevisions(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"), query.Get("from"), query.Get("to"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleExportDraft(w http.ResponseWriter, r *http.Request) {
	format, ok := export.ParseFormat(strings.ToLower(r.URL.Query().Get("format")))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
		return
	}
	result, err := s.service.ExportDraft(r.Context(), sessionFrom(r), chi.URLParam(r, "sessionID"), format, r.URL.Query().Get("since"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, result.Filename, result.MimeType, result.Data)
}

// Prompts

func (s *HTTPServer) handleListDocPrompts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	result, err := s.service.ListDocPrompts(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleCreateDocPrompt(w http.ResponseWriter, r *http.Request) {
	var body DocPromptInput
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.CreateDocPrompt(r.Context(), sessionFrom(r), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *HTTPServer) handleUpdateDocPrompt(w http.ResponseWriter, r *http.Request) {
	var body DocPromptPatch
	if !s.bind(w, r, &body) {
		return
	}
	result, err := s.service.UpdateDocPrompt(r.Context(), sessionFrom(r), chi.URLParam(r, "promptID"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleDeleteDocPrompt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocPrompt(r.Context(), sessionFrom(r), chi.URLParam(r, "promptID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Documents

func (s *HTTPServer) handleRefine(w http.ResponseWriter, r *http.Request) {
	var body RefineInput
	if !s.bind(w, r, &body) {
		return
	}
	refined, err := s.service.RefineField(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"refinedText": refined})
}

func (s *HTTPServer) handleTemplate(w http.ResponseWriter, r *http.Request) {
	file, err := s.service.Template(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, file.Filename, file.MimeType, file.Data)
}

func (s *HTTPServer) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	var body GenerateDocumentInput
	if !s.bind(w, r, &body) {
		return
	}
	file, err := s.service.GenerateDocument(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, file.Filename, file.MimeType, file.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	offset, limit := pageParams(r)
	result, err := s.service.Search(r.Context(), sessionFrom(r), query.Get("q"), query.Get("type"), offset, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Middleware and helpers

type sessionKey struct{}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func sessionFrom(r *http.Request) Session {
	session, _ := r.Context().Value(sessionKey{}).(Session)
	return session
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = util.NewRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		zap.S().Infow("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeFile(w http.ResponseWriter, filename, mimeType string, data []byte) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// fail writes err as the error envelope. Server-side failures are logged with the request id.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed",
			"request_id", requestIDFrom(r.Context()),
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	writeError(w, status, code, message, details)
}

// bind decodes the JSON body into target and validates it, writing the error response on failure.
func (s *HTTPServer) bind(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				details[fieldErr.Field()] = fieldErr.Tag()
			}
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request", details)
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func pageParams(r *http.Request) (offset, limit int) {
	query := r.URL.Query()
	offset, _ = strconv.Atoi(query.Get("offset"))
	limit, _ = strconv.Atoi(query.Get("limit"))
	return offset, limit
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "TIMEOUT", "Request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
