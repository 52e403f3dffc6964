package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
	"github.com/emberhq/ember/internal/provider/registry"
)

// Handler exposes the orchestrator over HTTP. It is a thin facade: every
// orchestration decision (selection, caching, retries, events) happens in
// the domain layer.
type Handler struct {
	orchestrator *domain.Orchestrator
	registry     *registry.Registry
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(orchestrator *domain.Orchestrator, reg *registry.Registry) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		registry:     reg,
	}
}

// completionRequest is the JSON body of POST /v1/completions.
type completionRequest struct {
	Messages []domain.Message `json:"messages"`
	Options  domain.Options   `json:"options"`
	Stream   bool             `json:"stream,omitempty"`
}

// embeddingRequest is the JSON body of POST /v1/embeddings.
type embeddingRequest struct {
	Inputs  []string       `json:"inputs"`
	Options domain.Options `json:"options"`
}

// HandleCompletion processes completion requests, streaming over SSE when
// requested.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ctx = observability.WithProvider(ctx, req.Options.Provider)
	ctx = observability.WithModel(ctx, req.Options.Model)

	logger := observability.FromContext(ctx)
	logger.Info("completion request received",
		observability.Int("messages", len(req.Messages)),
		observability.Bool("stream", req.Stream),
	)

	if req.Stream {
		h.handleStream(w, r.WithContext(ctx), &req)
		return
	}

	response, err := h.orchestrator.Complete(ctx, req.Messages, req.Options)
	if err != nil {
		logger.Error("completion failed", observability.Error(err))
		writeError(w, err)
		return
	}

	logger.Info("completion succeeded",
		observability.Int("tokens", response.Usage.TotalTokens),
		observability.Float64("cost", response.Usage.Cost),
	)

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request, req *completionRequest) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	chunks, err := h.orchestrator.Stream(ctx, req.Messages, req.Options)
	if err != nil {
		logger.Error("stream start failed", observability.Error(err))
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for chunk := range chunks {
		if chunk.Err != nil {
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", chunk.Err.Error())
			flusher.Flush()
			return
		}

		data, marshalErr := json.Marshal(chunk)
		if marshalErr != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if chunk.Done {
			break
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// HandleEmbedding processes embedding requests.
func (h *Handler) HandleEmbedding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	response, err := h.orchestrator.Embed(ctx, req.Inputs, req.Options)
	if err != nil {
		observability.FromContext(ctx).Error("embedding failed", observability.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleProviders lists registered provider ids.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"providers": h.registry.List()})
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the shared error taxonomy onto HTTP statuses so API
// consumers can branch on kind without parsing messages.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := domain.KindOf(err)

	switch kind {
	case domain.KindProviderNotFound:
		status = http.StatusNotFound
	case domain.KindNoProviderAvailable, domain.KindConfiguration:
		status = http.StatusBadRequest
	case domain.KindAuthentication:
		status = http.StatusBadGateway
	case domain.KindRateLimited:
		status = http.StatusTooManyRequests
	case domain.KindContentFiltered:
		status = http.StatusUnprocessableEntity
	case domain.KindTimeout:
		status = http.StatusGatewayTimeout
	}

	body := map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	}
	writeJSON(w, status, body)
}
