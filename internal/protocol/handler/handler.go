// Package handler wires the protocol lifecycle endpoints to the creation
// service and the transition engine.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	linkmodels "civicdesk/internal/citizenlink/models"
	linkstore "civicdesk/internal/citizenlink/store"
	"civicdesk/internal/protocol/engine"
	"civicdesk/internal/protocol/models"
	"civicdesk/internal/protocol/service"
	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
	"civicdesk/pkg/platform/httputil"
	"civicdesk/pkg/requestcontext"
)

// ProtocolService defines the creation and read operations the handler needs.
type ProtocolService interface {
	Create(ctx context.Context, input service.CreateInput) (*models.Protocol, error)
	Get(ctx context.Context, protocolID id.ProtocolID) (*models.Protocol, error)
	GetByNumber(ctx context.Context, number string) (*models.Protocol, error)
	ListByCitizen(ctx context.Context, citizenID id.CitizenID) ([]*models.Protocol, error)
	Links(ctx context.Context, protocolID id.ProtocolID) ([]*linkmodels.Link, error)
	UpdateLink(ctx context.Context, linkID id.LinkID, update linkstore.LinkUpdate) (*linkmodels.Link, error)
	DeleteLink(ctx context.Context, linkID id.LinkID) error
}

// Lifecycle defines the transition operations the handler needs.
type Lifecycle interface {
	UpdateStatus(ctx context.Context, input engine.UpdateStatusInput) (*engine.TransitionResult, error)
	CanCitizenCancel(ctx context.Context, protocolID id.ProtocolID) (bool, error)
	AddComment(ctx context.Context, protocolID id.ProtocolID, comment string, actorID id.UserID, actorRole id.ActorRole) (*models.HistoryEntry, error)
	History(ctx context.Context, protocolID id.ProtocolID) ([]*models.HistoryEntry, error)
}

// Handler wires protocol endpoints to the lifecycle services.
type Handler struct {
	service   ProtocolService
	lifecycle Lifecycle
	logger    *slog.Logger
}

// New constructs a protocol handler with its dependencies.
func New(service ProtocolService, lifecycle Lifecycle, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Register mounts protocol endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/protocols", h.HandleCreate)
	r.Get("/protocols/{protocolID}", h.HandleGet)
	r.Get("/protocols/number/{number}", h.HandleGetByNumber)
	r.Get("/protocols/{protocolID}/history", h.HandleHistory)
	r.Get("/protocols/{protocolID}/links", h.HandleLinks)
	r.Post("/protocols/{protocolID}/status", h.HandleUpdateStatus)
	r.Post("/protocols/{protocolID}/cancel", h.HandleCancel)
	r.Post("/protocols/{protocolID}/comments", h.HandleAddComment)
	r.Get("/citizens/{citizenID}/protocols", h.HandleListByCitizen)
	r.Patch("/links/{linkID}", h.HandleUpdateLink)
	r.Delete("/links/{linkID}", h.HandleDeleteLink)
}

// RegisterAdmin mounts the administrative endpoints. The router places these
// behind the administrative role check; the engine still applies its own
// authorization from the actor role.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/protocols/{protocolID}/status", h.HandleUpdateStatus)
}

// HandleCreate handles POST /protocols requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actorID, actorRole, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.Decode[CreateProtocolRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	input := service.CreateInput{
		ServiceID:   req.ParsedServiceID(),
		CitizenID:   req.ParsedCitizenID(),
		Description: req.Description,
		Payload:     req.Payload,
		ActorRole:   actorRole,
	}
	// Staff-submitted protocols record who opened them; citizen
	// self-submissions do not.
	if actorRole != id.RoleCitizen {
		input.CreatedByID = actorID
	}

	protocol, err := h.service.Create(ctx, input)
	if err != nil {
		h.logger.ErrorContext(ctx, "protocol creation failed",
			"request_id", requestID,
			"service_id", req.ServiceID,
			"citizen_id", req.CitizenID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "protocol created",
		"request_id", requestID,
		"protocol_id", protocol.ID,
		"number", protocol.Number,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromProtocol(protocol))
}

// HandleGet handles GET /protocols/{protocolID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	protocolID, ok := h.protocolID(w, r)
	if !ok {
		return
	}

	protocol, err := h.service.Get(ctx, protocolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProtocol(protocol))
}

// HandleGetByNumber handles GET /protocols/number/{number} requests.
func (h *Handler) HandleGetByNumber(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	protocol, err := h.service.GetByNumber(ctx, chi.URLParam(r, "number"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProtocol(protocol))
}

// HandleListByCitizen handles GET /citizens/{citizenID}/protocols requests.
func (h *Handler) HandleListByCitizen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "citizenID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	protocols, err := h.service.ListByCitizen(ctx, citizenID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProtocols(protocols))
}

// HandleUpdateStatus handles POST /protocols/{protocolID}/status requests.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, actorRole, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	protocolID, ok := h.protocolID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.Decode[UpdateStatusRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.lifecycle.UpdateStatus(ctx, engine.UpdateStatusInput{
		ProtocolID: protocolID,
		NewStatus:  req.ParsedStatus(),
		Comment:    req.Comment,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "status transition rejected",
			"request_id", requestID,
			"protocol_id", protocolID,
			"attempted_status", req.Status,
			"actor_role", actorRole,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "protocol status updated",
		"request_id", requestID,
		"protocol_id", protocolID,
		"old_status", result.OldStatus,
		"new_status", result.NewStatus,
		"no_op", result.NoOp,
	)
	httputil.WriteJSON(w, http.StatusOK, FromTransition(result))
}

// HandleCancel handles POST /protocols/{protocolID}/cancel requests, the
// citizen self-service path. The body is optional.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, actorRole, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	protocolID, ok := h.protocolID(w, r)
	if !ok {
		return
	}

	var req CancelProtocolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	// Surface ineligibility before attempting the transition so the
	// client gets the current status in the rejection.
	if actorRole == id.RoleCitizen {
		eligible, err := h.lifecycle.CanCitizenCancel(ctx, protocolID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if !eligible {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidTransition, "protocol can no longer be cancelled"))
			return
		}
	}

	result, err := h.lifecycle.UpdateStatus(ctx, engine.UpdateStatusInput{
		ProtocolID: protocolID,
		NewStatus:  models.StatusCancelled,
		Comment:    req.Comment,
		ActorID:    actorID,
		ActorRole:  actorRole,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "cancellation rejected",
			"request_id", requestID,
			"protocol_id", protocolID,
			"actor_role", actorRole,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "protocol cancelled",
		"request_id", requestID,
		"protocol_id", protocolID,
		"old_status", result.OldStatus,
	)
	httputil.WriteJSON(w, http.StatusOK, FromTransition(result))
}

// HandleAddComment handles POST /protocols/{protocolID}/comments requests.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, actorRole, ok := h.requireActor(w, ctx)
	if !ok {
		return
	}
	protocolID, ok := h.protocolID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.Decode[CommentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.lifecycle.AddComment(ctx, protocolID, req.Comment, actorID, actorRole)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromHistoryEntry(entry))
}

// HandleHistory handles GET /protocols/{protocolID}/history requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	protocolID, ok := h.protocolID(w, r)
	if !ok {
		return
	}

	entries, err := h.lifecycle.History(ctx, protocolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromHistory(entries))
}

// HandleLinks handles GET /protocols/{protocolID}/links requests.
func (h *Handler) HandleLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	protocolID, ok := h.protocolID(w, r)
	if !ok {
		return
	}

	links, err := h.service.Links(ctx, protocolID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLinks(links))
}

// HandleUpdateLink handles PATCH /links/{linkID} requests.
func (h *Handler) HandleUpdateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	linkID, err := id.ParseLinkID(chi.URLParam(r, "linkID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.Decode[UpdateLinkRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	link, err := h.service.UpdateLink(ctx, linkID, linkstore.LinkUpdate{
		LinkType:     req.ParsedLinkType(),
		Role:         req.ParsedRole(),
		Relationship: req.Relationship,
		ContextData:  req.ContextData,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromLink(link))
}

// HandleDeleteLink handles DELETE /links/{linkID} requests.
func (h *Handler) HandleDeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	linkID, err := id.ParseLinkID(chi.URLParam(r, "linkID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.DeleteLink(ctx, linkID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireActor extracts the authenticated actor from the context, writing an
// unauthorized response when absent.
func (h *Handler) requireActor(w http.ResponseWriter, ctx context.Context) (id.UserID, id.ActorRole, bool) {
	actorID := requestcontext.ActorID(ctx)
	actorRole := requestcontext.ActorRole(ctx)
	if actorID.IsNil() || !actorRole.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, "", false
	}
	return actorID, actorRole, true
}

// protocolID parses the protocol id path parameter, writing the error
// response on failure.
func (h *Handler) protocolID(w http.ResponseWriter, r *http.Request) (id.ProtocolID, bool) {
	protocolID, err := id.ParseProtocolID(chi.URLParam(r, "protocolID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ProtocolID{}, false
	}
	return protocolID, true
}
