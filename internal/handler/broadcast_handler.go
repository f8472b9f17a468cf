package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"admitcast/internal/engine"
	"admitcast/internal/models"
	"admitcast/internal/queue"
	"admitcast/internal/repository"
	"admitcast/internal/service"
)

// BroadcastHandler drives the in-process broadcast engine over HTTP and
// hands deferred broadcasts off to the headless worker via the queue
type BroadcastHandler struct {
	dispatcher  *engine.Dispatcher
	studentRepo repository.StudentRepository
	templateSvc *service.TemplateService
	publisher   *queue.Publisher
}

// NewBroadcastHandler creates a new broadcast handler. The publisher may
// be nil when no queue is configured; the dispatch endpoint then reports
// the queue as unavailable.
func NewBroadcastHandler(
	dispatcher *engine.Dispatcher,
	studentRepo repository.StudentRepository,
	templateSvc *service.TemplateService,
	publisher *queue.Publisher,
) *BroadcastHandler {
	return &BroadcastHandler{
		dispatcher:  dispatcher,
		studentRepo: studentRepo,
		templateSvc: templateSvc,
		publisher:   publisher,
	}
}

// AssembleRequest represents the request to assemble a broadcast
type AssembleRequest struct {
	StudentIDs     []int  `json:"student_ids"`
	Template       string `json:"template"`
	AttachReceipts bool   `json:"attach_receipts"`
}

// AssembleResponse reports what was enqueued and what was excluded
type AssembleResponse struct {
	Queued   int                       `json:"queued"`
	Excluded []engine.ExclusionWarning `json:"excluded"`
}

// Assemble handles POST /api/broadcasts - builds the queue for a new broadcast
func (h *BroadcastHandler) Assemble(w http.ResponseWriter, r *http.Request) {
	var req AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if len(req.StudentIDs) == 0 {
		WriteValidationError(w, "student_ids cannot be empty")
		return
	}
	if req.Template == "" {
		WriteValidationError(w, "template is required")
		return
	}

	students, err := h.studentRepo.GetByIDs(r.Context(), req.StudentIDs)
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	if len(students) == 0 {
		WriteValidationError(w, "no matching students found")
		return
	}

	recipients := buildRecipients(students, req.StudentIDs, req.AttachReceipts)
	queued, warnings, err := h.dispatcher.Assemble(recipients, req.Template)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	if warnings == nil {
		warnings = []engine.ExclusionWarning{}
	}
	WriteCreated(w, AssembleResponse{Queued: queued, Excluded: warnings})
}

// Start handles POST /api/broadcasts/start
func (h *BroadcastHandler) Start(w http.ResponseWriter, r *http.Request) {
	// The readiness probe runs synchronously so a dead transport is
	// reported here rather than swallowed by the background run.
	if err := h.dispatcher.Start(r.Context()); err != nil {
		if errors.Is(err, engine.ErrBroadcastActive) || errors.Is(err, engine.ErrInvalidState) {
			HandleServiceError(w, err)
			return
		}
		WriteError(w, http.StatusServiceUnavailable, "TRANSPORT_NOT_READY", err.Error())
		return
	}
	WriteOK(w, map[string]string{"state": string(h.dispatcher.State())})
}

// Pause handles POST /api/broadcasts/pause
func (h *BroadcastHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Pause(); err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteOK(w, map[string]string{"state": string(h.dispatcher.State())})
}

// Resume handles POST /api/broadcasts/resume
func (h *BroadcastHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Resume(); err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteOK(w, map[string]string{"state": string(h.dispatcher.State())})
}

// Cancel handles POST /api/broadcasts/cancel
func (h *BroadcastHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Cancel(); err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteOK(w, map[string]string{"state": string(h.dispatcher.State())})
}

// Reset handles POST /api/broadcasts/reset
func (h *BroadcastHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Reset(); err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteNoContent(w)
}

// Skip handles POST /api/broadcasts/items/{id}/skip
func (h *BroadcastHandler) Skip(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if itemID == "" {
		WriteValidationError(w, "item ID is required")
		return
	}

	if err := h.dispatcher.Skip(itemID); err != nil {
		HandleServiceError(w, err)
		return
	}
	WriteNoContent(w)
}

// CurrentResponse is the live view of the active broadcast
type CurrentResponse struct {
	State models.BroadcastState `json:"state"`
	Stats models.BroadcastStats `json:"stats"`
	Items []models.QueueItem    `json:"items"`
}

// Current handles GET /api/broadcasts/current
func (h *BroadcastHandler) Current(w http.ResponseWriter, r *http.Request) {
	WriteOK(w, CurrentResponse{
		State: h.dispatcher.State(),
		Stats: h.dispatcher.Stats(),
		Items: h.dispatcher.Items(),
	})
}

// PreviewRequest represents the request body for message preview
type PreviewRequest struct {
	StudentID int    `json:"student_id"`
	Template  string `json:"template"`
}

// Preview handles POST /api/broadcasts/preview - renders a template for
// one student without enqueueing anything
func (h *BroadcastHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}

	if req.StudentID <= 0 {
		WriteValidationError(w, "student_id is required and must be positive")
		return
	}
	if err := h.templateSvc.ValidateTemplate(req.Template); err != nil {
		WriteValidationError(w, err.Error())
		return
	}

	student, err := h.studentRepo.GetByID(r.Context(), req.StudentID)
	if err != nil {
		WriteNotFoundError(w, "student", req.StudentID)
		return
	}

	rendered, err := h.templateSvc.Render(req.Template, student.Tokens())
	if err != nil {
		WriteValidationError(w, err.Error())
		return
	}

	WriteOK(w, map[string]string{"rendered": rendered})
}

// Dispatch handles POST /api/broadcasts/dispatch - publishes the
// broadcast as a queue job for the headless worker instead of running
// it in-process
func (h *BroadcastHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		WriteError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "broadcast queue is not configured")
		return
	}

	var req AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if len(req.StudentIDs) == 0 {
		WriteValidationError(w, "student_ids cannot be empty")
		return
	}
	if err := h.templateSvc.ValidateTemplate(req.Template); err != nil {
		WriteValidationError(w, err.Error())
		return
	}

	job := queue.BroadcastJob{
		BroadcastID:    uuid.NewString(),
		Template:       req.Template,
		StudentIDs:     req.StudentIDs,
		AttachReceipts: req.AttachReceipts,
	}
	if err := h.publisher.PublishBroadcast(job); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"broadcast_id": job.BroadcastID})
}

// buildRecipients converts student records into broadcast candidates,
// in the order the caller listed them. The repository returns students
// sorted by id, but enqueue order is the request's order: that is what
// lets the operator reason about who will be contacted next.
func buildRecipients(students []*models.Student, order []int, attachReceipts bool) []engine.Recipient {
	byID := make(map[int]*models.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	recipients := make([]engine.Recipient, 0, len(students))
	for _, id := range order {
		s, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)

		r := engine.Recipient{
			ID:     s.ID,
			Name:   s.Name,
			Phone:  s.Phone,
			Tokens: s.Tokens(),
		}
		if attachReceipts && s.ReceiptPath != nil {
			r.Attachment = *s.ReceiptPath
		}
		recipients = append(recipients, r)
	}
	return recipients
}
