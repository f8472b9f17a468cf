package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"admitcast/internal/models"
	"admitcast/internal/repository"
)

// StudentHandler handles HTTP requests for student records
type StudentHandler struct {
	studentRepo repository.StudentRepository
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(studentRepo repository.StudentRepository) *StudentHandler {
	return &StudentHandler{studentRepo: studentRepo}
}

// Create handles POST /api/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var student models.Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		if err == io.EOF {
			WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is empty")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if err := student.Validate(); err != nil {
		WriteValidationError(w, err.Error())
		return
	}

	if err := h.studentRepo.Create(r.Context(), &student); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteCreated(w, student)
}

// List handles GET /api/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 50
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 200 {
		limit = 200
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	students, err := h.studentRepo.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteOK(w, map[string]interface{}{"students": students})
}

// GetByID handles GET /api/students/{id}
func (h *StudentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]

	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		WriteValidationError(w, "invalid student ID")
		return
	}

	student, err := h.studentRepo.GetByID(r.Context(), id)
	if err != nil {
		WriteNotFoundError(w, "student", id)
		return
	}

	WriteOK(w, student)
}
