package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitcast/internal/models"
)

func TestStudentHandler_Create(t *testing.T) {
	repo := newFakeStudents()
	h := NewStudentHandler(repo)

	resp := httptest.NewRecorder()
	h.Create(resp, jsonRequest(t, http.MethodPost, "/api/students", models.Student{
		AdmissionNo: "ADM-010",
		Name:        "Meera Iyer",
		Phone:       "9876543219",
	}))

	assert.Equal(t, http.StatusCreated, resp.Code)

	var created models.Student
	decodeJSON(t, resp, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Meera Iyer", created.Name)
}

func TestStudentHandler_Create_MissingFields(t *testing.T) {
	h := NewStudentHandler(newFakeStudents())

	resp := httptest.NewRecorder()
	h.Create(resp, jsonRequest(t, http.MethodPost, "/api/students", models.Student{
		Name: "No Phone",
	}))

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestStudentHandler_Create_EmptyBody(t *testing.T) {
	h := NewStudentHandler(newFakeStudents())

	resp := httptest.NewRecorder()
	h.Create(resp, httptest.NewRequest(http.MethodPost, "/api/students", nil))

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "INVALID_JSON", body.Error.Code)
}

func TestStudentHandler_List(t *testing.T) {
	h := NewStudentHandler(newFakeStudents())

	resp := httptest.NewRecorder()
	h.List(resp, httptest.NewRequest(http.MethodGet, "/api/students", nil))

	assert.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Students []models.Student `json:"students"`
	}
	decodeJSON(t, resp, &body)
	assert.Len(t, body.Students, 3)
}

func TestStudentHandler_GetByID(t *testing.T) {
	h := NewStudentHandler(newFakeStudents())

	req := httptest.NewRequest(http.MethodGet, "/api/students/1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	resp := httptest.NewRecorder()
	h.GetByID(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var student models.Student
	decodeJSON(t, resp, &student)
	assert.Equal(t, "Asha Rao", student.Name)
}

func TestStudentHandler_GetByID_InvalidID(t *testing.T) {
	h := NewStudentHandler(newFakeStudents())

	for _, raw := range []string{"abc", "0", "-4"} {
		req := httptest.NewRequest(http.MethodGet, "/api/students/"+raw, nil)
		req = mux.SetURLVars(req, map[string]string{"id": raw})
		resp := httptest.NewRecorder()
		h.GetByID(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code, "id %q", raw)
	}
}

func TestStudentHandler_GetByID_NotFound(t *testing.T) {
	h := NewStudentHandler(newFakeStudents())

	req := httptest.NewRequest(http.MethodGet, "/api/students/404", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "404"})
	resp := httptest.NewRecorder()
	h.GetByID(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)

	var body ErrorResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "RESOURCE_NOT_FOUND", body.Error.Code)
}
