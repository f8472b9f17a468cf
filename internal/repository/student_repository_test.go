package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admitcast/internal/models"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func strPtr(s string) *string { return &s }

func studentRows(students ...*models.Student) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "admission_no", "name", "guardian_name", "phone",
		"class_name", "fee_due", "receipt_path", "created_at",
	})
	for _, s := range students {
		rows.AddRow(s.ID, s.AdmissionNo, s.Name, s.GuardianName, s.Phone,
			s.ClassName, s.FeeDue, s.ReceiptPath, s.CreatedAt)
	}
	return rows
}

func TestStudentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	created := time.Now()
	mock.ExpectQuery("INSERT INTO students").
		WithArgs("ADM-001", "Asha Rao", strPtr("R. Rao"), "9876543210", nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	student := &models.Student{
		AdmissionNo:  "ADM-001",
		Name:         "Asha Rao",
		GuardianName: strPtr("R. Rao"),
		Phone:        "9876543210",
	}
	err := repo.Create(context.Background(), student)
	require.NoError(t, err)
	assert.Equal(t, 7, student.ID)
	assert.Equal(t, created, student.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	want := &models.Student{
		ID:          3,
		AdmissionNo: "ADM-003",
		Name:        "Vikram Shah",
		Phone:       "9876543211",
		ClassName:   strPtr("Grade 6"),
		CreatedAt:   time.Now(),
	}
	mock.ExpectQuery("SELECT (.+) FROM students WHERE id").
		WithArgs(3).
		WillReturnRows(studentRows(want))

	got, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	require.NotNil(t, got.ClassName)
	assert.Equal(t, "Grade 6", *got.ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM students WHERE id").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, "student not found", err.Error())
}

func TestStudentRepository_GetByIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	first := &models.Student{ID: 1, AdmissionNo: "ADM-001", Name: "Asha Rao", Phone: "9876543210", CreatedAt: time.Now()}
	second := &models.Student{ID: 2, AdmissionNo: "ADM-002", Name: "Vikram Shah", Phone: "9876543211", CreatedAt: time.Now()}

	mock.ExpectQuery("SELECT (.+) FROM students WHERE id = ANY").
		WillReturnRows(studentRows(first, second))

	students, err := repo.GetByIDs(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Asha Rao", students[0].Name)
	assert.Equal(t, "Vikram Shah", students[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepository_GetByIDs_EmptyInput(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewStudentRepository(db)

	// No query should be issued for an empty ID list.
	students, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestStudentRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	first := &models.Student{ID: 2, AdmissionNo: "ADM-002", Name: "Vikram Shah", Phone: "9876543211", CreatedAt: time.Now()}

	mock.ExpectQuery("SELECT (.+) FROM students ORDER BY id DESC").
		WithArgs(50, 0).
		WillReturnRows(studentRows(first))

	students, err := repo.List(context.Background(), 50, 0)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 2, students[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepository_Update_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students").
		WillReturnResult(sqlmock.NewResult(0, 0))

	student := &models.Student{ID: 42, AdmissionNo: "ADM-042", Name: "Nobody", Phone: "9876543212"}
	err := repo.Update(context.Background(), student)
	require.Error(t, err)
	assert.Equal(t, "student not found", err.Error())
}

func TestStudentRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepository_Delete_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectExec("DELETE FROM students").
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 5)
	require.Error(t, err)
	assert.Equal(t, "student not found", err.Error())
}
