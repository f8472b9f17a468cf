package repository

import (
	"context"
	"database/sql"
	"fmt"

	"admitcast/internal/models"

	"github.com/lib/pq"
)

type studentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *sql.DB) StudentRepository {
	return &studentRepository{db: db}
}

const studentColumns = "id, admission_no, name, guardian_name, phone, class_name, fee_due, receipt_path, created_at"

// Create creates a new student record
func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	query := `
		INSERT INTO students (admission_no, name, guardian_name, phone, class_name, fee_due, receipt_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		student.AdmissionNo,
		student.Name,
		student.GuardianName,
		student.Phone,
		student.ClassName,
		student.FeeDue,
		student.ReceiptPath,
	).Scan(&student.ID, &student.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID retrieves a student by ID
func (r *studentRepository) GetByID(ctx context.Context, id int) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	student := &models.Student{}
	err := scanStudent(r.db.QueryRowContext(ctx, query, id), student)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("student not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return student, nil
}

// GetByIDs retrieves multiple students by IDs
func (r *studentRepository) GetByIDs(ctx context.Context, ids []int) ([]*models.Student, error) {
	if len(ids) == 0 {
		return []*models.Student{}, nil
	}

	query := `SELECT ` + studentColumns + ` FROM students WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

// List retrieves students with pagination
func (r *studentRepository) List(ctx context.Context, limit, offset int) ([]*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students ORDER BY id DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	return collectStudents(rows)
}

// Update updates a student record
func (r *studentRepository) Update(ctx context.Context, student *models.Student) error {
	query := `
		UPDATE students
		SET admission_no = $1, name = $2, guardian_name = $3, phone = $4,
			class_name = $5, fee_due = $6, receipt_path = $7
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		student.AdmissionNo,
		student.Name,
		student.GuardianName,
		student.Phone,
		student.ClassName,
		student.FeeDue,
		student.ReceiptPath,
		student.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("student not found")
	}

	return nil
}

// Delete deletes a student record
func (r *studentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("student not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStudent(row rowScanner, student *models.Student) error {
	return row.Scan(
		&student.ID,
		&student.AdmissionNo,
		&student.Name,
		&student.GuardianName,
		&student.Phone,
		&student.ClassName,
		&student.FeeDue,
		&student.ReceiptPath,
		&student.CreatedAt,
	)
}

func collectStudents(rows *sql.Rows) ([]*models.Student, error) {
	students := []*models.Student{}
	for rows.Next() {
		student := &models.Student{}
		if err := scanStudent(rows, student); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, student)
	}
	return students, rows.Err()
}
