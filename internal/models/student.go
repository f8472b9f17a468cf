package models

import (
	"fmt"
	"strconv"
	"time"
)

// Student represents an admitted student record in the system
type Student struct {
	ID           int       `json:"id" db:"id"`
	AdmissionNo  string    `json:"admission_no" db:"admission_no"`
	Name         string    `json:"name" db:"name"`
	GuardianName *string   `json:"guardian_name,omitempty" db:"guardian_name"`
	Phone        string    `json:"phone" db:"phone"`
	ClassName    *string   `json:"class_name,omitempty" db:"class_name"`
	FeeDue       *int64    `json:"fee_due,omitempty" db:"fee_due"`
	ReceiptPath  *string   `json:"receipt_path,omitempty" db:"receipt_path"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Validate checks if the student fields are valid
func (s *Student) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("student name is required")
	}
	if s.Phone == "" {
		return fmt.Errorf("student phone is required")
	}
	if s.AdmissionNo == "" {
		return fmt.Errorf("admission number is required")
	}
	return nil
}

// Tokens returns the personalization tokens for this student, keyed by
// placeholder name as it appears in message templates
func (s *Student) Tokens() map[string]string {
	tokens := map[string]string{
		"name":         s.Name,
		"admission_no": s.AdmissionNo,
		"phone":        s.Phone,
	}
	if s.GuardianName != nil && *s.GuardianName != "" {
		tokens["guardian_name"] = *s.GuardianName
	}
	if s.ClassName != nil && *s.ClassName != "" {
		tokens["class"] = *s.ClassName
	}
	if s.FeeDue != nil {
		tokens["fee_due"] = strconv.FormatInt(*s.FeeDue, 10)
	}
	return tokens
}
