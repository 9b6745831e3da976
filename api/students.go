package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/goSession/session"
)

// Student is one student record.
type Student struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// StudentInput is the create/update payload.
type StudentInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Age       int    `json:"age"`
}

// ErrInvalidStudent is returned by StudentInput.Validate.
var ErrInvalidStudent = errors.New("invalid student")

// Validate rejects payloads the backend would refuse.
func (in StudentInput) Validate() error {
	switch {
	case strings.TrimSpace(in.FirstName) == "":
		return fmt.Errorf("%w: first name is required", ErrInvalidStudent)
	case strings.TrimSpace(in.LastName) == "":
		return fmt.Errorf("%w: last name is required", ErrInvalidStudent)
	case !session.ValidEmail(in.Email):
		return fmt.Errorf("%w: email is not valid", ErrInvalidStudent)
	case in.Age <= 0:
		return fmt.Errorf("%w: age must be positive", ErrInvalidStudent)
	}
	return nil
}

func studentPath(id int64) string {
	return "/students/" + strconv.FormatInt(id, 10)
}

// ListStudents returns all students.
func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var out struct {
		Students []Student `json:"students"`
	}
	if err := c.do(ctx, http.MethodGet, "/students", nil, &out, requestOptions{}); err != nil {
		return nil, err
	}
	return out.Students, nil
}

// GetStudent returns one student.
func (c *Client) GetStudent(ctx context.Context, id int64) (*Student, error) {
	var out Student
	if err := c.do(ctx, http.MethodGet, studentPath(id), nil, &out, requestOptions{}); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateStudent creates a student and returns the stored record.
func (c *Client) CreateStudent(ctx context.Context, in StudentInput) (*Student, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out struct {
		Message string  `json:"message"`
		Student Student `json:"student"`
	}
	if err := c.do(ctx, http.MethodPost, "/students", in, &out, requestOptions{}); err != nil {
		return nil, err
	}
	return &out.Student, nil
}

// UpdateStudent replaces a student's fields.
func (c *Client) UpdateStudent(ctx context.Context, id int64, in StudentInput) (*Student, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out struct {
		Student Student `json:"student"`
	}
	if err := c.do(ctx, http.MethodPut, studentPath(id), in, &out, requestOptions{}); err != nil {
		return nil, err
	}
	return &out.Student, nil
}

// DeleteStudent removes a student.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, studentPath(id), nil, nil, requestOptions{})
}
