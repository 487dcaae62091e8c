// Package editor holds the create/edit form state for customers and call
// logs. A submit runs in three steps so callers never hold their own locks
// across the backend call: Prepare validates locally, Submission.Execute
// writes, and Complete closes the form or keeps it open with the error.
package editor

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Raymond9734/crm-console/internal/models"
)

// Mode tells whether the editor creates a new record or updates one
type Mode string

// Editor modes
const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Writer persists a form payload
type Writer[In any] interface {
	Create(ctx context.Context, input In) error
	Update(ctx context.Context, id string, input In) error
}

// State is a snapshot of an editor
type State[In any] struct {
	Open        bool              `json:"open"`
	Mode        Mode              `json:"mode,omitempty"`
	EditingID   string            `json:"editing_id,omitempty"`
	Form        In                `json:"form"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Submission is a locally validated write waiting to be executed
type Submission[In any] struct {
	Mode  Mode
	ID    string
	Input In

	raw In
	gen uint64
}

// Execute sends the submission to w
func (s Submission[In]) Execute(ctx context.Context, w Writer[In]) error {
	if s.Mode == ModeEdit {
		return w.Update(ctx, s.ID, s.Input)
	}
	return w.Create(ctx, s.Input)
}

// form is the mode-agnostic part of an editor. gen changes on every open or
// close so a completion for an abandoned form is ignored.
type form[In any] struct {
	state State[In]
	gen   uint64
}

func (f *form[In]) openCreate() {
	f.gen++
	f.state = State[In]{Open: true, Mode: ModeCreate}
}

func (f *form[In]) openEdit(id string, values In) {
	f.gen++
	f.state = State[In]{Open: true, Mode: ModeEdit, EditingID: id, Form: values}
}

func (f *form[In]) close() {
	f.gen++
	f.state = State[In]{}
}

func (f *form[In]) snapshot() State[In] {
	s := f.state
	if f.state.FieldErrors != nil {
		s.FieldErrors = make(map[string]string, len(f.state.FieldErrors))
		for k, v := range f.state.FieldErrors {
			s.FieldErrors[k] = v
		}
	}
	return s
}

// reject records a local or remote failure and keeps the entered values
func (f *form[In]) reject(values In, fieldErrs map[string]string, err error) {
	f.state.Form = values
	f.state.FieldErrors = fieldErrs
	f.state.Error = models.UserMessage(err)
}

func (f *form[In]) submission(raw, input In) Submission[In] {
	return Submission[In]{
		Mode:  f.state.Mode,
		ID:    f.state.EditingID,
		Input: input,
		raw:   raw,
		gen:   f.gen,
	}
}

func (f *form[In]) complete(sub Submission[In], err error) bool {
	if !f.state.Open || sub.gen != f.gen {
		return false
	}
	if err != nil {
		f.reject(sub.raw, nil, err)
		return true
	}
	f.close()
	return true
}

var errNotOpen = models.ErrConflictWithMsg("Editor is not open")

// Field messages keyed by "<json field>.<validation tag>"
var fieldMessages = map[string]string{
	"fullname.required": "Full name is required",
	"email.required":    "Email is required",
	"email.email":       "Invalid email format",
	"mobile.required":   "Mobile is required",
	"customer.required": "Customer is required",
	"status.required":   "Status is required",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct returns per-field messages and the first one as an error
func validateStruct(input interface{}) (map[string]string, error) {
	err := validate.Struct(input)
	if err == nil {
		return nil, nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, models.ErrInvalidInput(err.Error())
	}

	fields := make(map[string]string, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
		if first == "" {
			first = msg
		}
	}
	return fields, models.ErrInvalidInput(first)
}
