package editor

import (
	"context"
	"strings"

	"github.com/Raymond9734/crm-console/internal/models"
)

// Customer form messages
const (
	MsgMobileDigits   = "Mobile must be exactly 10 digits"
	MsgNameExists     = "This name already exists"
	MsgEmailExists    = "This email already exists"
	MsgImportedRecord = "Imported records cannot be edited"
)

// CustomerEditor is the customer create/edit form. It is not safe for
// concurrent use; the owning view serializes access.
type CustomerEditor struct {
	form form[models.CustomerInput]
}

// NewCustomerEditor creates a closed editor
func NewCustomerEditor() *CustomerEditor {
	return &CustomerEditor{}
}

// OpenCreate opens an empty form in create mode
func (e *CustomerEditor) OpenCreate() {
	e.form.openCreate()
}

// OpenEdit opens the form bound to an existing backend record
func (e *CustomerEditor) OpenEdit(c models.Customer) error {
	if c.IsImported() {
		return models.ErrInvalidInput(MsgImportedRecord)
	}
	if c.ID == "" {
		return models.ErrInvalidInput("customer id is required")
	}
	e.form.openEdit(c.ID, c.Input())
	return nil
}

// Cancel closes the form and clears its values
func (e *CustomerEditor) Cancel() {
	e.form.close()
}

// State returns a snapshot of the form
func (e *CustomerEditor) State() State[models.CustomerInput] {
	return e.form.snapshot()
}

// Prepare validates values against local rules and, in create mode, against
// the records currently loaded in the view. On failure the form stays open
// with values and the error recorded.
func (e *CustomerEditor) Prepare(values models.CustomerInput, loaded []models.Customer) (Submission[models.CustomerInput], error) {
	if !e.form.state.Open {
		return Submission[models.CustomerInput]{}, errNotOpen
	}

	input := values.Trimmed()

	if fieldErrs, err := validateStruct(input); err != nil {
		e.form.reject(values, fieldErrs, err)
		return Submission[models.CustomerInput]{}, err
	}

	mobile, ok := models.NormalizeMobile(input.Mobile)
	if !ok {
		err := models.ErrInvalidInput(MsgMobileDigits)
		e.form.reject(values, map[string]string{"mobile": MsgMobileDigits}, err)
		return Submission[models.CustomerInput]{}, err
	}
	input.Mobile = mobile

	if e.form.state.Mode == ModeCreate {
		if field, msg := findDuplicate(input, loaded); msg != "" {
			err := models.ErrDuplicate(msg)
			e.form.reject(values, map[string]string{field: msg}, err)
			return Submission[models.CustomerInput]{}, err
		}
	}

	return e.form.submission(values, input), nil
}

// Complete applies the outcome of an executed submission. It reports false
// when the form was closed or reopened while the write was in flight.
func (e *CustomerEditor) Complete(sub Submission[models.CustomerInput], err error) bool {
	return e.form.complete(sub, err)
}

// Submit runs Prepare, Execute and Complete in sequence
func (e *CustomerEditor) Submit(ctx context.Context, values models.CustomerInput, loaded []models.Customer, w Writer[models.CustomerInput]) (Submission[models.CustomerInput], error) {
	sub, err := e.Prepare(values, loaded)
	if err != nil {
		return sub, err
	}
	err = sub.Execute(ctx, w)
	e.Complete(sub, err)
	return sub, err
}

// findDuplicate compares name, then email, case-insensitively against the
// loaded backend records. Imported rows are ignored.
func findDuplicate(input models.CustomerInput, loaded []models.Customer) (field, msg string) {
	for i := range loaded {
		if loaded[i].IsImported() {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(loaded[i].FullName), input.FullName) {
			return "fullname", MsgNameExists
		}
	}
	for i := range loaded {
		if loaded[i].IsImported() {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(loaded[i].Email), input.Email) {
			return "email", MsgEmailExists
		}
	}
	return "", ""
}
