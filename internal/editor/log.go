package editor

import (
	"context"
	"strings"

	"github.com/Raymond9734/crm-console/internal/models"
)

// MsgInvalidStatus is reported for a status outside the writable set
const MsgInvalidStatus = "Invalid status"

// LogEditor is the call log create/edit form
type LogEditor struct {
	form form[models.LogInput]
}

// NewLogEditor creates a closed editor
func NewLogEditor() *LogEditor {
	return &LogEditor{}
}

// OpenCreate opens an empty form in create mode
func (e *LogEditor) OpenCreate() {
	e.form.openCreate()
}

// OpenEdit opens the form bound to an existing log; the denormalized
// customer is collapsed back to its id
func (e *LogEditor) OpenEdit(l models.Log) error {
	if l.ID == "" {
		return models.ErrInvalidInput("log id is required")
	}
	e.form.openEdit(l.ID, l.Input())
	return nil
}

// Cancel closes the form and clears its values
func (e *LogEditor) Cancel() {
	e.form.close()
}

// State returns a snapshot of the form
func (e *LogEditor) State() State[models.LogInput] {
	return e.form.snapshot()
}

// Prepare validates values locally
func (e *LogEditor) Prepare(values models.LogInput) (Submission[models.LogInput], error) {
	if !e.form.state.Open {
		return Submission[models.LogInput]{}, errNotOpen
	}

	input := values
	input.Customer = strings.TrimSpace(input.Customer)
	input.Status = models.LogStatus(strings.TrimSpace(string(input.Status)))

	if fieldErrs, err := validateStruct(input); err != nil {
		e.form.reject(values, fieldErrs, err)
		return Submission[models.LogInput]{}, err
	}

	if !models.IsValidLogStatus(input.Status) {
		err := models.ErrInvalidInput(MsgInvalidStatus)
		e.form.reject(values, map[string]string{"status": MsgInvalidStatus}, err)
		return Submission[models.LogInput]{}, err
	}

	return e.form.submission(values, input), nil
}

// Complete applies the outcome of an executed submission
func (e *LogEditor) Complete(sub Submission[models.LogInput], err error) bool {
	return e.form.complete(sub, err)
}

// Submit runs Prepare, Execute and Complete in sequence
func (e *LogEditor) Submit(ctx context.Context, values models.LogInput, w Writer[models.LogInput]) (Submission[models.LogInput], error) {
	sub, err := e.Prepare(values)
	if err != nil {
		return sub, err
	}
	err = sub.Execute(ctx, w)
	e.Complete(sub, err)
	return sub, err
}
