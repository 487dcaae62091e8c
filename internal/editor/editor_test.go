package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raymond9734/crm-console/internal/models"
)

type call struct {
	method string
	id     string
}

type mockWriter[In any] struct {
	calls  []call
	inputs []In
	err    error
}

func (m *mockWriter[In]) Create(ctx context.Context, input In) error {
	m.calls = append(m.calls, call{method: "create"})
	m.inputs = append(m.inputs, input)
	return m.err
}

func (m *mockWriter[In]) Update(ctx context.Context, id string, input In) error {
	m.calls = append(m.calls, call{method: "update", id: id})
	m.inputs = append(m.inputs, input)
	return m.err
}

var loadedPage = []models.Customer{
	{ID: "c1", FullName: "john doe", Email: "John@Example.com", Mobile: "9876543210"},
	{ID: "imported-0", FullName: "Imported Person", Email: "imported@example.com", Imported: true},
}

func TestCustomerEditor_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     models.CustomerInput
		wantCode  string
		wantMsg   string
		wantField string
	}{
		{
			name:      "missing name",
			input:     models.CustomerInput{Email: "a@b.com", Mobile: "9876543210"},
			wantCode:  models.CodeInvalidInput,
			wantMsg:   "Full name is required",
			wantField: "fullname",
		},
		{
			name:      "whitespace only name",
			input:     models.CustomerInput{FullName: "   ", Email: "a@b.com", Mobile: "9876543210"},
			wantCode:  models.CodeInvalidInput,
			wantMsg:   "Full name is required",
			wantField: "fullname",
		},
		{
			name:      "bad email",
			input:     models.CustomerInput{FullName: "Jane", Email: "jane-at-example", Mobile: "9876543210"},
			wantCode:  models.CodeInvalidInput,
			wantMsg:   "Invalid email format",
			wantField: "email",
		},
		{
			name:      "short mobile",
			input:     models.CustomerInput{FullName: "Jane", Email: "jane@example.com", Mobile: "12345"},
			wantCode:  models.CodeInvalidInput,
			wantMsg:   MsgMobileDigits,
			wantField: "mobile",
		},
		{
			name:      "duplicate name ignoring case",
			input:     models.CustomerInput{FullName: "John Doe", Email: "other@example.com", Mobile: "9876543210"},
			wantCode:  models.CodeDuplicate,
			wantMsg:   MsgNameExists,
			wantField: "fullname",
		},
		{
			name:      "duplicate email ignoring case",
			input:     models.CustomerInput{FullName: "Johnny", Email: "john@example.COM", Mobile: "9876543210"},
			wantCode:  models.CodeDuplicate,
			wantMsg:   MsgEmailExists,
			wantField: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewCustomerEditor()
			e.OpenCreate()
			w := &mockWriter[models.CustomerInput]{}

			_, err := e.Submit(context.Background(), tt.input, loadedPage, w)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, tt.wantMsg, models.UserMessage(err))

			// Nothing reaches the backend and the form keeps its values
			assert.Empty(t, w.calls)
			state := e.State()
			assert.True(t, state.Open)
			assert.Equal(t, tt.input, state.Form)
			assert.Equal(t, tt.wantMsg, state.FieldErrors[tt.wantField])
			assert.Equal(t, tt.wantMsg, state.Error)
		})
	}
}

func TestCustomerEditor_ImportedRowsDoNotCountAsDuplicates(t *testing.T) {
	e := NewCustomerEditor()
	e.OpenCreate()
	w := &mockWriter[models.CustomerInput]{}

	_, err := e.Submit(context.Background(), models.CustomerInput{
		FullName: "Imported Person", Email: "imported@example.com", Mobile: "9876543210",
	}, loadedPage, w)
	require.NoError(t, err)
	assert.Len(t, w.calls, 1)
}

func TestCustomerEditor_CreateSuccess(t *testing.T) {
	e := NewCustomerEditor()
	e.OpenCreate()
	w := &mockWriter[models.CustomerInput]{}

	sub, err := e.Submit(context.Background(), models.CustomerInput{
		FullName: "  Jane Roe ", Email: "jane@example.com", Mobile: "+91 98765-43210",
	}, loadedPage, w)
	require.NoError(t, err)

	assert.Equal(t, ModeCreate, sub.Mode)
	assert.Equal(t, []call{{method: "create"}}, w.calls)
	assert.Equal(t, models.CustomerInput{FullName: "Jane Roe", Email: "jane@example.com", Mobile: "9876543210"}, w.inputs[0])

	// Optimistic close: form, selection and errors are cleared
	assert.Equal(t, State[models.CustomerInput]{}, e.State())
}

func TestCustomerEditor_EditSkipsDuplicateCheck(t *testing.T) {
	e := NewCustomerEditor()
	require.NoError(t, e.OpenEdit(loadedPage[0]))

	state := e.State()
	assert.Equal(t, ModeEdit, state.Mode)
	assert.Equal(t, "c1", state.EditingID)
	assert.Equal(t, "john doe", state.Form.FullName)

	w := &mockWriter[models.CustomerInput]{}
	_, err := e.Submit(context.Background(), models.CustomerInput{
		FullName: "John Doe", Email: "john@example.com", Mobile: "98765 43210",
	}, loadedPage, w)
	require.NoError(t, err)
	assert.Equal(t, []call{{method: "update", id: "c1"}}, w.calls)
	assert.False(t, e.State().Open)
}

func TestCustomerEditor_OpenEditRejectsImported(t *testing.T) {
	e := NewCustomerEditor()
	err := e.OpenEdit(loadedPage[1])
	assert.True(t, models.HasCode(err, models.CodeInvalidInput))
	assert.False(t, e.State().Open)
}

func TestCustomerEditor_BackendFailureKeepsForm(t *testing.T) {
	e := NewCustomerEditor()
	e.OpenCreate()
	w := &mockWriter[models.CustomerInput]{err: models.ErrUpstream("Email already registered")}

	values := models.CustomerInput{FullName: "Jane", Email: "jane@example.com", Mobile: "+91 98765-43210"}
	_, err := e.Submit(context.Background(), values, nil, w)
	require.Error(t, err)

	state := e.State()
	assert.True(t, state.Open)
	assert.Equal(t, ModeCreate, state.Mode)
	assert.Equal(t, values, state.Form)
	assert.Equal(t, "Email already registered", state.Error)
}

func TestCustomerEditor_StaleCompletionIgnored(t *testing.T) {
	e := NewCustomerEditor()
	e.OpenCreate()

	sub, err := e.Prepare(models.CustomerInput{FullName: "Jane", Email: "jane@example.com", Mobile: "9876543210"}, nil)
	require.NoError(t, err)

	// The user cancels and starts over while the write is in flight
	e.Cancel()
	e.OpenCreate()

	assert.False(t, e.Complete(sub, nil))
	assert.True(t, e.State().Open)
}

func TestCustomerEditor_PrepareWhenClosed(t *testing.T) {
	e := NewCustomerEditor()
	_, err := e.Prepare(models.CustomerInput{}, nil)
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestCustomerEditor_StateIsACopy(t *testing.T) {
	e := NewCustomerEditor()
	e.OpenCreate()
	_, _ = e.Prepare(models.CustomerInput{}, nil)

	state := e.State()
	state.FieldErrors["fullname"] = "changed"
	assert.Equal(t, "Full name is required", e.State().FieldErrors["fullname"])
}

func TestLogEditor(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   models.LogInput
		wantErr string
	}{
		{name: "missing customer", input: models.LogInput{Status: models.LogStatusBusy}, wantErr: "Customer is required"},
		{name: "missing status", input: models.LogInput{Customer: "c1"}, wantErr: "Status is required"},
		{name: "completed is not writable", input: models.LogInput{Customer: "c1", Status: models.LogStatusCompleted}, wantErr: MsgInvalidStatus},
		{name: "unknown status", input: models.LogInput{Customer: "c1", Status: "ringing"}, wantErr: MsgInvalidStatus},
		{name: "valid", input: models.LogInput{Customer: "c1", Status: models.LogStatusNotReceived, StartAt: &start}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewLogEditor()
			e.OpenCreate()
			w := &mockWriter[models.LogInput]{}

			_, err := e.Submit(context.Background(), tt.input, w)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, models.UserMessage(err))
				assert.Empty(t, w.calls)
				assert.True(t, e.State().Open)
				return
			}
			require.NoError(t, err)
			require.Len(t, w.inputs, 1)
			assert.Equal(t, tt.input, w.inputs[0])
			assert.False(t, e.State().Open)
		})
	}
}

func TestLogEditor_EditBindsCustomerID(t *testing.T) {
	e := NewLogEditor()
	require.NoError(t, e.OpenEdit(models.Log{
		ID:       "l1",
		Customer: &models.CustomerRef{ID: "c1", FullName: "John Doe"},
		Status:   models.LogStatusBusy,
	}))

	state := e.State()
	assert.Equal(t, "c1", state.Form.Customer)

	w := &mockWriter[models.LogInput]{err: errors.New("socket hang up")}
	_, err := e.Submit(context.Background(), state.Form, w)
	require.Error(t, err)
	assert.Equal(t, []call{{method: "update", id: "l1"}}, w.calls)
	assert.Equal(t, "socket hang up", e.State().Error)
}
