package view

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Raymond9734/crm-console/internal/editor"
	"github.com/Raymond9734/crm-console/internal/liststore"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
	"github.com/Raymond9734/crm-console/internal/search"
)

// Log view notifications
const (
	MsgFetchLogs       = "Error fetching logs"
	MsgLogCreated      = "Log created"
	MsgLogUpdated      = "Log updated"
	MsgLogSaveFailed   = "Error saving log"
	MsgLogDeleted      = "Log deleted"
	MsgLogDeleteFailed = "Error deleting log"
	MsgLogMissing      = "Log not found"
)

// LogView is the call log screen of one view session
type LogView struct {
	mu     sync.Mutex
	window models.PageWindow
	search string
	loaded []models.Log
	editor *editor.LogEditor

	logs      Source[models.Log]
	customers Source[models.Customer]
	api       LogWriter
	toaster   *notify.Toaster
	logger    *slog.Logger
}

func newLogView(logs Source[models.Log], customers Source[models.Customer], api LogWriter, toaster *notify.Toaster, logger *slog.Logger) *LogView {
	return &LogView{
		window:    models.DefaultWindow(),
		editor:    editor.NewLogEditor(),
		logs:      logs,
		customers: customers,
		api:       api,
		toaster:   toaster,
		logger:    logger,
	}
}

// Window returns the current page window
func (v *LogView) Window() models.PageWindow {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window
}

// SetWindow changes the page window, returns it normalized and forgets
// the loaded page when the cache key changes.
func (v *LogView) SetWindow(w models.PageWindow) models.PageWindow {
	v.mu.Lock()
	defer v.mu.Unlock()
	before := v.logs.Key(v.window)
	v.window = w.Normalize()
	if v.logs.Key(v.window) != before {
		v.loaded = nil
	}
	return v.window
}

// Search sets the search key and returns it lower-cased
func (v *LogView) Search(key string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = search.NormalizeKey(key)
	return v.search
}

// Listing loads the current page of logs filtered by status and customer name
func (v *LogView) Listing(ctx context.Context) (*Listing[models.Log], error) {
	var (
		out     *Listing[models.Log]
		loadErr error
	)

	err := loadCurrent(ctx, &v.mu, &v.window, v.logs, func(key liststore.Key, page *liststore.Page[models.Log], err error) {
		loadErr = err
		if page != nil {
			v.loaded = page.Items
		}
		out = listing(v.window, key, v.search, page, err, search.LogFields)
	})
	if err != nil {
		loadErr = err
	}

	if loadErr != nil {
		v.logger.Warn("failed to load logs", slog.String("error", loadErr.Error()))
		v.toaster.Error(ctx, "log.list", MsgFetchLogs)
	}
	return out, loadErr
}

// CustomerOptions returns the capped customer collection offered by the
// log editor's customer picker
func (v *LogView) CustomerOptions(ctx context.Context) ([]models.Customer, error) {
	page, err := v.customers.Load(ctx, v.customers.Key(models.AllWindow()))
	if err != nil {
		v.logger.Warn("failed to load customer options", slog.String("error", err.Error()))
		v.toaster.Error(ctx, "log.customers", MsgFetchCustomers)
	}
	if page == nil {
		return []models.Customer{}, err
	}
	return page.Items, err
}

// EditorState returns the log editor's state
func (v *LogView) EditorState() editor.State[models.LogInput] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editor.State()
}

// OpenCreate opens the editor in create mode
func (v *LogView) OpenCreate() editor.State[models.LogInput] {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor.OpenCreate()
	return v.editor.State()
}

// OpenEdit opens the editor for a log on the loaded page
func (v *LogView) OpenEdit(id string) (editor.State[models.LogInput], error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.loaded {
		if v.loaded[i].ID == id {
			if err := v.editor.OpenEdit(v.loaded[i]); err != nil {
				return v.editor.State(), err
			}
			return v.editor.State(), nil
		}
	}
	return v.editor.State(), models.ErrNotFoundWithMsg(MsgLogMissing)
}

// CancelEdit closes the editor and clears it
func (v *LogView) CancelEdit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor.Cancel()
}

// Submit validates and saves the editor's values, then re-fetches the page
// that was displayed when Submit started
func (v *LogView) Submit(ctx context.Context, values models.LogInput) error {
	v.mu.Lock()
	key := v.logs.Key(v.window)
	sub, err := v.editor.Prepare(values)
	v.mu.Unlock()

	if err != nil {
		v.toaster.Error(ctx, "log.submit", models.UserMessage(err))
		return err
	}

	err = sub.Execute(ctx, v.api)

	v.mu.Lock()
	v.editor.Complete(sub, err)
	v.mu.Unlock()

	if err != nil {
		v.logger.Error("failed to save log",
			slog.String("mode", string(sub.Mode)),
			slog.String("id", sub.ID),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "log.submit", MsgLogSaveFailed+": "+models.UserMessage(err))
		return err
	}

	if sub.Mode == editor.ModeEdit {
		v.toaster.Success(ctx, "log.update", MsgLogUpdated)
	} else {
		v.toaster.Success(ctx, "log.create", MsgLogCreated)
	}

	v.refresh(ctx, key)
	return nil
}

// Delete removes a log and re-fetches the current page
func (v *LogView) Delete(ctx context.Context, id string) error {
	v.mu.Lock()
	key := v.logs.Key(v.window)
	v.mu.Unlock()

	if err := v.api.Delete(ctx, id); err != nil {
		v.logger.Error("failed to delete log",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "log.delete", MsgLogDeleteFailed)
		return err
	}

	v.mu.Lock()
	if v.editor.State().EditingID == id {
		v.editor.Cancel()
	}
	v.mu.Unlock()

	v.toaster.Success(ctx, "log.delete", MsgLogDeleted)
	v.refresh(ctx, key)
	return nil
}

func (v *LogView) refresh(ctx context.Context, key liststore.Key) {
	v.logs.InvalidateAll()
	if _, err := v.logs.Refresh(ctx, key); err != nil {
		v.logger.Warn("refresh after mutation failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "log.list", MsgFetchLogs)
	}
}
