package view

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Raymond9734/crm-console/internal/editor"
	"github.com/Raymond9734/crm-console/internal/liststore"
	"github.com/Raymond9734/crm-console/internal/models"
	"github.com/Raymond9734/crm-console/internal/notify"
	"github.com/Raymond9734/crm-console/internal/search"
	"github.com/Raymond9734/crm-console/internal/spreadsheet"
)

// Customer view notifications
const (
	MsgFetchCustomers  = "Error fetching customers"
	MsgCustomerCreated = "Customer Created Successfully"
	MsgCustomerUpdated = "Customer Updated Successfully"
	MsgCustomerDeleted = "Customer deleted"
	MsgDeleteFailed    = "Failed to delete"
	MsgExportFailed    = "Failed to export"
	MsgCustomerMissing = "Customer not found"
)

// CustomerView is the customer registry screen of one view session
type CustomerView struct {
	mu       sync.Mutex
	window   models.PageWindow
	search   string
	loaded   []models.Customer
	imported []models.Customer
	editor   *editor.CustomerEditor

	source  Source[models.Customer]
	api     CustomerWriter
	related []invalidator
	toaster *notify.Toaster
	logger  *slog.Logger
	now     func() time.Time
}

func newCustomerView(source Source[models.Customer], api CustomerWriter, related []invalidator, toaster *notify.Toaster, logger *slog.Logger, now func() time.Time) *CustomerView {
	return &CustomerView{
		window:  models.DefaultWindow(),
		editor:  editor.NewCustomerEditor(),
		source:  source,
		api:     api,
		related: related,
		toaster: toaster,
		logger:  logger,
		now:     now,
	}
}

// Window returns the current page window
func (v *CustomerView) Window() models.PageWindow {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.window
}

// SetWindow changes the page window, returns it normalized and forgets
// the loaded page when the cache key changes.
func (v *CustomerView) SetWindow(w models.PageWindow) models.PageWindow {
	v.mu.Lock()
	defer v.mu.Unlock()
	before := v.source.Key(v.window)
	v.window = w.Normalize()
	if v.source.Key(v.window) != before {
		v.loaded = nil
	}
	return v.window
}

// Search sets the search key and returns it lower-cased
func (v *CustomerView) Search(key string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = search.NormalizeKey(key)
	return v.search
}

// Listing loads the current page and returns the filtered server records
// followed by the imported rows. A failed fetch keeps the previous page of
// the same window, marks the listing stale and notifies.
func (v *CustomerView) Listing(ctx context.Context) (*Listing[models.Customer], error) {
	var (
		out     *Listing[models.Customer]
		loadErr error
	)

	err := loadCurrent(ctx, &v.mu, &v.window, v.source, func(key liststore.Key, page *liststore.Page[models.Customer], err error) {
		loadErr = err
		if page != nil {
			v.loaded = page.Items
		}
		out = listing(v.window, key, v.search, page, err, search.CustomerFields)
		out.Items = append(out.Items, v.imported...)
		out.Imported = len(v.imported)
	})
	if err != nil {
		loadErr = err
	}

	if loadErr != nil {
		v.logger.Warn("failed to load customers", slog.String("error", loadErr.Error()))
		v.toaster.Error(ctx, "customer.list", MsgFetchCustomers)
	}
	return out, loadErr
}

// EditorState returns the customer editor's state
func (v *CustomerView) EditorState() editor.State[models.CustomerInput] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.editor.State()
}

// OpenCreate opens the editor in create mode
func (v *CustomerView) OpenCreate() editor.State[models.CustomerInput] {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor.OpenCreate()
	return v.editor.State()
}

// OpenEdit opens the editor for a record on the loaded page
func (v *CustomerView) OpenEdit(id string) (editor.State[models.CustomerInput], error) {
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
	for i := range v.imported {
		if v.imported[i].ID == id {
			return v.editor.State(), models.ErrInvalidInput(editor.MsgImportedRecord)
		}
	}
	return v.editor.State(), models.ErrNotFoundWithMsg(MsgCustomerMissing)
}

// CancelEdit closes the editor and clears it
func (v *CustomerView) CancelEdit() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.editor.Cancel()
}

// Submit validates and saves the editor's values. On success the editor
// closes and the page that was displayed when Submit started is re-fetched.
func (v *CustomerView) Submit(ctx context.Context, values models.CustomerInput) error {
	// Step 1: local validation against the loaded page
	v.mu.Lock()
	key := v.source.Key(v.window)
	loaded := append([]models.Customer(nil), v.loaded...)
	sub, err := v.editor.Prepare(values, loaded)
	v.mu.Unlock()

	if err != nil {
		v.toaster.Error(ctx, "customer.submit", models.UserMessage(err))
		return err
	}

	// Step 2: write through the backend without holding the view lock
	err = sub.Execute(ctx, v.api)

	v.mu.Lock()
	v.editor.Complete(sub, err)
	v.mu.Unlock()

	if err != nil {
		v.logger.Error("failed to save customer",
			slog.String("mode", string(sub.Mode)),
			slog.String("id", sub.ID),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "customer.submit", models.UserMessage(err))
		return err
	}

	if sub.Mode == editor.ModeEdit {
		v.toaster.Success(ctx, "customer.update", MsgCustomerUpdated)
	} else {
		v.toaster.Success(ctx, "customer.create", MsgCustomerCreated)
	}

	// Step 3: re-fetch the page the user was looking at
	v.refresh(ctx, key)
	return nil
}

// Delete removes a record. Imported rows are only dropped from the view.
func (v *CustomerView) Delete(ctx context.Context, id string) error {
	if strings.HasPrefix(id, models.ImportedIDPrefix) {
		v.mu.Lock()
		removed := v.removeImported(id)
		v.mu.Unlock()

		if !removed {
			return models.ErrNotFoundWithMsg(MsgCustomerMissing)
		}
		v.toaster.Success(ctx, "customer.delete", MsgCustomerDeleted)
		return nil
	}

	v.mu.Lock()
	key := v.source.Key(v.window)
	v.mu.Unlock()

	if err := v.api.Delete(ctx, id); err != nil {
		v.logger.Error("failed to delete customer",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "customer.delete", MsgDeleteFailed)
		return err
	}

	v.mu.Lock()
	if v.editor.State().EditingID == id {
		v.editor.Cancel()
	}
	v.mu.Unlock()

	v.toaster.Success(ctx, "customer.delete", MsgCustomerDeleted)
	v.refresh(ctx, key)
	return nil
}

// Import reads an uploaded workbook and replaces the view's imported rows.
// Imported rows are not sent to the backend.
func (v *CustomerView) Import(ctx context.Context, filename string, r io.Reader) (*spreadsheet.ImportResult, error) {
	result, err := spreadsheet.Import(filename, r, v.now())
	if err != nil {
		v.logger.Warn("customer import rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "customer.import", models.UserMessage(err))
		return nil, err
	}

	v.mu.Lock()
	v.imported = result.Customers
	v.mu.Unlock()

	v.toaster.Success(ctx, "customer.import", fmt.Sprintf("%d customers imported successfully", len(result.Customers)))
	if n := result.RowsWithIssues(); n > 0 {
		v.toaster.Warn(ctx, "customer.import", fmt.Sprintf("%d rows imported with issues", n))
	}

	v.logger.Info("customers imported",
		slog.String("filename", filename),
		slog.Int("rows", len(result.Customers)),
		slog.Int("rows_with_issues", result.RowsWithIssues()),
	)
	return result, nil
}

// Imported returns the view's imported rows
func (v *CustomerView) Imported() []models.Customer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.Customer{}, v.imported...)
}

// ClearImports drops every imported row
func (v *CustomerView) ClearImports() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.imported = nil
}

// Export writes the filtered server rows of the current page as a workbook.
// Imported rows are not exported. It returns the number of rows written.
func (v *CustomerView) Export(ctx context.Context, w io.Writer) (int, error) {
	var rows []models.Customer

	err := loadCurrent(ctx, &v.mu, &v.window, v.source, func(_ liststore.Key, page *liststore.Page[models.Customer], _ error) {
		if page != nil {
			v.loaded = page.Items
			rows = search.Filter(page.Items, v.search, search.CustomerFields)
		}
	})
	if err != nil {
		v.toaster.Error(ctx, "customer.export", MsgExportFailed)
		return 0, err
	}

	if len(rows) == 0 {
		v.toaster.Warn(ctx, "customer.export", spreadsheet.MsgNoData)
		return 0, models.ErrNothingToExport
	}

	if err := spreadsheet.Export(w, rows); err != nil {
		v.logger.Error("failed to export customers", slog.String("error", err.Error()))
		v.toaster.Error(ctx, "customer.export", MsgExportFailed)
		return 0, err
	}

	v.toaster.Success(ctx, "customer.export", fmt.Sprintf("%d customers exported", len(rows)))
	return len(rows), nil
}

// refresh invalidates every page a mutation may have shifted and re-fetches key
func (v *CustomerView) refresh(ctx context.Context, key liststore.Key) {
	v.source.InvalidateAll()
	for _, r := range v.related {
		r.InvalidateAll()
	}

	if _, err := v.source.Refresh(ctx, key); err != nil {
		v.logger.Warn("refresh after mutation failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
		v.toaster.Error(ctx, "customer.list", MsgFetchCustomers)
	}
}

// removeImported drops one imported row. Caller holds mu.
func (v *CustomerView) removeImported(id string) bool {
	for i := range v.imported {
		if v.imported[i].ID == id {
			v.imported = append(v.imported[:i:i], v.imported[i+1:]...)
			return true
		}
	}
	return false
}
