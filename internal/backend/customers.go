package backend

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/Raymond9734/crm-console/internal/models"
)

// CustomerAPI defines the backend operations on customers
type CustomerAPI interface {
	List(ctx context.Context, window models.PageWindow) ([]models.Customer, int64, error)
	Create(ctx context.Context, input models.CustomerInput) error
	Update(ctx context.Context, id string, input models.CustomerInput) error
	Delete(ctx context.Context, id string) error
}

type customerListResponse struct {
	Coustmers []models.Customer `json:"coustmers"`
	Total     int64             `json:"total"`
}

type customerAPI struct {
	client *Client
}

// List fetches one page of customers and the collection total
func (a *customerAPI) List(ctx context.Context, window models.PageWindow) ([]models.Customer, int64, error) {
	var out customerListResponse
	err := a.client.do(ctx, http.MethodGet, CustomersPath, func(r *resty.Request) {
		r.SetQueryParams(windowParams(window)).SetResult(&out)
	})
	if err != nil {
		return nil, 0, err
	}

	if out.Coustmers == nil {
		out.Coustmers = []models.Customer{}
	}
	return out.Coustmers, out.Total, nil
}

// Create adds a customer
func (a *customerAPI) Create(ctx context.Context, input models.CustomerInput) error {
	return a.client.do(ctx, http.MethodPost, CustomersPath, func(r *resty.Request) {
		r.SetBody(input)
	})
}

// Update replaces the editable fields of a customer
func (a *customerAPI) Update(ctx context.Context, id string, input models.CustomerInput) error {
	path, err := itemPath(CustomersPath, id)
	if err != nil {
		return err
	}
	return a.client.do(ctx, http.MethodPut, path, func(r *resty.Request) {
		r.SetPathParam("id", id).SetBody(input)
	})
}

// Delete removes a customer
func (a *customerAPI) Delete(ctx context.Context, id string) error {
	path, err := itemPath(CustomersPath, id)
	if err != nil {
		return err
	}
	return a.client.do(ctx, http.MethodDelete, path, func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
}
