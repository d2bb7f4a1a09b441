package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mindhaven/companion/internal/domain"
)

type resourcesResponse struct {
	Data  []domain.Resource `json:"data"`
	Count int               `json:"count"`
}

type resourceResponse struct {
	Data domain.Resource `json:"data"`
}

type categoriesResponse struct {
	Data []string `json:"data"`
}

// Resources lists library entries, optionally filtered by category.
func (c *Client) Resources(ctx context.Context, category string) ([]domain.Resource, error) {
	path := "/resources"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var resp resourcesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ResourceCategories lists the library's categories.
func (c *Client) ResourceCategories(ctx context.Context) ([]string, error) {
	var resp categoriesResponse
	if err := c.do(ctx, http.MethodGet, "/resources/categories", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Resource fetches a single library entry.
func (c *Client) Resource(ctx context.Context, id string) (domain.Resource, error) {
	var resp resourceResponse
	if err := c.do(ctx, http.MethodGet, "/resources/"+id, nil, &resp); err != nil {
		return domain.Resource{}, err
	}
	return resp.Data, nil
}
