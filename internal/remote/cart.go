package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
)

var _ cart.Remote = (*Client)(nil)

func (c *Client) FetchRemoteCart(ctx context.Context) (cart.RemoteCart, error) {
	var out cart.RemoteCart
	err := c.do(ctx, http.MethodGet, "/cart", nil, nil, &out)
	return out, err
}

func (c *Client) PushCartItem(ctx context.Context, item cart.RemoteItemInput) (cart.RemoteItem, error) {
	var out cart.RemoteItem
	err := c.do(ctx, http.MethodPost, "/cart/items", nil, item, &out)
	return out, err
}

func (c *Client) UpdateRemoteCartItem(ctx context.Context, id string, patch cart.RemoteItemPatch) (cart.RemoteItem, error) {
	var out cart.RemoteItem
	err := c.do(ctx, http.MethodPatch, "/cart/items/"+url.PathEscape(id), nil, patch, &out)
	return out, err
}

func (c *Client) RemoveRemoteCartItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ClearRemoteCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil, nil)
}
