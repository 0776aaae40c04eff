package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/farmcart-sync/api/validators"
)

const (
	defaultViewWaitMS = 1500
	maxViewWaitMS     = 10000
)

// viewContext bounds how long a read waits for the backend before the local
// cache is rendered. wait_ms=0 renders whatever is cached right away.
func viewContext(r *http.Request) (context.Context, context.CancelFunc, error) {
	waitMS, err := validators.ParseQueryInt(r, "wait_ms", defaultViewWaitMS, 0, maxViewWaitMS)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(waitMS)*time.Millisecond)
	return ctx, cancel, nil
}
