package routes

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/pkg/types"
)

// marketplace is an in-memory stand-in for the backend REST API.
type marketplace struct {
	mu     sync.Mutex
	nextID int64
	items  []cart.RemoteItem
	saved  map[string][]string
	tokens []string
}

func newMarketplace() *marketplace {
	return &marketplace{nextID: 1000, saved: map[string][]string{}}
}

func (m *marketplace) write(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.SuccessEnvelope{Data: data})
}

func (m *marketplace) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.mu.Lock()
			m.tokens = append(m.tokens, r.Header.Get("Authorization"))
			m.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/cart", func(w http.ResponseWriter, _ *http.Request) {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.write(w, http.StatusOK, cart.RemoteCart{ID: 42, OwnerID: "user-1", Items: append([]cart.RemoteItem{}, m.items...)})
		})
		r.Delete("/cart", func(w http.ResponseWriter, _ *http.Request) {
			m.mu.Lock()
			m.items = nil
			m.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/cart/items", func(w http.ResponseWriter, r *http.Request) {
			var in cart.RemoteItemInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			m.mu.Lock()
			defer m.mu.Unlock()
			m.nextID++
			item := cart.RemoteItem{ID: m.nextID, ListingRef: in.ListingRef, Quantity: in.Quantity, UnitPrice: in.UnitPrice, Title: "Listing " + in.ListingRef}
			m.items = append(m.items, item)
			m.write(w, http.StatusCreated, item)
		})
		r.Patch("/cart/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			var patch cart.RemoteItemPatch
			if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			m.mu.Lock()
			defer m.mu.Unlock()
			for i := range m.items {
				if m.items[i].ID == id {
					if patch.Quantity != nil {
						m.items[i].Quantity = *patch.Quantity
					}
					m.write(w, http.StatusOK, m.items[i])
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
		})
		r.Delete("/cart/items/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			m.mu.Lock()
			defer m.mu.Unlock()
			for i := range m.items {
				if m.items[i].ID == id {
					m.items = append(m.items[:i], m.items[i+1:]...)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
		})

		r.Get("/saved/{plural}", func(w http.ResponseWriter, r *http.Request) {
			m.mu.Lock()
			defer m.mu.Unlock()
			ids := m.saved[chi.URLParam(r, "plural")]
			skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
			out := []saved.RemoteEntry{}
			for i := skip; i < len(ids); i++ {
				out = append(out, saved.RemoteEntry{ID: ids[i]})
			}
			m.write(w, http.StatusOK, out)
		})
		r.Post("/saved/{plural}/{id}", func(w http.ResponseWriter, r *http.Request) {
			m.mu.Lock()
			defer m.mu.Unlock()
			plural, id := chi.URLParam(r, "plural"), chi.URLParam(r, "id")
			m.saved[plural] = append(m.saved[plural], id)
			m.write(w, http.StatusCreated, saved.RemoteEntry{ID: id})
		})
		r.Delete("/saved/{plural}/{id}", func(w http.ResponseWriter, r *http.Request) {
			m.mu.Lock()
			defer m.mu.Unlock()
			plural, id := chi.URLParam(r, "plural"), chi.URLParam(r, "id")
			ids := m.saved[plural]
			for i := range ids {
				if ids[i] == id {
					m.saved[plural] = append(ids[:i], ids[i+1:]...)
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}
			w.WriteHeader(http.StatusNotFound)
		})
		r.Post("/{plural}/bulk", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				IDs []string `json:"ids"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			out := make([]saved.Entity, 0, len(body.IDs))
			for _, id := range body.IDs {
				out = append(out, saved.Entity{ID: id, Name: "Farm " + id})
			}
			m.write(w, http.StatusOK, out)
		})
	})
	return r
}

func (m *marketplace) savedIDs(plural string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.saved[plural]...)
}

func (m *marketplace) cartItems() []cart.RemoteItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.RemoteItem(nil), m.items...)
}
