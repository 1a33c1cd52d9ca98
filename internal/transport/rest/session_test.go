package rest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abgdnv/cartsync/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type mockTokenStore struct {
	token   string
	cleared bool
}

func (m *mockTokenStore) Set(token string) { m.token = token }
func (m *mockTokenStore) Clear()           { m.cleared = true }

func Test_SessionHandler(t *testing.T) {
	testCases := []struct {
		name          string
		method        string
		body          string
		expectedCode  int
		expectedToken string
		expectCleared bool
		expectEnded   bool
	}{
		{name: "renew", method: http.MethodPut, body: `{"token":"fresh-token"}`, expectedCode: http.StatusNoContent, expectedToken: "fresh-token"},
		{name: "renew without token", method: http.MethodPut, body: `{}`, expectedCode: http.StatusBadRequest},
		{name: "logout", method: http.MethodDelete, expectedCode: http.StatusNoContent, expectCleared: true, expectEnded: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			tokens := &mockTokenStore{}
			cart := &mockCartService{cart: domain.Cart{
				Items:       []domain.Item{{CartID: "1", Price: 50, Quantity: 2, Stock: 5}},
				TotalItems:  2,
				TotalAmount: 100,
			}}
			r := chi.NewRouter()
			NewSessionHandler(tokens, cart, slog.New(slog.NewJSONHandler(io.Discard, nil))).RegisterRoutes(r)
			rr := httptest.NewRecorder()

			// when
			r.ServeHTTP(rr, httptest.NewRequest(tc.method, "/api/v1/session", strings.NewReader(tc.body)))

			// then
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Equal(t, tc.expectedToken, tokens.token)
			assert.Equal(t, tc.expectCleared, tokens.cleared)
			assert.Equal(t, tc.expectEnded, cart.ended)
			if tc.expectEnded {
				assert.Zero(t, cart.Snapshot().Len())
				assert.Zero(t, cart.Snapshot().TotalAmount)
			}
		})
	}
}
