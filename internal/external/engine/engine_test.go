package rewards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"github.com/stretchr/testify/require"
)

func TestPriceCart(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cart/price", r.URL.Path)
		req := models.PriceRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.PromoCode {
		case "OLD":
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":"expired","code":"CodeExpired","promoCode":"OLD"}`))
		case "BOOM":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"subtotal":1000,"total":1000,"discountedSubtotal":1000}`))
		}
	}))
	defer srv.Close()
	client := NewEngineClientURL(srv.URL)
	items := []models.CartItem{{ProductID: "a", UnitPrice: 1000, Quantity: 1}}

	result, err := client.PriceCart(context.Background(), models.PriceRequest{Items: items})
	require.NoError(t, err)
	require.Equal(t, int64(1000), result.Total)

	_, err = client.PriceCart(context.Background(), models.PriceRequest{Items: items, PromoCode: "OLD"})
	require.ErrorIs(t, err, models.ErrCodeExpired)

	_, err = client.PriceCart(context.Background(), models.PriceRequest{Items: items, PromoCode: "BOOM"})
	require.Error(t, err)
}

func TestNewEngineClientEnv(t *testing.T) {
	t.Setenv("ENGINE_HOST", "")
	_, err := NewEngineClient()
	require.EqualError(t, err, "env ENGINE_HOST is not set")

	t.Setenv("ENGINE_HOST", "http://localhost")
	t.Setenv("ENGINE_PORT", "8080")
	client, err := NewEngineClient()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", client.base)
}
