package rewards

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	models "github.com/glkeru/loyalty/rewards/internal/models"
)

// HTTP клиент движка наград
type EngineClient struct {
	base   string
	client *http.Client
}

// адрес из ENGINE_HOST и ENGINE_PORT
func NewEngineClient() (*EngineClient, error) {
	host, err := config.Required("ENGINE_HOST")
	if err != nil {
		return nil, err
	}
	port, err := config.Required("ENGINE_PORT")
	if err != nil {
		return nil, err
	}
	return NewEngineClientURL(host + ":" + port), nil
}

func NewEngineClientURL(base string) *EngineClient {
	return &EngineClient{base, &http.Client{Timeout: 5 * time.Second}}
}

type engineError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Promo string `json:"promoCode"`
}

// Расчет корзины на сервере
func (e *EngineClient) PriceCart(ctx context.Context, req models.PriceRequest) (result models.CartPricingResult, err error) {
	data, err := json.Marshal(req)
	if err != nil {
		return result, err
	}
	httpreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.base+"/cart/price", bytes.NewBuffer(data))
	if err != nil {
		return result, err
	}
	httpreq.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(httpreq)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, err
	}
	if resp.StatusCode != http.StatusOK {
		// ошибка промокода возвращается типизированной
		apiErr := engineError{}
		if json.Unmarshal(body, &apiErr) == nil && resp.StatusCode == http.StatusUnprocessableEntity && apiErr.Code != "" {
			return result, models.NewPromoError(models.PromoErrorCode(apiErr.Code), apiErr.Promo)
		}
		return result, fmt.Errorf("engine service HTTP error: %s", resp.Status)
	}
	err = json.Unmarshal(body, &result)
	return result, err
}
