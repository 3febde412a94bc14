// Package wpcom реализует клиент удалённого API тарифных планов WordPress.com.
package wpcom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/storeplan-sync/internal/config"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// Client загружает текущий план сайта из удалённого API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient создаёт клиент. rps <= 0 отключает ограничение частоты запросов.
func NewClient(baseURL, token string, timeout time.Duration, rps float64) *Client {
	limit := rate.Inf
	burst := 0
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// FromConfig создаёт клиент по секции конфигурации.
func FromConfig(cfg config.WPCom) *Client {
	return NewClient(cfg.WPComBaseURL, cfg.WPComToken, cfg.WPComTimeout, cfg.WPComRateLimit)
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// LoadCurrentPlan возвращает текущий план сайта.
// Ответ 404 с кодом no_current_plan означает отсутствие плана: models.ErrNoCurrentPlan.
func (c *Client) LoadCurrentPlan(ctx context.Context, siteID int64) (models.PlanSnapshot, error) {
	const op = "wpcom.LoadCurrentPlan"

	if err := c.limiter.Wait(ctx); err != nil {
		return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/sites/"+strconv.FormatInt(siteID, 10)+"/plans/current")
	if err != nil {
		return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		var apiErr ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error == errorNoCurrentPlan {
			return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, models.ErrNoCurrentPlan)
		}
		return models.PlanSnapshot{}, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	default:
		return models.PlanSnapshot{}, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var body CurrentPlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.PlanSnapshot{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	return body.snapshot(), nil
}

func (r CurrentPlanResponse) snapshot() models.PlanSnapshot {
	return models.PlanSnapshot{
		ID:             r.PlanID,
		Name:           r.ProductSlug,
		IsFreeTrial:    models.IsFreeTrialPlan(r.PlanID, r.ProductSlug),
		SubscribedDate: utc(r.SubscribedDate),
		ExpiryDate:     utc(r.ExpiryDate),
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
