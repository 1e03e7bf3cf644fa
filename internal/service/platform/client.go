package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/service/ratelimit"
	xhttp "SignalDesk/pkg/http"
	"SignalDesk/pkg/util"
)

// Client implements PlatformAPI against the custodial platform's REST API.
type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
}

// New creates a platform API client.
func New(baseURL, apiKey string, timeout time.Duration, m drepo.Metrics) drepo.PlatformAPI {
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: ratelimit.New(),
		metrics: m,
	}
}

// Wire shapes. Optional fields stay pointers so absent and zero are distinct.

type signalDTO struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Kind             string  `json:"kind"`
	CommitPercent    float64 `json:"commit_percent"`
	Slot             string  `json:"slot"`
	TimeRemainingSec int64   `json:"time_remaining_seconds"`
}

type limitsDTO struct {
	DailyRemaining int `json:"daily_remaining"`
	MaxConcurrent  int `json:"max_concurrent"`
}

type catalogDTO struct {
	Signals []signalDTO `json:"signals"`
	Limits  limitsDTO   `json:"limits"`
}

type confirmDTO struct {
	UsageID         string  `json:"usage_id"`
	SignalID        string  `json:"signal_id"`
	CommittedAmount float64 `json:"committed_amount"`
	SettlesAt       string  `json:"settles_at"`
}

type usageDTO struct {
	UsageID              string   `json:"usage_id"`
	SignalID             string   `json:"signal_id"`
	Outcome              string   `json:"outcome"`
	CommittedAmount      float64  `json:"committed_amount"`
	ConfirmedAt          string   `json:"confirmed_at"`
	SettlesAt            string   `json:"settles_at"`
	SettledAt            string   `json:"settled_at"`
	ResultAmount         *float64 `json:"result_amount"`
	ProfitPercent        *float64 `json:"profit_percent"`
	MovementBalanceAfter *float64 `json:"movement_balance_after"`
}

type historyDTO struct {
	Items []usageDTO `json:"items"`
	Total int64      `json:"total"`
}

type walletDTO struct {
	MainBalance     float64 `json:"main_balance"`
	MovementBalance float64 `json:"movement_balance"`
	TotalBalance    float64 `json:"total_balance"`
	TransferLock    *struct {
		IsLocked   bool   `json:"is_locked"`
		LockEndsAt string `json:"lock_ends_at"`
	} `json:"transfer_lock"`
}

func (c *Client) ListEligibleSignals(ctx context.Context) (models.Catalog, error) {
	var dto catalogDTO
	if err := c.call(ctx, "signals", xhttp.MethodGet, "/v1/signals", nil, nil, &dto); err != nil {
		return models.Catalog{}, err
	}
	now := time.Now()
	out := models.Catalog{FetchedAt: now, Limits: models.SignalLimits{
		DailyRemaining: dto.Limits.DailyRemaining,
		MaxConcurrent:  dto.Limits.MaxConcurrent,
	}}
	for _, s := range dto.Signals {
		out.Signals = append(out.Signals, models.Signal{
			ID:            s.ID,
			Title:         s.Title,
			Kind:          models.SignalKind(s.Kind),
			CommitPercent: s.CommitPercent,
			Slot:          s.Slot,
			TimeRemaining: time.Duration(s.TimeRemainingSec) * time.Second,
			FetchedAt:     now,
		})
	}
	return out, nil
}

func (c *Client) ConfirmSignal(ctx context.Context, signalID string) (models.Commitment, error) {
	var dto confirmDTO
	path := "/v1/signals/" + signalID + "/confirm"
	if err := c.call(ctx, "confirm", xhttp.MethodPost, path, nil, map[string]string{"signal_id": signalID}, &dto); err != nil {
		return models.Commitment{}, err
	}
	settlesAt, ok := util.ParseTime(dto.SettlesAt)
	if !ok {
		return models.Commitment{}, fmt.Errorf("confirm %s: bad settles_at %q", signalID, dto.SettlesAt)
	}
	sid := dto.SignalID
	if sid == "" {
		sid = signalID
	}
	return models.Commitment{
		ID:              dto.UsageID,
		SignalID:        sid,
		CommittedAmount: dto.CommittedAmount,
		ConfirmedAt:     time.Now(),
		SettlesAt:       settlesAt,
		Outcome:         models.OutcomePending,
	}, nil
}

func (c *Client) GetCommitmentStatus(ctx context.Context, usageID string) (models.Commitment, error) {
	var dto usageDTO
	if err := c.call(ctx, "status", xhttp.MethodGet, "/v1/usages/"+usageID, nil, nil, &dto); err != nil {
		return models.Commitment{}, err
	}
	if dto.UsageID == "" {
		dto.UsageID = usageID
	}
	return toCommitment(dto)
}

func (c *Client) ListHistory(ctx context.Context, page, pageSize int) (models.HistoryPage, error) {
	var dto historyDTO
	params := map[string][]string{
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
	}
	if err := c.call(ctx, "history", xhttp.MethodGet, "/v1/usages", params, nil, &dto); err != nil {
		return models.HistoryPage{}, err
	}
	out := models.HistoryPage{Total: dto.Total}
	for _, u := range dto.Items {
		cm, err := toCommitment(u)
		if err != nil {
			return models.HistoryPage{}, err
		}
		out.Items = append(out.Items, cm)
	}
	return out, nil
}

func (c *Client) GetWalletSnapshot(ctx context.Context) (models.WalletSnapshot, error) {
	var dto walletDTO
	if err := c.call(ctx, "wallet", xhttp.MethodGet, "/v1/wallet", nil, nil, &dto); err != nil {
		return models.WalletSnapshot{}, err
	}
	snap := models.WalletSnapshot{
		MainBalance:     dto.MainBalance,
		MovementBalance: dto.MovementBalance,
		TotalBalance:    dto.TotalBalance,
		FetchedAt:       time.Now(),
	}
	if dto.TransferLock != nil {
		snap.TransferLock = &models.TransferLock{
			IsLocked:   dto.TransferLock.IsLocked,
			LockEndsAt: util.ParseTimeDefault(dto.TransferLock.LockEndsAt, time.Time{}),
		}
	}
	return snap, nil
}

func toCommitment(u usageDTO) (models.Commitment, error) {
	outcome, err := models.ParseOutcome(u.Outcome)
	if err != nil {
		return models.Commitment{}, fmt.Errorf("usage %s: %w", u.UsageID, err)
	}
	cm := models.Commitment{
		ID:              u.UsageID,
		SignalID:        u.SignalID,
		CommittedAmount: u.CommittedAmount,
		ConfirmedAt:     util.ParseTimeDefault(u.ConfirmedAt, time.Time{}),
		SettlesAt:       util.ParseTimeDefault(u.SettlesAt, time.Time{}),
		SettledAt:       util.ParseTimeDefault(u.SettledAt, time.Time{}),
		Outcome:         outcome,
	}
	if u.ResultAmount != nil {
		cm.ResultAmount = *u.ResultAmount
	}
	if u.ProfitPercent != nil {
		cm.ProfitPercent = *u.ProfitPercent
	}
	if u.MovementBalanceAfter != nil {
		cm.MovementBalanceAfter = *u.MovementBalanceAfter
	}
	return cm, nil
}

// call performs one platform request. A local token-bucket miss and an
// upstream 429 both surface as models.ErrRateLimited so callers apply the
// same backoff either way.
func (c *Client) call(ctx context.Context, op, method, path string, params map[string][]string, body interface{}, dest interface{}) error {
	if !c.limiter.Allow("platform:"+op, 5, 1) {
		return models.ErrRateLimited
	}

	start := time.Now()
	resp, err := c.http.SendRequest(ctx, &xhttp.RequestOptions{
		Method:      method,
		URL:         c.baseURL + path,
		Headers:     map[string]string{"Authorization": "Bearer " + c.apiKey},
		QueryParams: params,
		Body:        body,
	})
	c.metrics.RecordLatency("platform_"+op, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("platform %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return models.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("platform %s: unexpected status %d: %s", op, resp.StatusCode, b)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("platform %s: decode: %w", op, err)
	}
	return nil
}
