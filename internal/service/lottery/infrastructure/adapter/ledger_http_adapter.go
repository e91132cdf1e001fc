package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"lucky/internal/pkg/httpclient"
	"lucky/internal/service/lottery/domain/port"
)

// LedgerHTTPAdapter 是 port.AssetLedger 接口的 HTTP 实现
// 对接外部积分账本服务，扣费携带幂等键，账本侧保证不会二次扣减
type LedgerHTTPAdapter struct {
	client  *httpclient.Client
	baseURL string
}

// NewLedgerHTTPAdapter 创建一个新的账本适配器
func NewLedgerHTTPAdapter(client *httpclient.Client, baseURL string) *LedgerHTTPAdapter {
	return &LedgerHTTPAdapter{client: client, baseURL: baseURL}
}

type debitRequest struct {
	UserID         int64  `json:"user_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

type debitResponse struct {
	Code       string `json:"code"`
	NewBalance int64  `json:"new_balance"`
	Message    string `json:"message"`
}

type creditRequest struct {
	UserID int64  `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type creditResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Debit 扣减用户积分
func (a *LedgerHTTPAdapter) Debit(ctx context.Context, userID int64, amount int64, idempotencyKey string) (int64, error) {
	endpoint, err := url.JoinPath(a.baseURL, "/ledger/debit")
	if err != nil {
		return 0, err
	}
	var resp debitResponse
	if err := a.client.PostJSON(ctx, endpoint, debitRequest{
		UserID:         userID,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	}, &resp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %v", port.ErrLedgerTimeout, err)
		}
		return 0, err
	}
	switch resp.Code {
	case "OK":
		return resp.NewBalance, nil
	case "INSUFFICIENT_BALANCE":
		return 0, port.ErrInsufficientBalance
	default:
		return 0, fmt.Errorf("ledger debit rejected: code=%s message=%s", resp.Code, resp.Message)
	}
}

// Credit 给用户入账
func (a *LedgerHTTPAdapter) Credit(ctx context.Context, userID int64, amount int64, reason string) error {
	endpoint, err := url.JoinPath(a.baseURL, "/ledger/credit")
	if err != nil {
		return err
	}
	var resp creditResponse
	if err := a.client.PostJSON(ctx, endpoint, creditRequest{
		UserID: userID,
		Amount: amount,
		Reason: reason,
	}, &resp); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", port.ErrLedgerTimeout, err)
		}
		return err
	}
	if resp.Code != "OK" {
		return fmt.Errorf("ledger credit rejected: code=%s message=%s", resp.Code, resp.Message)
	}
	return nil
}
