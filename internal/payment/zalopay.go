package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dukerupert/mercato/internal/domain"
)

// vietnam is UTC+7 without daylight saving; app_trans_id dates use it.
var vietnam = time.FixedZone("ICT", 7*60*60)

// ZaloPayConfig configures the ZaloPay gateway.
type ZaloPayConfig struct {
	AppID    string
	Key1     string // signs create requests
	Key2     string // verifies callbacks
	Endpoint string

	ClientURL string // storefront base, for the post-payment redirect
	ServerURL string // public API base, for the callback
	Timeout   time.Duration
}

// ZaloPay is the ZaloPay-style gateway. Create requests are sent as query
// parameters; callbacks carry a JSON data string and its mac.
type ZaloPay struct {
	cfg    ZaloPayConfig
	client *httpClient
	now    func() time.Time
	transN func() int
}

var _ Gateway = (*ZaloPay)(nil)

// NewZaloPay creates a ZaloPay gateway.
func NewZaloPay(cfg ZaloPayConfig) *ZaloPay {
	return &ZaloPay{
		cfg:    cfg,
		client: newHTTPClient(string(domain.PaymentZalo), cfg.Timeout),
		now:    time.Now,
		transN: func() int { return rand.IntN(1_000_000) },
	}
}

func (z *ZaloPay) Method() domain.PaymentMethod {
	return domain.PaymentZalo
}

// zaloOrder is the signed create request.
type zaloOrder struct {
	AppID       string
	AppTransID  string
	AppUser     string
	AppTime     int64
	Item        string
	EmbedData   string
	Amount      int64
	Description string
	BankCode    string
	CallbackURL string
	Mac         string
}

func (o zaloOrder) params() map[string]string {
	return map[string]string{
		"app_id":       o.AppID,
		"app_trans_id": o.AppTransID,
		"app_user":     o.AppUser,
		"app_time":     strconv.FormatInt(o.AppTime, 10),
		"item":         o.Item,
		"embed_data":   o.EmbedData,
		"amount":       strconv.FormatInt(o.Amount, 10),
		"description":  o.Description,
		"bank_code":    o.BankCode,
		"callback_url": o.CallbackURL,
		"mac":          o.Mac,
	}
}

// buildOrder assembles and signs a create request.
func (z *ZaloPay) buildOrder(params PaymentParams) (zaloOrder, error) {
	embed, err := json.Marshal(map[string]string{"redirecturl": z.cfg.ClientURL + ordersReturnPath})
	if err != nil {
		return zaloOrder{}, err
	}

	now := z.now()
	transID := z.transN()
	order := zaloOrder{
		AppID:       z.cfg.AppID,
		AppTransID:  fmt.Sprintf("%s_%d", now.In(vietnam).Format("060102"), transID),
		AppUser:     "user123",
		AppTime:     now.UnixMilli(),
		Item:        "[{}]",
		EmbedData:   string(embed),
		Amount:      params.TotalPrice,
		Description: fmt.Sprintf("Thanh toán đơn hàng #%d", transID),
		BankCode:    "",
		CallbackURL: callbackURL(z.cfg.ServerURL, ZaloCallbackPath, params.UserID, params.CartID),
	}

	data := fmt.Sprintf("%s|%s|%s|%d|%d|%s|%s",
		order.AppID, order.AppTransID, order.AppUser, order.Amount, order.AppTime, order.EmbedData, order.Item)
	order.Mac = sign(z.cfg.Key1, data)
	return order, nil
}

// CreatePayment implements Gateway. return_code 1 is success.
func (z *ZaloPay) CreatePayment(ctx context.Context, params PaymentParams) (*PaymentRequest, error) {
	const op = "payment.zalopay.CreatePayment"

	order, err := z.buildOrder(params)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to build zalo order")
	}

	resp, err := z.client.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(order.params()).Post(z.cfg.Endpoint)
	})
	if err != nil {
		return nil, err
	}

	var detail map[string]any
	if err := json.Unmarshal(resp.Body(), &detail); err != nil {
		return nil, domain.Gateway(err, op, "Create zalo payment request failed")
	}

	if code, ok := intField(detail, "return_code"); !ok || code != 1 {
		msg, _ := detail["return_message"].(string)
		return nil, domain.Gateway(&ProviderError{Provider: "zalopay", Code: code, Message: msg}, op, "Create zalo payment request failed")
	}

	return &PaymentRequest{
		Method: domain.PaymentZalo,
		Ref:    order.AppTransID,
		Detail: detail,
	}, nil
}

// zaloCallbackBody is the POST body ZaloPay sends to callback_url.
type zaloCallbackBody struct {
	Data string `json:"data"`
	Mac  string `json:"mac"`
	Type int    `json:"type"`
}

// zaloCallbackData is the JSON document inside the data field.
type zaloCallbackData struct {
	AppID      json.Number `json:"app_id"`
	AppTransID string      `json:"app_trans_id"`
	AppTime    int64       `json:"app_time"`
	AppUser    string      `json:"app_user"`
	Amount     int64       `json:"amount"`
	ZpTransID  json.Number `json:"zp_trans_id"`
	ServerTime int64       `json:"server_time"`
	Channel    int         `json:"channel"`
}

// VerifyCallback implements Gateway. The mac is HMAC-SHA256(key2, data).
func (z *ZaloPay) VerifyCallback(payload CallbackPayload) (*Callback, error) {
	const op = "payment.zalopay.VerifyCallback"

	var body zaloCallbackBody
	if err := json.Unmarshal(payload.Body, &body); err != nil {
		return nil, malformed(op, err)
	}
	if body.Data == "" || body.Mac == "" {
		return nil, malformed(op, fmt.Errorf("missing data or mac"))
	}

	if !verify(z.cfg.Key2, body.Data, body.Mac) {
		return nil, ErrInvalidSignature
	}

	var data zaloCallbackData
	if err := json.Unmarshal([]byte(body.Data), &data); err != nil {
		return nil, malformed(op, err)
	}

	cb := &Callback{
		Method:     domain.PaymentZalo,
		PaymentRef: data.AppTransID,
		UserID:     payload.Query.Get("userId"),
		CartID:     payload.Query.Get("cartId"),
		Amount:     data.Amount,
		Succeeded:  true,
		ResultCode: 1,
	}
	if cb.PaymentRef == "" || cb.UserID == "" || cb.CartID == "" {
		return nil, malformed(op, fmt.Errorf("missing app_trans_id, userId or cartId"))
	}
	return cb, nil
}

// intField reads a JSON number from a decoded object.
func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}
