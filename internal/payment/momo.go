package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dukerupert/mercato/internal/domain"
)

// DefaultMomoEndpoint is the MoMo sandbox create endpoint.
const DefaultMomoEndpoint = "https://test-payment.momo.vn/v2/gateway/api/create"

// MomoConfig configures the MoMo gateway.
type MomoConfig struct {
	PartnerCode string
	AccessKey   string
	SecretKey   string
	Endpoint    string

	ClientURL string
	ServerURL string
	Timeout   time.Duration
}

// Momo is the MoMo-style gateway. Create requests are JSON; IPN callbacks are
// JSON bodies signed with the same secret key.
type Momo struct {
	cfg    MomoConfig
	client *httpClient
	now    func() time.Time
}

var _ Gateway = (*Momo)(nil)

// NewMomo creates a MoMo gateway.
func NewMomo(cfg MomoConfig) *Momo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultMomoEndpoint
	}
	return &Momo{
		cfg:    cfg,
		client: newHTTPClient(string(domain.PaymentMomo), cfg.Timeout),
		now:    time.Now,
	}
}

func (m *Momo) Method() domain.PaymentMethod {
	return domain.PaymentMomo
}

// momoCreateRequest is the JSON body of a create request.
type momoCreateRequest struct {
	PartnerCode  string `json:"partnerCode"`
	PartnerName  string `json:"partnerName"`
	StoreID      string `json:"storeId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderID      string `json:"orderId"`
	OrderInfo    string `json:"orderInfo"`
	RedirectURL  string `json:"redirectUrl"`
	IpnURL       string `json:"ipnUrl"`
	Lang         string `json:"lang"`
	RequestType  string `json:"requestType"`
	AutoCapture  bool   `json:"autoCapture"`
	ExtraData    string `json:"extraData"`
	OrderGroupID string `json:"orderGroupId"`
	Signature    string `json:"signature"`
}

func (m *Momo) buildRequest(params PaymentParams) momoCreateRequest {
	orderID := m.cfg.PartnerCode + strconv.FormatInt(m.now().UnixMilli(), 10)
	req := momoCreateRequest{
		PartnerCode:  m.cfg.PartnerCode,
		PartnerName:  "Test",
		StoreID:      "MomoTestStore",
		RequestID:    orderID,
		Amount:       params.TotalPrice,
		OrderID:      orderID,
		OrderInfo:    "pay with MoMo",
		RedirectURL:  m.cfg.ClientURL + ordersReturnPath,
		IpnURL:       callbackURL(m.cfg.ServerURL, MomoCallbackPath, params.UserID, params.CartID),
		Lang:         "vi",
		RequestType:  "payWithMethod",
		AutoCapture:  true,
		ExtraData:    "",
		OrderGroupID: "",
	}

	raw := "accessKey=" + m.cfg.AccessKey +
		"&amount=" + strconv.FormatInt(req.Amount, 10) +
		"&extraData=" + req.ExtraData +
		"&ipnUrl=" + req.IpnURL +
		"&orderId=" + req.OrderID +
		"&orderInfo=" + req.OrderInfo +
		"&partnerCode=" + req.PartnerCode +
		"&redirectUrl=" + req.RedirectURL +
		"&requestId=" + req.RequestID +
		"&requestType=" + req.RequestType
	req.Signature = sign(m.cfg.SecretKey, raw)
	return req
}

// CreatePayment implements Gateway. resultCode 0 is success.
func (m *Momo) CreatePayment(ctx context.Context, params PaymentParams) (*PaymentRequest, error) {
	const op = "payment.momo.CreatePayment"

	body := m.buildRequest(params)
	resp, err := m.client.do(ctx, op, func(r *resty.Request) (*resty.Response, error) {
		return r.SetHeader("Content-Type", "application/json").SetBody(body).Post(m.cfg.Endpoint)
	})
	if err != nil {
		return nil, err
	}

	var detail map[string]any
	if err := json.Unmarshal(resp.Body(), &detail); err != nil {
		return nil, domain.Gateway(err, op, "Create momo payment request failed")
	}

	if code, ok := intField(detail, "resultCode"); !ok || code != 0 {
		msg, _ := detail["message"].(string)
		return nil, domain.Gateway(&ProviderError{Provider: "momo", Code: code, Message: msg}, op, "Create momo payment request failed")
	}

	return &PaymentRequest{
		Method: domain.PaymentMomo,
		Ref:    body.OrderID,
		Detail: detail,
	}, nil
}

// momoIPN is the instant payment notification body.
type momoIPN struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func (m *Momo) ipnSignatureData(ipn momoIPN) string {
	return fmt.Sprintf("accessKey=%s&amount=%d&extraData=%s&message=%s&orderId=%s&orderInfo=%s"+
		"&orderType=%s&partnerCode=%s&payType=%s&requestId=%s&responseTime=%d&resultCode=%d&transId=%d",
		m.cfg.AccessKey, ipn.Amount, ipn.ExtraData, ipn.Message, ipn.OrderID, ipn.OrderInfo,
		ipn.OrderType, ipn.PartnerCode, ipn.PayType, ipn.RequestID, ipn.ResponseTime, ipn.ResultCode, ipn.TransID)
}

// VerifyCallback implements Gateway. A verified IPN with a non-zero
// resultCode is returned with Succeeded false.
func (m *Momo) VerifyCallback(payload CallbackPayload) (*Callback, error) {
	const op = "payment.momo.VerifyCallback"

	var ipn momoIPN
	if err := json.Unmarshal(payload.Body, &ipn); err != nil {
		return nil, malformed(op, err)
	}
	if ipn.Signature == "" || !verify(m.cfg.SecretKey, m.ipnSignatureData(ipn), ipn.Signature) {
		return nil, ErrInvalidSignature
	}
	if ipn.PartnerCode != m.cfg.PartnerCode {
		return nil, ErrInvalidSignature
	}

	cb := &Callback{
		Method:     domain.PaymentMomo,
		PaymentRef: ipn.OrderID,
		UserID:     payload.Query.Get("userId"),
		CartID:     payload.Query.Get("cartId"),
		Amount:     ipn.Amount,
		Succeeded:  ipn.ResultCode == 0,
		ResultCode: ipn.ResultCode,
		Message:    ipn.Message,
	}
	if cb.PaymentRef == "" || cb.UserID == "" || cb.CartID == "" {
		return nil, malformed(op, fmt.Errorf("missing orderId, userId or cartId"))
	}
	return cb, nil
}
