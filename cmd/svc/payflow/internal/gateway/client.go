package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sprucehealth/payflow/libs/errors"
)

const defaultTimeout = time.Second * 30

// Client talks to the processor's JSON API. It implements Gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Gateway = &Client{}

// NewClient returns a client for the processor API at baseURL authenticating
// with apiKey.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

func (c *Client) query(ctx context.Context, method, path, apiKey string, params, res interface{}) error {
	var body *bytes.Buffer
	if params != nil {
		body = &bytes.Buffer{}
		if err := json.NewEncoder(body).Encode(params); err != nil {
			return errors.Trace(err)
		}
	}
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequest(method, c.baseURL+path, nil)
	}
	if err != nil {
		return errors.Trace(err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Trace(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := &Error{StatusCode: resp.StatusCode}
		var wrap struct {
			Error *Error `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wrap); err == nil && wrap.Error != nil {
			e.Code = wrap.Error.Code
			e.Message = wrap.Error.Message
		}
		if e.Message == "" {
			e.Message = resp.Status
		}
		if e.Code == "" && resp.StatusCode == http.StatusNotFound {
			e.Code = ErrCodeNotFound
		}
		return errors.Trace(e)
	}
	if res != nil {
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (c *Client) CreateSingleUseToken(ctx context.Context, card *CardFields) (string, error) {
	req := &struct {
		Number   string `json:"number"`
		ExpMonth int    `json:"exp_month"`
		ExpYear  int    `json:"exp_year"`
		CVV      string `json:"cvv"`
		Name     string `json:"name,omitempty"`
	}{
		Number:   card.Number,
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
		CVV:      card.CVV,
		Name:     card.Name,
	}
	var res struct {
		Token string `json:"token"`
	}
	if err := c.query(ctx, http.MethodPost, "/v1/tokens", c.apiKey, req, &res); err != nil {
		return "", errors.Trace(err)
	}
	return res.Token, nil
}

func (c *Client) Authorize(ctx context.Context, accountID string, params *AuthorizationParams) (*Authorization, error) {
	req := &struct {
		AccountID string          `json:"account_id"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		Token     string          `json:"token"`
		TokenKind TokenKind       `json:"token_kind"`
		OrderRef  string          `json:"order_ref,omitempty"`
		Billing   *BillingDetails `json:"billing,omitempty"`
	}{
		AccountID: accountID,
		Amount:    params.Amount,
		Currency:  params.Currency,
		Token:     params.Token,
		TokenKind: params.TokenKind,
		OrderRef:  params.OrderRef,
		Billing:   params.Billing,
	}
	var auth Authorization
	if err := c.query(ctx, http.MethodPost, "/v1/authorizations", c.apiKey, req, &auth); err != nil {
		return nil, errors.Trace(err)
	}
	return &auth, nil
}

func (c *Client) CreateCustomerProfile(ctx context.Context, params *ProfileParams) (*Profile, error) {
	req := &struct {
		UserRef     string `json:"user_ref"`
		Email       string `json:"email,omitempty"`
		Description string `json:"description,omitempty"`
	}{
		UserRef:     params.UserRef,
		Email:       params.Email,
		Description: params.Description,
	}
	var profile Profile
	if err := c.query(ctx, http.MethodPost, "/v1/profiles", c.apiKey, req, &profile); err != nil {
		return nil, errors.Trace(err)
	}
	return &profile, nil
}

func (c *Client) CustomerProfile(ctx context.Context, profileID string) (*Profile, error) {
	var profile Profile
	if err := c.query(ctx, http.MethodGet, "/v1/profiles/"+profileID, c.apiKey, nil, &profile); err != nil {
		return nil, errors.Trace(err)
	}
	return &profile, nil
}

func (c *Client) ConvertTokenToCard(ctx context.Context, profileID, singleUseToken string) (*Card, error) {
	req := &struct {
		Token string `json:"token"`
	}{
		Token: singleUseToken,
	}
	var card Card
	if err := c.query(ctx, http.MethodPost, "/v1/profiles/"+profileID+"/cards", c.apiKey, req, &card); err != nil {
		return nil, errors.Trace(err)
	}
	return &card, nil
}

func (c *Client) DeleteCardFromProfile(ctx context.Context, profileID, cardID string) error {
	return errors.Trace(c.query(ctx, http.MethodDelete, "/v1/profiles/"+profileID+"/cards/"+cardID, c.apiKey, nil, nil))
}

func (c *Client) TestConnection(ctx context.Context, creds *Credentials) (*ConnectionStatus, error) {
	apiKey := c.apiKey
	if creds != nil && creds.APIKey != "" {
		apiKey = creds.APIKey
	}
	var status ConnectionStatus
	if err := c.query(ctx, http.MethodGet, "/v1/ping", apiKey, nil, &status); err != nil {
		return nil, errors.Trace(err)
	}
	return &status, nil
}
