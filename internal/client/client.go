package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// APIError - отказ сервера с кодом причины.
type APIError struct {
	Status  int
	Reason  string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api request status %d: %s: %s", e.Status, e.Reason, e.Message)
}

type Profile struct {
	Customer struct {
		ID           int64  `json:"id"`
		FullName     string `json:"full_name"`
		DocNumber    string `json:"doc_number"`
		MemberNumber string `json:"member_number"`
	} `json:"customer"`
	Balance int64 `json:"balance"`
}

type AccreditRequest struct {
	DocNumber     string              `json:"doc_number"`
	ProductCode   string              `json:"product_code"`
	Liters        decimal.NullDecimal `json:"liters"`
	Amount        decimal.NullDecimal `json:"amount"`
	UnitPrice     decimal.NullDecimal `json:"unit_price"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	TicketNumber  string              `json:"ticket_number,omitempty"`
	PaidWithApp   bool                `json:"paid_with_app"`
	Note          string              `json:"note,omitempty"`
}

type Receipt struct {
	NewBalance  int64 `json:"new_balance"`
	Transaction struct {
		ID          int64     `json:"id"`
		Kind        string    `json:"kind"`
		Points      int64     `json:"points"`
		ProductCode string    `json:"product_code"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"transaction"`
}

// Client - клиент HTTP API для операторских команд.
type Client interface {
	Login(ctx context.Context, login, password string) error
	Profile(ctx context.Context, docNumber string) (Profile, error)
	Accredit(ctx context.Context, req AccreditRequest) (Receipt, error)
}

type client struct {
	http  *resty.Client
	token string
}

func NewClient(serviceAddr, token string) Client {
	return &client{
		http:  resty.New().SetBaseURL(serviceAddr).SetTimeout(15 * time.Second),
		token: token,
	}
}

func (client *client) request(ctx context.Context) *resty.Request {
	req := client.http.R().SetContext(ctx)
	if client.token != "" {
		req.SetAuthToken(client.token)
	}
	return req
}

func (client *client) Login(ctx context.Context, login, password string) error {
	resp, err := client.request(ctx).
		SetBody(map[string]string{"login": login, "password": password}).
		Post("/api/auth/login")
	if err != nil {
		return err
	}

	var answer struct {
		Token string `json:"token"`
	}
	if err = decode(resp, http.StatusOK, &answer); err != nil {
		return err
	}
	client.token = answer.Token
	return nil
}

func (client *client) Profile(ctx context.Context, docNumber string) (Profile, error) {
	resp, err := client.request(ctx).Get("/api/admin/customers/" + url.PathEscape(docNumber))
	if err != nil {
		return Profile{}, err
	}

	var profile Profile
	err = decode(resp, http.StatusOK, &profile)
	return profile, err
}

func (client *client) Accredit(ctx context.Context, req AccreditRequest) (Receipt, error) {
	resp, err := client.request(ctx).SetBody(req).Post("/api/admin/accredit-by-dni")
	if err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	err = decode(resp, http.StatusCreated, &receipt)
	return receipt, err
}

func decode(resp *resty.Response, want int, v any) error {
	if resp.StatusCode() != want {
		apiErr := &APIError{Status: resp.StatusCode()}
		if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Reason == "" {
			apiErr.Reason = "unexpected_status"
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return errors.Join(fmt.Errorf("decode %s response", resp.Request.URL), err)
	}
	return nil
}
