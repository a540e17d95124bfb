package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeResolver maps a fixed token to a fixed user for the auth middleware.
type fakeResolver struct {
	token string
	user  domain.User
}

func (f *fakeResolver) UserByToken(_ context.Context, token string) (domain.User, error) {
	if token != f.token {
		return domain.User{}, domain.ErrUnauthorized
	}
	return f.user, nil
}

type fakeAuthService struct {
	user       domain.User
	token      string
	err        error
	googleURL  string
	loggedOut  []string
	lastInputs []string
}

func (f *fakeAuthService) Register(_ context.Context, name, email, password string) (domain.User, string, error) {
	f.lastInputs = []string{name, email, password}
	return f.user, f.token, f.err
}

func (f *fakeAuthService) Login(_ context.Context, email, password string) (domain.User, string, error) {
	f.lastInputs = []string{email, password}
	return f.user, f.token, f.err
}

func (f *fakeAuthService) Logout(_ context.Context, userID string) error {
	f.loggedOut = append(f.loggedOut, userID)
	return f.err
}

func (f *fakeAuthService) GoogleAuthURL(state string) (string, error) {
	if f.googleURL == "" {
		return "", errors.New("not configured")
	}
	return f.googleURL + "?state=" + state, nil
}

func (f *fakeAuthService) GoogleCallback(_ context.Context, code string) (domain.User, string, error) {
	f.lastInputs = []string{code}
	return f.user, f.token, f.err
}

type fakeProductService struct {
	products map[string]domain.Product
	err      error
	created  *service.CreateProductInput
	updated  *service.UpdateProductInput
	deleted  []string
}

func (f *fakeProductService) Create(_ context.Context, in service.CreateProductInput) (domain.Product, error) {
	f.created = &in
	if f.err != nil {
		return domain.Product{}, f.err
	}
	return domain.Product{ID: "p1", Name: in.Name, Kind: in.Kind, Price: in.Price, StockQuantity: in.StockQuantity}, nil
}

func (f *fakeProductService) Update(_ context.Context, id string, in service.UpdateProductInput) (domain.Product, error) {
	f.updated = &in
	if f.err != nil {
		return domain.Product{}, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductService) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeProductService) GetByID(_ context.Context, id string) (domain.Product, error) {
	if f.err != nil {
		return domain.Product{}, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProductService) List(_ context.Context, _ domain.ListOpts) ([]domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

type fakeBidService struct {
	bid  domain.Bid
	bids []domain.Bid
	err  error

	placedProduct string
	placedUser    string
	placedAmount  int64
}

func (f *fakeBidService) Place(_ context.Context, productID, userID string, amount int64) (domain.Bid, error) {
	f.placedProduct, f.placedUser, f.placedAmount = productID, userID, amount
	return f.bid, f.err
}

func (f *fakeBidService) ListByProduct(_ context.Context, _ string, _ domain.ListOpts) ([]domain.Bid, error) {
	return f.bids, f.err
}

type fakeOrderService struct {
	order domain.Order
	err   error

	createdInput *service.CreateOrderInput
	retried      []string
}

func (f *fakeOrderService) Create(_ context.Context, in service.CreateOrderInput, _ domain.User) (domain.Order, error) {
	f.createdInput = &in
	return f.order, f.err
}

func (f *fakeOrderService) GetByID(_ context.Context, orderID, userID string) (domain.Order, error) {
	if f.err != nil {
		return domain.Order{}, f.err
	}
	if orderID != f.order.ID || userID != f.order.UserID {
		return domain.Order{}, domain.ErrNotFound
	}
	return f.order, nil
}

func (f *fakeOrderService) RetryPayment(_ context.Context, orderID string, _ domain.User) (domain.Order, error) {
	f.retried = append(f.retried, orderID)
	return f.order, f.err
}

type fakePaymentService struct {
	order domain.Order
	err   error

	confirmed [][2]string
	failed    [][2]string
}

func (f *fakePaymentService) ConfirmPayment(_ context.Context, orderID, paymentID string) (domain.Order, error) {
	f.confirmed = append(f.confirmed, [2]string{orderID, paymentID})
	return f.order, f.err
}

func (f *fakePaymentService) FailPayment(_ context.Context, orderID, paymentID string) (domain.Order, error) {
	f.failed = append(f.failed, [2]string{orderID, paymentID})
	return f.order, f.err
}

// newRecorder serves a prepared request and returns the raw recorder, for
// tests that inspect headers rather than a JSON body.
func newRecorder(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// doRequest serves one request through the mux and decodes the JSON body.
func doRequest(t *testing.T, h http.Handler, method, target, token, body string) (int, map[string]any) {
	t.Helper()
	return doRequestWithHeader(t, h, method, target, token, body, "", "")
}

func doRequestWithHeader(t *testing.T, h http.Handler, method, target, token, body, headerKey, headerVal string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if headerKey != "" && headerVal != "" {
		req.Header.Set(headerKey, headerVal)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec.Code, decoded
}
