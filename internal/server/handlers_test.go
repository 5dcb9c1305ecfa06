package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-facility/internal/metrics"
	"parking-facility/internal/parking"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	Meta    *Meta           `json:"meta"`
}

type testAPI struct {
	t       *testing.T
	clock   *testClock
	handler http.Handler
}

func newTestAPI(t *testing.T, perSize map[parking.SpotSize]int) *testAPI {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}

	f, err := parking.NewFacility(parking.FacilityConfig{
		ID:           "PLT_HTTP",
		Floors:       1,
		SpotsPerSize:   perSize,
		Clock:          clock.Now,
		MaxReservation: time.Hour,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(metrics.NewOccupancyCollector(f, f.ID())))

	h := NewHandler(f, HandlerConfig{ServiceName: "parking-test", Clock: clock.Now})
	return &testAPI{t: t, clock: clock, handler: NewRouter(h, reg)}
}

func (a *testAPI) do(method, path string, body any) (int, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 1})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "PLT_HTTP", health.Facility)
}

func TestEnterAndExit(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 1, parking.SizeOversized: 1})

	code, env := api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "ka01hh1234", Type: "car", Color: "white", Doors: 4})
	require.Equal(t, http.StatusCreated, code, env.Error)
	ticket := decodeData[TicketResponse](t, env)
	assert.Equal(t, "TKT-PLT_HTTP-000001", ticket.Number)
	assert.Equal(t, "S-1-001", ticket.SpotID)
	assert.Equal(t, "KA01HH1234", ticket.Vehicle.License)
	assert.Equal(t, "open", ticket.Status)
	require.NotNil(t, env.Meta)
	assert.NotEmpty(t, env.Meta.RequestID)

	api.clock.Advance(61 * time.Minute)

	code, env = api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: ticket.Number})
	require.Equal(t, http.StatusOK, code, env.Error)
	charge := decodeData[ChargeResponse](t, env)
	assert.Equal(t, int64(2), charge.Hours)
	assert.Equal(t, "10.00", charge.Amount)

	code, _ = api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: ticket.Number})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: "TKT-PLT_HTTP-999999"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEnterErrors(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeCompact: 1})

	cases := []struct {
		name string
		body any
		want int
	}{
		{"malformed body", "{not json", http.StatusBadRequest},
		{"missing type", EnterRequest{License: "ABC1234"}, http.StatusBadRequest},
		{"unknown type", EnterRequest{License: "ABC1234", Type: "bus"}, http.StatusBadRequest},
		{"bad license", EnterRequest{License: "AB-12-CD", Type: "motorcycle"}, http.StatusBadRequest},
		{"no fitting spot", EnterRequest{License: "ABC1234", Type: "car"}, http.StatusConflict},
	}

	for _, c := range cases {
		code, env := api.do(http.MethodPost, "/api/parking/enter", c.body)
		assert.Equal(t, c.want, code, c.name)
		assert.False(t, env.Success, c.name)
		assert.NotEmpty(t, env.Error, c.name)
	}
}

func TestExitWithPayment(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 1})

	_, env := api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "ABC1234", Type: "car"})
	ticket := decodeData[TicketResponse](t, env)

	api.clock.Advance(time.Hour)

	code, env := api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: ticket.Number, PaymentMethod: "digital_wallet"})
	require.Equal(t, http.StatusOK, code, env.Error)
	receipt := decodeData[ReceiptResponse](t, env)
	assert.Equal(t, "5.00", receipt.Charge.Amount)
	assert.Equal(t, "0.50", receipt.Payment.Fee)
	assert.Equal(t, "5.50", receipt.Payment.Total)
	assert.Regexp(t, `^DW_[0-9A-F]{8}$`, receipt.Payment.TransactionID)
	assert.True(t, receipt.Ticket.Paid)

	code, _ = api.do(http.MethodPost, "/api/parking/tickets/"+ticket.Number+"/pay", PayRequest{Method: "cash"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: ticket.Number, PaymentMethod: "barter"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDeclinedPaymentThenPay(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeOversized: 1})

	_, env := api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "TRK0001", Type: "truck", CargoTons: 20, Axles: 4})
	ticket := decodeData[TicketResponse](t, env)

	api.clock.Advance(600 * time.Hour)

	code, env := api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: ticket.Number, PaymentMethod: "digital_wallet"})
	require.Equal(t, http.StatusPaymentRequired, code)
	receipt := decodeData[ReceiptResponse](t, env)
	assert.Equal(t, "failed", receipt.Payment.Status)
	assert.False(t, receipt.Ticket.Paid)

	code, env = api.do(http.MethodPost, "/api/parking/tickets/"+ticket.Number+"/pay", PayRequest{Method: "credit_card"})
	require.Equal(t, http.StatusOK, code, env.Error)
	receipt = decodeData[ReceiptResponse](t, env)
	assert.Equal(t, "completed", receipt.Payment.Status)

	code, env = api.do(http.MethodGet, "/api/parking/tickets/"+ticket.Number, nil)
	require.Equal(t, http.StatusOK, code)
	stored := decodeData[TicketResponse](t, env)
	assert.True(t, stored.Paid)
	assert.Equal(t, "closed", stored.Status)
}

func TestStatusSpotsAndReserve(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeCompact: 1, parking.SizeStandard: 2})

	code, env := api.do(http.MethodPost, "/api/parking/reserve", ReserveRequest{SpotID: "s-1-001", Minutes: 30})
	require.Equal(t, http.StatusOK, code, env.Error)
	spot := decodeData[SpotResponse](t, env)
	assert.Equal(t, "reserved", spot.Status)
	require.NotNil(t, spot.ReservedUntil)

	code, _ = api.do(http.MethodPost, "/api/parking/reserve", ReserveRequest{SpotID: "S-1-001", Minutes: 30})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = api.do(http.MethodPost, "/api/parking/reserve", ReserveRequest{SpotID: "S-7-001", Minutes: 30})
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = api.do(http.MethodPost, "/api/parking/reserve", ReserveRequest{SpotID: "S-1-002", Minutes: 90})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = api.do(http.MethodPost, "/api/parking/reserve", ReserveRequest{SpotID: "S-1-002"})
	assert.Equal(t, http.StatusBadRequest, code)

	_, env = api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "ABC1234", Type: "car"})
	assert.Equal(t, "S-1-002", decodeData[TicketResponse](t, env).SpotID)

	code, env = api.do(http.MethodGet, "/api/parking/status", nil)
	require.Equal(t, http.StatusOK, code)
	status := decodeData[StatusResponse](t, env)
	assert.Equal(t, 3, status.TotalSpots)
	assert.Equal(t, 1, status.Occupied)
	assert.Equal(t, 1, status.Reserved)
	assert.Equal(t, 1, status.AvailableBySize["compact"])
	assert.Equal(t, 0, status.AvailableBySize["standard"])
	assert.InDelta(t, 33.33, status.OccupancyRate, 0.01)

	code, env = api.do(http.MethodGet, "/api/parking/spots", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[[]SpotResponse](t, env), 3)

	_, env = api.do(http.MethodGet, "/api/parking/spots/available?type=motorcycle", nil)
	available := decodeData[[]SpotResponse](t, env)
	require.Len(t, available, 1)
	assert.Equal(t, "C-1-001", available[0].ID)

	_, env = api.do(http.MethodGet, "/api/parking/spots/available?size=standard", nil)
	assert.Empty(t, decodeData[[]SpotResponse](t, env))

	code, _ = api.do(http.MethodGet, "/api/parking/spots/available?size=huge", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTicketsQuoteAndLookup(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 2})

	_, env := api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "AAA1111", Type: "car"})
	first := decodeData[TicketResponse](t, env)
	_, _ = api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "BBB2222", Type: "car"})

	api.clock.Advance(150 * time.Minute)

	code, env := api.do(http.MethodGet, "/api/parking/tickets/"+first.Number+"/quote", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "15.00", decodeData[ChargeResponse](t, env).Amount)

	code, env = api.do(http.MethodGet, "/api/parking/vehicles/aaa1111", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, first.Number, decodeData[TicketResponse](t, env).Number)

	code, _ = api.do(http.MethodGet, "/api/parking/vehicles/ZZZ9999", nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, _ = api.do(http.MethodPost, "/api/parking/exit", ExitRequest{Ticket: first.Number})

	_, env = api.do(http.MethodGet, "/api/parking/tickets", nil)
	assert.Len(t, decodeData[[]TicketResponse](t, env), 1)

	_, env = api.do(http.MethodGet, "/api/parking/tickets?state=all", nil)
	assert.Len(t, decodeData[[]TicketResponse](t, env), 2)

	code, _ = api.do(http.MethodGet, "/api/parking/tickets?state=lost", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodGet, "/api/parking/tickets/TKT-NOPE/quote", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPricing(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 1})

	code, env := api.do(http.MethodGet, "/api/parking/pricing", nil)
	require.Equal(t, http.StatusOK, code)

	pricing := decodeData[PricingResponse](t, env)
	assert.Equal(t, "5.00", pricing.Rates[parking.KindCar].Hourly)
	assert.Equal(t, "1.00", pricing.Rates[parking.KindMotorcycle].Minimum)
	assert.Len(t, pricing.Discounts, 3)
	assert.Equal(t, "UTC", pricing.Timezone)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 1})
	_, _ = api.do(http.MethodPost, "/api/parking/enter", EnterRequest{License: "ABC1234", Type: "car"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `parking_spots_occupied{facility="PLT_HTTP"} 1`)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		parking.ErrInvalidVehicle:       http.StatusBadRequest,
		parking.ErrNoSpotAvailable:      http.StatusConflict,
		parking.ErrSpotUnavailable:      http.StatusConflict,
		parking.ErrAlreadyPaid:          http.StatusConflict,
		parking.ErrTicketNotFound:       http.StatusNotFound,
		parking.ErrSpotNotFound:         http.StatusNotFound,
		parking.ErrInvalidPaymentMethod: http.StatusBadRequest,
		assert.AnError:                  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, map[parking.SpotSize]int{parking.SizeStandard: 1})

	req := httptest.NewRequest(http.MethodOptions, "/api/parking/enter", nil)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
