package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/marketplace"
	"github.com/usedplus/core/internal/middleware"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/service"
)

func newTestDeps() (*Deps, *hostapi.FakeHost) {
	host := hostapi.NewFakeHost()
	host.AddFarm(1, money.Amount(1_000_000_00))
	host.BindConnection(connIDFor(domain.FarmId(1)), 1)

	bureau := credit.NewBureau(func(id int64) bool { return host.FarmExists(domain.FarmId(id)) })
	rel := reliability.New(42, reliability.DefaultConfig())
	ledger := finance.New()
	market := marketplace.New(42)
	svc := service.New(42, service.NewInventory())

	return &Deps{
		Dispatcher: events.New(host, bureau, rel, ledger, market, svc),
		Logger:     slog.Default(),
		Validate:   validator.New(),
	}, host
}

func newAuthedRequest(t *testing.T, farmID domain.FarmId, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req = req.WithContext(middleware.WithFarmID(req.Context(), farmID))
	return req
}

func TestFinanceVehicle_HappyPath(t *testing.T) {
	deps, _ := newTestDeps()
	req := newAuthedRequest(t, 1, financeVehicleRequest{
		VehicleID:  domain.VehicleId(1),
		BasePrice:  money.Amount(60_000_00),
		TermMonths: 60,
	})
	rec := httptest.NewRecorder()

	deps.FinanceVehicle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp events.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "deal.created", resp.MessageKey)
}

func TestFinanceVehicle_ValidationRejectsMissingVehicle(t *testing.T) {
	deps, _ := newTestDeps()
	req := newAuthedRequest(t, 1, financeVehicleRequest{
		BasePrice:  money.Amount(60_000_00),
		TermMonths: 60,
	})
	rec := httptest.NewRecorder()

	deps.FinanceVehicle(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinanceVehicle_Unauthenticated(t *testing.T) {
	deps, _ := newTestDeps()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	deps.FinanceVehicle(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFinanceVehicle_RejectsUnboundConnection(t *testing.T) {
	deps, _ := newTestDeps()
	req := newAuthedRequest(t, 2, financeVehicleRequest{
		VehicleID:  domain.VehicleId(1),
		BasePrice:  money.Amount(60_000_00),
		TermMonths: 60,
	})
	rec := httptest.NewRecorder()

	deps.FinanceVehicle(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp events.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestPurchaseLandCash_HappyPath(t *testing.T) {
	deps, host := newTestDeps()
	host.AddLand(hostapi.Land{ID: 1, Acres: 40, SoilQuality: 0.8})
	before := host.FarmMoney(1)

	req := newAuthedRequest(t, 1, purchaseLandCashRequest{
		LandID: domain.LandId(1),
		Price:  money.Amount(5_000_00),
	})
	rec := httptest.NewRecorder()

	deps.PurchaseLandCash(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, before-money.Amount(5_000_00), host.FarmMoney(1))
}

func TestRequestUsedItem_InsufficientFundsReturnsConflict(t *testing.T) {
	deps, host := newTestDeps()
	require.NoError(t, host.AddMoney(1, -host.FarmMoney(1), "test.drain"))

	req := newAuthedRequest(t, 1, requestUsedItemRequest{
		Tier:      marketplace.Regional,
		Quality:   marketplace.QualityGood,
		BasePrice: money.Amount(50_000_00),
	})
	rec := httptest.NewRecorder()

	deps.RequestUsedItem(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp events.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error.insufficient_funds", resp.MessageKey)
}
