package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpcontext "github.com/dtroode/househelp-server/internal/api/http/context"
	"github.com/dtroode/househelp-server/internal/api/http/router"
	"github.com/dtroode/househelp-server/internal/directory"
	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/ledger/memory"
	"github.com/dtroode/househelp-server/internal/metrics"
	"github.com/dtroode/househelp-server/internal/queue"
	"github.com/dtroode/househelp-server/internal/service"
	memstore "github.com/dtroode/househelp-server/internal/storage/memory"
	"github.com/dtroode/househelp-server/internal/testutil"
	"github.com/dtroode/househelp-server/internal/token"
)

type brokenFunder struct{}

func (brokenFunder) Fund(context.Context, string) error { return ledger.ErrFunding }

type app struct {
	handler http.Handler
	ledger  *memory.Ledger
}

func newApp(t *testing.T, funder ledger.Funder, requireToken bool) *app {
	t.Helper()

	log := testutil.MakeNoopLogger()
	led := memory.New()
	if funder == nil {
		funder = led
	}
	blobs := memstore.New()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	q, err := queue.New(log, queue.WithObserver(m))
	require.NoError(t, err)
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	signer, err := keypair.Random()
	require.NoError(t, err)
	require.NoError(t, led.Fund(context.Background(), signer.Address()))

	platform := service.NewPlatform(led, q, signer, 0, log)
	anchor := service.NewAnchor(blobs, platform, nil, m, log)
	index := service.NewIndex(led, blobs, 4, m, log)
	tokens := service.NewTokenService(token.NewJWT("e2e-secret", 0), log)

	services := router.Services{
		Auth:         service.NewAuth(directory.New(log), platform, anchor, index, tokens, "", log),
		Catalog:      service.NewCatalog(led, platform, index, log),
		Jobs:         service.NewJobs(platform, anchor, index, log),
		Attestations: service.NewAttestations(anchor, service.NewCertificates(led, funder, m, log), log),
		Tokens:       tokens,
	}
	opts := router.Options{
		AllowedOrigins: []string{"http://localhost:8080"},
		RequireToken:   requireToken,
		Gatherer:       reg,
		Metrics:        m,
		ContextManager: httpcontext.NewManager(),
	}
	return &app{handler: router.New(services, opts, log).Register(), ledger: led}
}

func (a *app) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *app) register(t *testing.T, phone, role string) map[string]any {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name": "User " + phone, "phone": phone, "county": "Nairobi", "role": role, "pin": "1234",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)
}

func TestRouter_RegisterAndLogin(t *testing.T) {
	a := newApp(t, nil, false)

	user := a.register(t, "+254711111111", "worker")
	assert.NotEmpty(t, user["publicKey"])
	assert.NotEmpty(t, user["accessToken"])
	assert.NotContains(t, user, "pinHash")

	rec := a.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Dup", "phone": "+254711111111", "county": "Nairobi", "role": "worker", "pin": "1234",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"name": "Bad", "phone": "0711", "county": "Nairobi", "role": "worker", "pin": "1234",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec)["error"], "phone")

	rec = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"phone": "+254711111111", "pin": "1234"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user["publicKey"], decode[map[string]any](t, rec)["publicKey"])

	rec = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"phone": "+254711111111", "pin": "0000"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"phone": "+254711111111"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/employees", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	employees := decode[[]map[string]any](t, rec)
	require.Len(t, employees, 1)
	assert.NotContains(t, employees[0], "pinHash")

	rec = a.do(t, http.MethodGet, "/api/employees/"+user["publicKey"].(string), nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/employees/GUNKNOWN", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_JobPostedIsListedFirst(t *testing.T) {
	a := newApp(t, nil, false)

	job := func(title string) map[string]any {
		return map[string]any{
			"employerId": "emp-1", "employerName": "Achieng", "title": title, "workType": "cooking",
			"description": "Daily meals", "location": "Nakuru", "isLiveIn": false,
		}
	}

	rec := a.do(t, http.MethodPost, "/api/jobs", job("first"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	time.Sleep(5 * time.Millisecond)

	rec = a.do(t, http.MethodPost, "/api/jobs", job("second"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	posted := decode[map[string]any](t, rec)
	assert.Equal(t, "open", posted["status"])
	assert.NotEmpty(t, posted["stellarTx"])
	assert.NotEmpty(t, posted["id"])

	rec = a.do(t, http.MethodGet, "/api/jobs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[[]map[string]any](t, rec)
	require.Len(t, jobs, 2)
	assert.Equal(t, posted["id"], jobs[0]["id"])

	missing := job("x")
	delete(missing, "title")
	rec = a.do(t, http.MethodPost, "/api/jobs", missing, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AttestationWithFailingMint(t *testing.T) {
	a := newApp(t, brokenFunder{}, false)

	worker := a.register(t, "+254722222222", "worker")
	employer := a.register(t, "+254733333333", "employer")
	workerPK := worker["publicKey"].(string)

	rec := a.do(t, http.MethodPost, "/api/employers/"+employer["publicKey"].(string)+"/create-attestation", map[string]any{
		"employee_pk": workerPK, "workType": "gardening", "startDate": "2023-01-01", "endDate": "2023-06-30",
		"description": "Kept the garden",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	res := decode[map[string]any](t, rec)
	assert.Nil(t, res["nft"])
	assert.NotNil(t, res["attestation"])
	require.NotNil(t, res["workHistory"])
	assert.NotEmpty(t, res["message"])

	rec = a.do(t, http.MethodGet, "/api/employees/"+workerPK+"/work-history", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	for _, path := range []string{"/api/work-histories", "/api/work-history"} {
		rec = a.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		entries := decode[[]map[string]any](t, rec)
		require.Len(t, entries, 1, path)
		assert.Equal(t, workerPK, entries[0]["employee"], path)
	}

	rec = a.do(t, http.MethodGet, "/api/employees/"+workerPK+"/profile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[map[string]any](t, rec)
	assert.Equal(t, workerPK, profile["employee"].(map[string]any)["publicKey"])
	assert.Empty(t, profile["nfts"])

	rec = a.do(t, http.MethodGet, "/api/employers", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestRouter_NFTsAfterMint(t *testing.T) {
	a := newApp(t, nil, false)
	worker := a.register(t, "+254744444444", "worker")

	rec := a.do(t, http.MethodPost, "/api/employers/GEMPLOYER/create-attestation", map[string]any{
		"employee_pk": worker["publicKey"], "workType": "laundry", "startDate": "2022-01-01",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	nft := decode[map[string]any](t, rec)["nft"].(map[string]any)

	rec = a.do(t, http.MethodGet, "/api/employees/"+nft["distributorPublicKey"].(string)+"/nfts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	nfts := decode[[]map[string]string](t, rec)
	require.Len(t, nfts, 1)
	assert.Equal(t, "CHM", nfts[0]["asset_code"])
	assert.Equal(t, "1.0000000", nfts[0]["balance"])

	stranger, err := keypair.Random()
	require.NoError(t, err)
	rec = a.do(t, http.MethodGet, "/api/employees/"+stranger.Address()+"/nfts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRouter_RequireToken(t *testing.T) {
	a := newApp(t, brokenFunder{}, true)
	worker := a.register(t, "+254755555555", "worker")
	employer := a.register(t, "+254766666666", "employer")
	path := "/api/employers/" + employer["publicKey"].(string) + "/create-attestation"
	body := map[string]any{"employee_pk": worker["publicKey"], "workType": "cooking", "startDate": "2024-01-01"}

	rec := a.do(t, http.MethodPost, path, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, path, body, worker["accessToken"].(string))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, path, body, employer["accessToken"].(string))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	a := newApp(t, nil, false)

	rec := a.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	a.do(t, http.MethodGet, "/api/jobs", nil, "")
	rec = a.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "househelp_http_request_duration_seconds")
}

func TestRouter_CORSPreflight(t *testing.T) {
	a := newApp(t, nil, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))
}
