package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/escrow"
	"otc-swaps/internal/idhash"
	"otc-swaps/internal/storage/memory"
)

var testStart = time.Unix(1_700_000_000, 0)

type harness struct {
	t      *testing.T
	store  *memory.Store
	clock  *clock.TestClock
	engine *escrow.Engine
	server *Server

	sellerKey, buyerKey ed25519.PrivateKey
	seller, buyer       domain.Identity
	mint, sellerAcct    domain.Identity
}

func key(seed byte) (ed25519.PrivateKey, domain.Identity) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	id, err := domain.IdentityFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		panic(err)
	}
	return priv, id
}

func testID(n byte) domain.Identity {
	var id domain.Identity
	id[0] = n
	id[31] = 0x3C
	return id
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:          t,
		store:      memory.NewStore(),
		clock:      clock.NewTestClock(testStart),
		mint:       testID(10),
		sellerAcct: testID(20),
	}
	h.sellerKey, h.seller = key(1)
	h.buyerKey, h.buyer = key(2)

	quiet := log.New(io.Discard, "", 0)
	engine, err := escrow.NewEngine(escrow.Options{Runtime: h.store, Clock: h.clock, Logger: quiet})
	require.NoError(t, err)
	h.engine = engine

	srv, err := New(Config{
		Engine:  engine,
		Swaps:   h.store,
		Events:  h.store,
		Ledger:  h.store,
		DevMode: true,
		Logger:  quiet,
	})
	require.NoError(t, err)
	h.server = srv

	ctx := context.Background()
	require.NoError(t, h.store.PutTokenAccount(ctx, &domain.TokenAccount{Address: h.sellerAcct, Mint: h.mint, Owner: h.seller, Amount: 1000}))
	buyerATA, err := idhash.AssociatedTokenAddress(h.buyer, h.mint)
	require.NoError(t, err)
	require.NoError(t, h.store.PutTokenAccount(ctx, &domain.TokenAccount{Address: buyerATA, Mint: h.mint, Owner: h.buyer}))
	require.NoError(t, h.store.SetNativeBalance(ctx, h.buyer, 1_000_000))
	return h
}

func (h *harness) do(method, path string, body any, signer ed25519.PrivateKey) *httptest.ResponseRecorder {
	h.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(h.t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if signer != nil {
		require.NoError(h.t, SignRequest(req, signer))
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (h *harness) createSwap() SwapResponse {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/v1/swaps", CreateSwapRequest{
		SellerTokenAccount: h.sellerAcct,
		TokenMint:          h.mint,
		Amount:             1000,
		ExpiryTimestamp:    testStart.Unix() + 3600,
		Whitelist:          []domain.Identity{h.buyer},
		PriceTotal:         1_000_000,
	}, h.sellerKey)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SwapResponse
	require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateSwap(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()

	assert.Equal(t, h.seller, swap.Seller)
	assert.Equal(t, uint64(1000), swap.AmountRemaining)
	assert.Equal(t, domain.SwapStatusActive, swap.Status)
	assert.Equal(t, "1000", swap.UnitPrice.String())

	want, _, err := h.engine.SwapID(h.seller, h.mint)
	require.NoError(t, err)
	assert.Equal(t, want, swap.ID)
}

func TestCreateSwap_Unsigned(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/swaps", CreateSwapRequest{}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthenticated", decodeError(t, rec).Code)
}

func TestCreateSwap_TamperedBody(t *testing.T) {
	h := newHarness(t)

	body := []byte(`{"amount":1}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/swaps", bytes.NewReader(body))
	require.NoError(t, SignRequest(req, h.sellerKey))
	req.Body = io.NopCloser(bytes.NewReader([]byte(`{"amount":2}`)))

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateSwap_ErrorMapping(t *testing.T) {
	h := newHarness(t)
	base := func() CreateSwapRequest {
		return CreateSwapRequest{
			SellerTokenAccount: h.sellerAcct,
			TokenMint:          h.mint,
			Amount:             100,
			ExpiryTimestamp:    testStart.Unix() + 60,
			Whitelist:          []domain.Identity{h.buyer},
			PriceTotal:         1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateSwapRequest)
		status int
		code   string
	}{
		{"zero amount", func(r *CreateSwapRequest) { r.Amount = 0 }, http.StatusUnprocessableEntity, "InvalidAmount"},
		{"empty whitelist", func(r *CreateSwapRequest) { r.Whitelist = nil }, http.StatusUnprocessableEntity, "EmptyWhitelist"},
		{"expiry in past", func(r *CreateSwapRequest) { r.ExpiryTimestamp = testStart.Unix() - 1 }, http.StatusUnprocessableEntity, "InvalidExpiryTime"},
		{"insufficient tokens", func(r *CreateSwapRequest) { r.Amount = 5000 }, http.StatusPaymentRequired, "InsufficientBalance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.mutate(&req)
			rec := h.do(http.MethodPost, "/v1/swaps", req, h.sellerKey)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestCreateSwap_UnknownField(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/v1/swaps", map[string]any{"seller": h.buyer.String()}, h.sellerKey)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFillAndCancel(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()

	rec := h.do(http.MethodPost, "/v1/swaps/"+swap.ID.String()+"/fill", FillRequest{Quantity: 400}, h.buyerKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var fill domain.FillReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fill))
	assert.Equal(t, uint64(400), fill.QuantityFilled)
	assert.Equal(t, uint64(400_000), fill.PaymentCharged)
	assert.Equal(t, uint64(600), fill.AmountRemaining)

	// Buyer cannot cancel.
	rec = h.do(http.MethodPost, "/v1/swaps/"+swap.ID.String()+"/cancel", nil, h.buyerKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "UnauthorizedCancellation", decodeError(t, rec).Code)

	rec = h.do(http.MethodPost, "/v1/swaps/"+swap.ID.String()+"/cancel", nil, h.sellerKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cancel domain.CancelReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancel))
	assert.Equal(t, uint64(600), cancel.AmountRefunded)
	assert.Equal(t, uint64(400), cancel.AmountSold)

	rec = h.do(http.MethodPost, "/v1/swaps/"+swap.ID.String()+"/fill", FillRequest{Quantity: 1}, h.buyerKey)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SwapNotActive", decodeError(t, rec).Code)

	rec = h.do(http.MethodGet, "/v1/swaps/"+swap.ID.String()+"/events", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events.Events, 3)
	assert.Equal(t, domain.EventTypeCreated, events.Events[0].Type)
	assert.Equal(t, domain.EventTypeExecuted, events.Events[1].Type)
	assert.Equal(t, domain.EventTypeCancelled, events.Events[2].Type)
}

func TestFill_NotWhitelisted(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()
	strangerKey, _ := key(3)

	rec := h.do(http.MethodPost, "/v1/swaps/"+swap.ID.String()+"/fill", FillRequest{Quantity: 1}, strangerKey)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "BuyerNotWhitelisted", decodeError(t, rec).Code)
}

func TestFill_Expired(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()
	h.clock.SetTime(testStart.Add(3601 * time.Second))

	rec := h.do(http.MethodPost, "/v1/swaps/"+swap.ID.String()+"/fill", FillRequest{Quantity: 1}, h.buyerKey)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SwapExpired", decodeError(t, rec).Code)
}

func TestGetSwap(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()

	rec := h.do(http.MethodGet, "/v1/swaps/"+swap.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got SwapResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, swap.ID, got.ID)

	rec = h.do(http.MethodGet, "/v1/swaps/"+testID(99).String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SwapNotFound", decodeError(t, rec).Code)

	rec = h.do(http.MethodGet, "/v1/swaps/not-an-address", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSwapAccount(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()

	rec := h.do(http.MethodGet, "/v1/swaps/"+swap.ID.String()+"/account", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got SwapAccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, swap.ID, got.ID)
	assert.Equal(t, domain.SwapRecordLayoutSize, got.Size)
	assert.Equal(t, "base64", got.Encoding)

	data, err := base64.StdEncoding.DecodeString(got.Data)
	require.NoError(t, err)
	var decoded domain.SwapRecord
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, h.seller, decoded.Seller)
	assert.Equal(t, h.mint, decoded.TokenMint)
	assert.Equal(t, uint64(1000), decoded.AmountRemaining)
	assert.Equal(t, uint64(1_000_000), decoded.PriceTotal)
	assert.True(t, decoded.Whitelist.Contains(h.buyer))
	assert.True(t, decoded.IsActive)

	rec = h.do(http.MethodGet, "/v1/swaps/"+testID(99).String()+"/account", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSwaps(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()

	rec := h.do(http.MethodGet, "/v1/swaps?seller="+h.seller.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list SwapListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Swaps, 1)
	assert.Equal(t, swap.ID, list.Swaps[0].ID)

	rec = h.do(http.MethodGet, "/v1/swaps?seller="+h.buyer.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Swaps)

	rec = h.do(http.MethodGet, "/v1/swaps", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Swaps, 1)
}

func TestGetQuote(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()

	rec := h.do(http.MethodGet, "/v1/swaps/"+swap.ID.String()+"/quote?quantity=3", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quote struct {
		Quantity uint64 `json:"quantity"`
		Payment  uint64 `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, uint64(3), quote.Quantity)
	assert.Equal(t, uint64(3000), quote.Payment)

	rec = h.do(http.MethodGet, "/v1/swaps/"+swap.ID.String()+"/quote?quantity=1001", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodGet, "/v1/swaps/"+swap.ID.String()+"/quote?quantity=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsByTimeRange(t *testing.T) {
	h := newHarness(t)
	h.createSwap()

	rec := h.do(http.MethodGet, "/v1/events?from=0&to=1800000000", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events EventListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events.Events, 1)

	rec = h.do(http.MethodGet, "/v1/events?from=10&to=5", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDevRoutes(t *testing.T) {
	h := newHarness(t)
	owner := testID(40)

	rec := h.do(http.MethodPost, "/v1/dev/airdrop", DevAirdropRequest{Owner: owner, Lamports: 77}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/v1/dev/balances/"+owner.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bal DevBalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bal))
	assert.Equal(t, uint64(77), bal.Lamports)

	acct := DevTokenAccountRequest{Address: testID(41), Mint: h.mint, Owner: owner, Amount: 9}
	rec = h.do(http.MethodPost, "/v1/dev/token-accounts", acct, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodGet, "/v1/dev/token-accounts/"+testID(41).String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got DevTokenAccountRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, acct, got)

	rec = h.do(http.MethodGet, "/v1/dev/token-accounts/"+testID(42).String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDevRoutesDisabled(t *testing.T) {
	h := newHarness(t)
	srv, err := New(Config{Engine: h.engine, Swaps: h.store, Events: h.store, Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/dev/airdrop", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	h.do(http.MethodGet, "/health", nil, nil)
	rec = h.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "otc_swaps_api_requests_total")
}

func TestVerifyRequest(t *testing.T) {
	priv, signer := key(7)
	body := []byte(`{"quantity":1}`)
	now := time.Unix(1_700_000_000, 0)
	ts := strconv.FormatInt(now.Unix(), 10)

	sign := func(method, path, ts, nonce string, b []byte) string {
		return base58.Encode(ed25519.Sign(priv, SigningMessage(method, path, ts, nonce, b)))
	}
	stale := strconv.FormatInt(now.Add(-MaxTimestampSkew-time.Second).Unix(), 10)
	future := strconv.FormatInt(now.Add(MaxTimestampSkew+time.Second).Unix(), 10)
	edge := strconv.FormatInt(now.Add(-MaxTimestampSkew).Unix(), 10)

	tests := []struct {
		name    string
		signer  string
		ts      string
		nonce   string
		sig     string
		wantErr error
	}{
		{"valid", signer.String(), ts, "n1", sign("POST", "/v1/x", ts, "n1", body), nil},
		{"skew at limit", signer.String(), edge, "n2", sign("POST", "/v1/x", edge, "n2", body), nil},
		{"missing", "", "", "", "", errMissingSignature},
		{"missing nonce", signer.String(), ts, "", sign("POST", "/v1/x", ts, "", body), errMissingSignature},
		{"bad signer", "0OIl", ts, "n3", sign("POST", "/v1/x", ts, "n3", body), errBadSigner},
		{"bad timestamp", signer.String(), "soon", "n4", sign("POST", "/v1/x", "soon", "n4", body), errBadTimestamp},
		{"wrong path", signer.String(), ts, "n5", sign("POST", "/v1/y", ts, "n5", body), errBadSignature},
		{"wrong method", signer.String(), ts, "n6", sign("GET", "/v1/x", ts, "n6", body), errBadSignature},
		{"nonce not signed", signer.String(), ts, "n7", sign("POST", "/v1/x", ts, "other", body), errBadSignature},
		{"garbage signature", signer.String(), ts, "n8", "abc", errBadSignature},
		{"stale", signer.String(), stale, "n9", sign("POST", "/v1/x", stale, "n9", body), errStaleTimestamp},
		{"future", signer.String(), future, "n10", sign("POST", "/v1/x", future, "n10", body), errStaleTimestamp},
		{"replayed nonce", signer.String(), ts, "n1", sign("POST", "/v1/x", ts, "n1", body), errNonceReused},
	}

	auth := newAuthenticator(clock.NewTestClock(now), 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/x", nil)
			for header, v := range map[string]string{
				HeaderSigner: tt.signer, HeaderTimestamp: tt.ts, HeaderNonce: tt.nonce, HeaderSignature: tt.sig,
			} {
				if v != "" {
					req.Header.Set(header, v)
				}
			}
			got, err := auth.verify(req, body)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, signer, got)
		})
	}
}

func TestFill_ReplayedRequestRejected(t *testing.T) {
	h := newHarness(t)
	swap := h.createSwap()
	path := "/v1/swaps/" + swap.ID.String() + "/fill"

	payload, err := json.Marshal(FillRequest{Quantity: 100})
	require.NoError(t, err)
	signed := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	require.NoError(t, SignRequest(signed, h.buyerKey))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
		req.Header = signed.Header.Clone()
		rec := httptest.NewRecorder()
		h.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for i := 0; i < 3; i++ {
		rec = send()
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthenticated", decodeError(t, rec).Code)
	}

	ctx := context.Background()
	snap, err := h.store.GetSwap(ctx, swap.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), snap.AmountRemaining)
	lamports, err := h.store.GetNativeBalance(ctx, h.buyer)
	require.NoError(t, err)
	assert.Equal(t, uint64(900_000), lamports)

	// A fresh signature over the same body is a new request.
	rec = h.do(http.MethodPost, path, FillRequest{Quantity: 100}, h.buyerKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSignedRequest_ClockSkew(t *testing.T) {
	h := newHarness(t)
	serverNow := time.Unix(1_800_000_000, 0)
	srv, err := New(Config{
		Engine: h.engine,
		Swaps:  h.store,
		Events: h.store,
		Logger: log.New(io.Discard, "", 0),
		Clock:  clock.NewTestClock(serverNow),
	})
	require.NoError(t, err)

	for _, tt := range []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"behind", -3 * time.Minute, http.StatusUnauthorized},
		{"ahead", 3 * time.Minute, http.StatusUnauthorized},
		// Reaches the handler; the swap does not exist.
		{"fresh", -time.Minute, http.StatusNotFound},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/swaps/"+testID(99).String()+"/cancel", strings.NewReader("{}"))
			require.NoError(t, signRequest(req, h.sellerKey, serverNow.Add(tt.offset), "nonce-"+tt.name))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestNonceCache_Bounded(t *testing.T) {
	c := newNonceCache(time.Minute, 2)
	now := time.Unix(1_700_000_000, 0)

	assert.False(t, c.Seen("a", now))
	assert.True(t, c.Seen("a", now.Add(time.Second)))
	assert.False(t, c.Seen("b", now))
	assert.False(t, c.Seen("c", now))
	assert.Equal(t, 2, c.Len())
	// "a" was evicted to make room.
	assert.False(t, c.Seen("a", now))

	later := now.Add(2 * time.Minute)
	assert.False(t, c.Seen("b", later))
	assert.Equal(t, 1, c.Len())
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusForKind(escrow.KindSwapNotFound))
	assert.Equal(t, http.StatusConflict, StatusForKind(escrow.KindSwapAlreadyExists))
	assert.Equal(t, http.StatusForbidden, StatusForKind(escrow.KindInvalidRecipientAddress))
	assert.Equal(t, http.StatusPaymentRequired, StatusForKind(escrow.KindInsufficientBalance))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusForKind(escrow.KindTokenAccountFrozen))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(escrow.KindUnknown))
}
