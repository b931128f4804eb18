// Package api exposes the swap lifecycle over HTTP.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lightningnetwork/lnd/clock"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/escrow"
	"otc-swaps/internal/observability"
	"otc-swaps/internal/pricing"
	"otc-swaps/internal/storage"
)

// Ledger is the read/write ledger surface used by the dev endpoints.
type Ledger interface {
	storage.LedgerReader
	storage.LedgerAdmin
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine *escrow.Engine
	Swaps  storage.SwapReader
	Events storage.EventReader

	// Feed serves /v1/events/ws. Nil disables the route.
	Feed http.Handler

	// Ledger enables the /v1/dev routes when DevMode is set.
	Ledger  Ledger
	DevMode bool

	Logger       *log.Logger
	MaxBodyBytes int64

	// Clock is checked against signed request timestamps. Defaults to the system clock.
	Clock clock.Clock
	// NonceCapacity bounds the replay cache of signed request nonces.
	NonceCapacity int
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	engine       *escrow.Engine
	swaps        storage.SwapReader
	events       storage.EventReader
	feed         http.Handler
	ledger       Ledger
	devMode      bool
	logger       *log.Logger
	maxBodyBytes int64
	auth         *authenticator

	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Swaps == nil || cfg.Events == nil {
		return nil, errors.New("api: engine, swaps and events are required")
	}
	if cfg.DevMode && cfg.Ledger == nil {
		return nil, errors.New("api: dev mode requires a ledger")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}

	srv := &Server{
		engine:       cfg.Engine,
		swaps:        cfg.Swaps,
		events:       cfg.Events,
		feed:         cfg.Feed,
		ledger:       cfg.Ledger,
		devMode:      cfg.DevMode,
		logger:       cfg.Logger,
		maxBodyBytes: cfg.MaxBodyBytes,
		auth:         newAuthenticator(cfg.Clock, cfg.NonceCapacity),
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(chimw.Recoverer)
	r.Use(instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", observability.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/swaps", s.ListSwaps)
		v1.With(s.requireSigner).Post("/swaps", s.CreateSwap)

		v1.Route("/swaps/{id}", func(swap chi.Router) {
			swap.Get("/", s.GetSwap)
			swap.Get("/account", s.GetSwapAccount)
			swap.Get("/events", s.GetSwapEvents)
			swap.Get("/quote", s.GetQuote)
			swap.With(s.requireSigner).Post("/fill", s.FillSwap)
			swap.With(s.requireSigner).Post("/cancel", s.CancelSwap)
		})

		v1.Get("/events", s.GetEventsByTimeRange)
		if s.feed != nil {
			v1.Handle("/events/ws", s.feed)
		}

		if s.devMode {
			v1.Route("/dev", func(dev chi.Router) {
				dev.Post("/token-accounts", s.PutTokenAccount)
				dev.Get("/token-accounts/{address}", s.GetTokenAccount)
				dev.Post("/airdrop", s.Airdrop)
				dev.Get("/balances/{owner}", s.GetBalance)
			})
		}
	})

	return r
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(status), time.Since(start).Seconds())
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			writeProblem(w, http.StatusBadRequest, "InvalidPayload", "empty body")
			return false
		}
		writeProblem(w, http.StatusBadRequest, "InvalidPayload", err.Error())
		return false
	}
	return true
}

func pathIdentity(w http.ResponseWriter, r *http.Request, param string) (domain.Identity, bool) {
	id, err := domain.ParseIdentity(chi.URLParam(r, param))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "InvalidAddress", err.Error())
		return domain.Identity{}, false
	}
	return id, true
}

// CreateSwap escrows the signer's tokens under a new swap.
func (s *Server) CreateSwap(w http.ResponseWriter, r *http.Request) {
	seller, _ := SignerFromContext(r.Context())

	var req CreateSwapRequest
	if !s.decode(w, r, &req) {
		return
	}

	params := escrow.CreateParams{
		Seller:             seller,
		SellerTokenAccount: req.SellerTokenAccount,
		TokenMint:          req.TokenMint,
		Amount:             req.Amount,
		ExpiryTimestamp:    req.ExpiryTimestamp,
		Whitelist:          req.Whitelist,
		PriceTotal:         req.PriceTotal,
	}
	if req.RecipientHint != nil {
		params.RecipientHint = *req.RecipientHint
	}

	rec, err := s.engine.Create(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewSwapResponse(rec))
}

// GetSwap returns one swap record.
func (s *Server) GetSwap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r, "id")
	if !ok {
		return
	}

	rec, err := s.swaps.GetSwap(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = escrow.ErrSwapNotFound
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSwapResponse(rec))
}

// GetSwapAccount returns the swap encoded in its binary account layout.
func (s *Server) GetSwapAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r, "id")
	if !ok {
		return
	}

	rec, err := s.swaps.GetSwap(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = escrow.ErrSwapNotFound
		}
		s.writeError(w, r, err)
		return
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SwapAccountResponse{
		ID:       rec.ID,
		Version:  domain.SwapRecordLayoutVersion,
		Size:     len(data),
		Encoding: "base64",
		Data:     base64.StdEncoding.EncodeToString(data),
	})
}

// ListSwaps lists a seller's swaps, or every active swap when no seller is given.
func (s *Server) ListSwaps(w http.ResponseWriter, r *http.Request) {
	var (
		recs []*domain.SwapRecord
		err  error
	)
	if v := r.URL.Query().Get("seller"); v != "" {
		seller, perr := domain.ParseIdentity(v)
		if perr != nil {
			writeProblem(w, http.StatusBadRequest, "InvalidAddress", perr.Error())
			return
		}
		recs, err = s.swaps.ListSwapsBySeller(r.Context(), seller)
	} else {
		recs, err = s.swaps.ListActiveSwaps(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := SwapListResponse{Swaps: make([]SwapResponse, 0, len(recs))}
	for _, rec := range recs {
		resp.Swaps = append(resp.Swaps, NewSwapResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

// FillSwap buys part or all of the remaining quantity for the signer.
func (s *Server) FillSwap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r, "id")
	if !ok {
		return
	}
	buyer, _ := SignerFromContext(r.Context())

	var req FillRequest
	if !s.decode(w, r, &req) {
		return
	}

	params := escrow.FillParams{SwapID: id, Buyer: buyer, Quantity: req.Quantity}
	if req.Destination != nil {
		params.Destination = *req.Destination
	}

	receipt, err := s.engine.Fill(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// CancelSwap refunds the remaining escrow to the signing seller.
func (s *Server) CancelSwap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r, "id")
	if !ok {
		return
	}
	seller, _ := SignerFromContext(r.Context())

	receipt, err := s.engine.Cancel(r.Context(), id, seller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GetSwapEvents returns the audit trail of one swap.
func (s *Server) GetSwapEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r, "id")
	if !ok {
		return
	}

	events, err := s.events.GetBySwapID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}

// GetEventsByTimeRange returns events with occurred_at in [from, to].
func (s *Server) GetEventsByTimeRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := strconv.ParseInt(q.Get("from"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "InvalidQuery", "from must be unix seconds")
		return
	}
	to, err := strconv.ParseInt(q.Get("to"), 10, 64)
	if err != nil || to < from {
		writeProblem(w, http.StatusBadRequest, "InvalidQuery", "to must be unix seconds not before from")
		return
	}

	events, err := s.events.GetByTimeRange(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}

// GetQuote prices a prospective fill without executing it.
func (s *Server) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathIdentity(w, r, "id")
	if !ok {
		return
	}
	quantity, err := strconv.ParseUint(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "InvalidQuery", "quantity must be an unsigned integer")
		return
	}

	rec, err := s.swaps.GetSwap(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = escrow.ErrSwapNotFound
		}
		s.writeError(w, r, err)
		return
	}
	if quantity == 0 || quantity > rec.AmountRemaining {
		s.writeError(w, r, escrow.ErrInvalidAmountToBuy)
		return
	}

	quote, err := pricing.QuoteFor(rec, quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// PutTokenAccount seeds or replaces a token account.
func (s *Server) PutTokenAccount(w http.ResponseWriter, r *http.Request) {
	var req DevTokenAccountRequest
	if !s.decode(w, r, &req) {
		return
	}

	acct := &domain.TokenAccount{
		Address: req.Address,
		Mint:    req.Mint,
		Owner:   req.Owner,
		Amount:  req.Amount,
		Frozen:  req.Frozen,
	}
	if err := s.ledger.PutTokenAccount(r.Context(), acct); err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			writeProblem(w, http.StatusBadRequest, "InvalidPayload", "address, mint and owner are required")
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetTokenAccount returns a token account.
func (s *Server) GetTokenAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathIdentity(w, r, "address")
	if !ok {
		return
	}

	acct, err := s.ledger.GetTokenAccount(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DevTokenAccountRequest{
		Address: acct.Address,
		Mint:    acct.Mint,
		Owner:   acct.Owner,
		Amount:  acct.Amount,
		Frozen:  acct.Frozen,
	})
}

// Airdrop sets a native balance.
func (s *Server) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req DevAirdropRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Owner.IsZero() {
		writeProblem(w, http.StatusBadRequest, "InvalidPayload", "owner is required")
		return
	}

	if err := s.ledger.SetNativeBalance(r.Context(), req.Owner, req.Lamports); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DevBalanceResponse{Owner: req.Owner, Lamports: req.Lamports})
}

// GetBalance returns a native balance.
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathIdentity(w, r, "owner")
	if !ok {
		return
	}

	lamports, err := s.ledger.GetNativeBalance(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DevBalanceResponse{Owner: owner, Lamports: lamports})
}
