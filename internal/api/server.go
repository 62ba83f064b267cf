// Package api exposes the admin surface and the inbound hook events
// over HTTP for host engines that drive the hook out of process.
package api

import (
	"encoding/json"
	"net/http"

	sdkerrors "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"driftfee/internal/hook"
	"driftfee/internal/hookerr"
	"driftfee/internal/model"
)

const actingIdentityHeader = "X-Acting-Identity"

// apiError is the standard JSON error envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FeeReader exposes the last fee reported for a pool.
type FeeReader interface {
	LastFee(poolID common.Hash) (uint32, bool)
}

// Server routes HTTP requests into the hook facade.
type Server struct {
	router *mux.Router
	facade *hook.Facade
	fees   FeeReader
	logger *zap.Logger
}

// NewServer builds the API server around a facade. The fee reader may
// be nil when no ledger is wired.
func NewServer(facade *hook.Facade, fees FeeReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		router: mux.NewRouter(),
		facade: facade,
		fees:   fees,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/pools/{pool}/fee", s.handleLastFee).Methods(http.MethodGet)

	s.router.HandleFunc("/api/v1/admin/transfer", s.handleTransferAdmin).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/admin/base-fee", s.handleSetBaseFee).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/admin/multiplier", s.handleSetMultiplier).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/admin/permissions", s.handleGrant).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/admin/pools/{pool}/fee-override", s.handleSetFeeOverride).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/admin/pools/{pool}/oracle-binding", s.handleSetOracleBinding).Methods(http.MethodPost)

	s.router.HandleFunc("/api/v1/hooks/before-liquidity-change", s.handleBeforeLiquidityChange).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/hooks/before-trade", s.handleBeforeTrade).Methods(http.MethodPost)
}

// Handler wraps the router with CORS.
func (s *Server) Handler(origins []string) http.Handler {
	if len(origins) == 0 {
		return s.router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", actingIdentityHeader},
	})
	return c.Handler(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLastFee(w http.ResponseWriter, r *http.Request) {
	poolID, ok := poolIDVar(w, r)
	if !ok {
		return
	}
	if s.fees == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no fee recorder is wired")
		return
	}
	feePips, ok := s.fees.LastFee(poolID)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no fee recorded for pool")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"fee": feePips})
}

func (s *Server) handleTransferAdmin(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Next string `json:"next"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Next) {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "next must be a hex address")
		return
	}
	if err := s.facade.TransferAdmin(r.Context(), caller, common.HexToAddress(req.Next)); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"admin": req.Next})
}

func (s *Server) handleSetBaseFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Fee uint32 `json:"fee"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.facade.SetBaseFee(r.Context(), caller, req.Fee); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"base_fee": req.Fee})
}

func (s *Server) handleSetMultiplier(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Multiplier uint32 `json:"multiplier"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.facade.SetMultiplier(r.Context(), caller, req.Multiplier); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"multiplier": req.Multiplier})
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Capability string `json:"capability"`
		Identity   string `json:"identity"`
		Allowed    bool   `json:"allowed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Identity) {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "identity must be a hex address")
		return
	}
	err := s.facade.Grant(r.Context(), caller, model.Capability(req.Capability), common.HexToAddress(req.Identity), req.Allowed)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": req.Allowed})
}

func (s *Server) handleSetFeeOverride(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	poolID, ok := poolIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Fee uint32 `json:"fee"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.facade.SetFeeOverride(r.Context(), caller, poolID, req.Fee); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"fee": req.Fee})
}

func (s *Server) handleSetOracleBinding(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	poolID, ok := poolIDVar(w, r)
	if !ok {
		return
	}
	var req struct {
		Feed          string `json:"feed"`
		PoolAddress   string `json:"pool_address"`
		CompareToken0 bool   `json:"compare_token0"`
		QuoteDecimals uint8  `json:"quote_decimals"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Feed != "" && !common.IsHexAddress(req.Feed) {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "feed must be a hex address")
		return
	}
	if req.PoolAddress != "" && !common.IsHexAddress(req.PoolAddress) {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "pool_address must be a hex address")
		return
	}
	binding := model.OracleBinding{
		Feed:          common.HexToAddress(req.Feed),
		PoolAddress:   common.HexToAddress(req.PoolAddress),
		CompareToken0: req.CompareToken0,
		QuoteDecimals: req.QuoteDecimals,
	}
	if err := s.facade.SetOracleBinding(r.Context(), caller, poolID, binding); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"feed": binding.Feed.Hex()})
}

type poolKeyBody struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
}

func (b poolKeyBody) toKey(w http.ResponseWriter) (model.PoolKey, bool) {
	if !common.IsHexAddress(b.Token0) || !common.IsHexAddress(b.Token1) {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "token0 and token1 must be hex addresses")
		return model.PoolKey{}, false
	}
	return model.PoolKey{
		Token0:      common.HexToAddress(b.Token0),
		Token1:      common.HexToAddress(b.Token1),
		Fee:         b.Fee,
		TickSpacing: b.TickSpacing,
	}, true
}

func (s *Server) handleBeforeLiquidityChange(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Pool poolKeyBody `json:"pool"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	key, ok := req.Pool.toKey(w)
	if !ok {
		return
	}
	if err := s.facade.OnBeforeLiquidityChange(r.Context(), identity, key); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": true})
}

func (s *Server) handleBeforeTrade(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.actingIdentity(w, r)
	if !ok {
		return
	}
	var req struct {
		Pool      poolKeyBody `json:"pool"`
		Direction string      `json:"direction"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	key, ok := req.Pool.toKey(w)
	if !ok {
		return
	}
	direction, ok := model.ParseTradeDirection(req.Direction)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "unknown trade direction")
		return
	}
	feePips, err := s.facade.OnBeforeTrade(r.Context(), identity, key, direction)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"allowed": true, "fee": feePips})
}

func (s *Server) actingIdentity(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	raw := r.Header.Get(actingIdentityHeader)
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "missing or malformed "+actingIdentityHeader+" header")
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// writeFailure maps the hook error taxonomy onto HTTP statuses.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case sdkerrors.IsOf(err, hookerr.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case sdkerrors.IsOf(err, hookerr.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "UNAUTHORIZED", err.Error())
	case sdkerrors.IsOf(err, hookerr.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case sdkerrors.IsOf(err, hookerr.ErrOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, "OUT_OF_RANGE", err.Error())
	case sdkerrors.IsOf(err, hookerr.ErrArithmetic):
		writeError(w, http.StatusUnprocessableEntity, "ARITHMETIC", err.Error())
	default:
		s.logger.Error("internal failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func poolIDVar(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	raw := mux.Vars(r)["pool"]
	if len(raw) != 2+2*common.HashLength || raw[:2] != "0x" {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "pool must be a 32-byte hex hash")
		return common.Hash{}, false
	}
	return common.HexToHash(raw), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}
