package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/aurora"
	"github.com/RaghavSood/aurorabridge/near"
	"github.com/RaghavSood/aurorabridge/registry"
	"github.com/RaghavSood/aurorabridge/session"
	"github.com/RaghavSood/aurorabridge/transfers"
)

// Tokens is the token registry. *registry.Registry satisfies it.
type Tokens interface {
	RefreshAll(ctx context.Context, sess session.Session) (map[string]registry.Token, error)
	AddCustomToken(ctx context.Context, addr string) error
}

// Flows submits transfers. *transfers.Initiator satisfies it.
type Flows interface {
	SendToAurora(ctx context.Context, sess session.Session, nep141, amount string, decimals int, name string) (transfers.Transfer, error)
	WithdrawToNear(ctx context.Context, sess session.Session, erc20, amount string, decimals int, name string) (transfers.Transfer, error)
	WrapAndSendNearToAurora(ctx context.Context, sess session.Session, amount string) (transfers.Transfer, error)
	DeployToAurora(ctx context.Context, nep141 string) (*near.TxOutcome, error)
	RegisterStorage(ctx context.Context, nep141, account string) (*near.TxOutcome, error)
}

// History lists tracked transfers. *tracker.Tracker satisfies it.
type History interface {
	Recent(ctx context.Context, limit, offset int64) ([]transfers.Transfer, error)
}

// Params keeps client parameters. *transfers.ParamStore satisfies it.
type Params interface {
	Set(ctx context.Context, name, value string) error
}

type Config struct {
	Port          int
	Password      string
	AuroraChainID int64
	Network       string
}

type Server struct {
	cfg     Config
	sess    session.Session
	tokens  Tokens
	flows   Flows
	history History
	params  Params
}

func New(cfg Config, sess session.Session, tokens Tokens, flows Flows, history History, params Params) *Server {
	return &Server{
		cfg:     cfg,
		sess:    sess,
		tokens:  tokens,
		flows:   flows,
		history: history,
		params:  params,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tokens", s.withAuth(s.handleTokens))
	mux.HandleFunc("/api/tokens/custom", s.withAuth(s.handleAddCustomToken))
	mux.HandleFunc("/api/tokens/deploy", s.withAuth(s.handleDeploy))
	mux.HandleFunc("/api/storage/register", s.withAuth(s.handleRegisterStorage))
	mux.HandleFunc("/api/transfers", s.withAuth(s.handleTransfers))
	mux.HandleFunc("/api/transfers/to-aurora", s.withAuth(s.handleSendToAurora))
	mux.HandleFunc("/api/transfers/to-near", s.withAuth(s.handleWithdrawToNear))
	mux.HandleFunc("/api/transfers/wrap-near", s.withAuth(s.handleWrapNear))
	mux.HandleFunc("/api/network", s.withAuth(s.handleNetwork))

	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("HTTP server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- Auth helpers ---

func hashPassword(pw string) [32]byte {
	return sha256.Sum256([]byte(pw))
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Password == "" {
			next(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		expected := hashPassword(s.cfg.Password)
		got := hashPassword(token)
		if !ok || subtle.ConstantTimeCompare(expected[:], got[:]) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// --- API handlers ---

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	list, err := s.history.Recent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type transferRequest struct {
	Nep141   string `json:"nep141"`
	Erc20    string `json:"erc20"`
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
	Name     string `json:"name"`
}

func (s *Server) handleSendToAurora(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Nep141 == "" {
		writeError(w, http.StatusBadRequest, "nep141 is required")
		return
	}
	t, err := s.flows.SendToAurora(r.Context(), s.sess, req.Nep141, req.Amount, req.Decimals, req.Name)
	writeTransfer(w, t, err)
}

func (s *Server) handleWithdrawToNear(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Erc20 == "" {
		writeError(w, http.StatusBadRequest, "erc20 is required")
		return
	}
	t, err := s.flows.WithdrawToNear(r.Context(), s.sess, req.Erc20, req.Amount, req.Decimals, req.Name)
	writeTransfer(w, t, err)
}

func (s *Server) handleWrapNear(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := s.flows.WrapAndSendNearToAurora(r.Context(), s.sess, req.Amount)
	writeTransfer(w, t, err)
}

func (s *Server) handleRegisterStorage(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Nep141    string `json:"nep141"`
		AccountID string `json:"account_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Nep141 == "" || req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "nep141 and account_id are required")
		return
	}
	outcome, err := s.flows.RegisterStorage(r.Context(), req.Nep141, req.AccountID)
	writeOutcome(w, outcome, err)
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"network":         s.cfg.Network,
		"aurora_chain_id": s.cfg.AuroraChainID,
		"aurora_network":  aurora.NetworkName(s.cfg.AuroraChainID),
		"near_account_id": s.sess.NearAccountID,
		"aurora_address":  s.sess.AuroraHex(),
	})
}

// writeTransfer reports a flow result. A record that was tracked before
// submission failed is returned alongside the error.
func writeTransfer(w http.ResponseWriter, t transfers.Transfer, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, t)
		return
	}
	status := errorStatus(err)
	if t.ID != 0 {
		writeJSON(w, status, map[string]interface{}{
			"error":    err.Error(),
			"transfer": t,
		})
		return
	}
	writeError(w, status, err.Error())
}

func writeOutcome(w http.ResponseWriter, outcome *near.TxOutcome, err error) {
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	resp := map[string]interface{}{}
	if outcome != nil {
		resp["hash"] = outcome.Transaction.Hash
		resp["status"] = outcome.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrInvalidToken), errors.Is(err, registry.ErrFeaturedToken),
		errors.Is(err, transfers.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, transfers.ErrNotImplemented):
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
