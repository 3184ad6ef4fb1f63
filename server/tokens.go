package server

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/RaghavSood/aurorabridge/registry"
	"github.com/RaghavSood/aurorabridge/transfers"
)

// handleTokens returns every token with both balances. An erc20n query
// parameter names a token the client was deep-linked to; it is remembered
// as a custom token and kept as a pending parameter until a transfer
// starts.
func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	if linked := strings.TrimSpace(r.URL.Query().Get(transfers.DeepLinkParam)); linked != "" {
		err := s.tokens.AddCustomToken(ctx, linked)
		switch {
		case err == nil, errors.Is(err, registry.ErrFeaturedToken), errors.Is(err, registry.ErrInvalidToken):
		default:
			log.WithField("token", linked).Warnf("server: remembering deep-linked token: %v", err)
		}
		if err := s.params.Set(ctx, transfers.DeepLinkParam, linked); err != nil {
			log.Warnf("server: %v", err)
		}
	}

	tokens, err := s.tokens.RefreshAll(ctx, s.sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleAddCustomToken(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.tokens.AddCustomToken(r.Context(), req.Address); err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": strings.TrimSpace(req.Address)})
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Nep141 string `json:"nep141"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Nep141 == "" {
		writeError(w, http.StatusBadRequest, "nep141 is required")
		return
	}
	outcome, err := s.flows.DeployToAurora(r.Context(), req.Nep141)
	writeOutcome(w, outcome, err)
}
