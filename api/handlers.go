package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// ──────────────────────────────────────────────────
// Request and response bodies
// ──────────────────────────────────────────────────

type admitCustodianRequest struct {
	Account string `json:"account"`
	Alias   string `json:"alias"`
}

type mintRequest struct {
	RegistryID  string           `json:"registry_id"`
	Amount      types.CarbonUnit `json:"verified_carbon_unit"`
	Year        types.Year       `json:"issuance_year"`
	Beneficiary string           `json:"beneficiary"`
}

type transferRequest struct {
	To        string           `json:"to"`
	EditionID types.EditionID  `json:"edition_id,omitempty"`
	Year      types.Year       `json:"year,omitempty"`
	Amount    types.CarbonUnit `json:"amount,omitempty"`
	Editions  []types.Holding  `json:"editions,omitempty"`
}

type retireRequest struct {
	EditionID types.EditionID  `json:"edition_id"`
	Amount    types.CarbonUnit `json:"amount"`
}

type balanceResponse struct {
	Balance types.CarbonUnit `json:"balance"`
}

type governorResponse struct {
	Governor types.AccountID `json:"governor"`
}

// ──────────────────────────────────────────────────
// Public reads
// ──────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Store().Ping(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "health check failed", "error", err)
		writeStatus(w, http.StatusServiceUnavailable, "unavailable", "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"block_number": s.engine.BlockNumber()})
}

func (s *Server) handleGovernor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, governorResponse{Governor: s.engine.Governor()})
}

func (s *Server) handleListCustodians(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.ListCustodians(r.Context())
	s.respond(w, r, http.StatusOK, list, err)
}

func (s *Server) handlePendingMint(w http.ResponseWriter, r *http.Request) {
	pm, err := s.engine.PendingMint(r.Context(), chi.URLParam(r, "registryID"))
	s.respond(w, r, http.StatusOK, pm, err)
}

func (s *Server) handleEdition(w http.ResponseWriter, r *http.Request) {
	editionID, err := types.ParseEditionID(chi.URLParam(r, "editionID"))
	if err != nil {
		s.badRequest(w, r, "editionID", err)
		return
	}
	ed, err := s.engine.Edition(r.Context(), editionID)
	s.respond(w, r, http.StatusOK, ed, err)
}

func (s *Server) handleLastMintedEdition(w http.ResponseWriter, r *http.Request) {
	ed, err := s.engine.LastMintedEdition(r.Context())
	s.respond(w, r, http.StatusOK, ed, err)
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.engine.Supply(r.Context())
	s.respond(w, r, http.StatusOK, supply, err)
}

func (s *Server) handleSupplyByID(w http.ResponseWriter, r *http.Request) {
	editionID, err := types.ParseEditionID(chi.URLParam(r, "editionID"))
	if err != nil {
		s.badRequest(w, r, "editionID", err)
		return
	}
	supply, err := s.engine.EditionSupply(r.Context(), editionID)
	s.respond(w, r, http.StatusOK, supply, err)
}

func (s *Server) handleSupplyByYear(w http.ResponseWriter, r *http.Request) {
	year, err := types.ParseYear(chi.URLParam(r, "year"))
	if err != nil {
		s.badRequest(w, r, "year", err)
		return
	}
	supply, err := s.engine.YearSupply(r.Context(), year)
	s.respond(w, r, http.StatusOK, supply, err)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	retirementID, err := types.ParseRetirementID(chi.URLParam(r, "retirementID"))
	if err != nil {
		s.badRequest(w, r, "retirementID", err)
		return
	}
	rep, err := s.engine.Report(r.Context(), retirementID)
	s.respond(w, r, http.StatusOK, rep, err)
}

func (s *Server) handleLastReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.engine.LastReport(r.Context())
	s.respond(w, r, http.StatusOK, rep, err)
}

func (s *Server) handleAccountReports(w http.ResponseWriter, r *http.Request) {
	account, err := types.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	list, err := s.engine.AccountReports(r.Context(), account)
	s.respond(w, r, http.StatusOK, list, err)
}

// ──────────────────────────────────────────────────
// Governance
// ──────────────────────────────────────────────────

func (s *Server) handleAdmitCustodian(w http.ResponseWriter, r *http.Request) {
	var req admitCustodianRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := types.ParseAccountID(req.Account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.engine.AdmitCustodian(r.Context(), CallerFrom(r.Context()), account, req.Alias)
	s.respond(w, r, http.StatusCreated, c, err)
}

func (s *Server) handleRevokeCustodian(w http.ResponseWriter, r *http.Request) {
	account, err := types.ParseAccountID(chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.engine.RevokeCustodian(r.Context(), CallerFrom(r.Context()), account); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApproveMint(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.ApproveMint(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "registryID"))
	s.respond(w, r, http.StatusOK, a, err)
}

func (s *Server) handleDenyMint(w http.ResponseWriter, r *http.Request) {
	d, err := s.engine.DenyMint(r.Context(), CallerFrom(r.Context()), chi.URLParam(r, "registryID"))
	s.respond(w, r, http.StatusOK, d, err)
}

// ──────────────────────────────────────────────────
// Custodians
// ──────────────────────────────────────────────────

func (s *Server) handleRequestMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	beneficiary, err := types.ParseAccountID(req.Beneficiary)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pm, err := s.engine.RequestMint(r.Context(), CallerFrom(r.Context()), token.MintParams{
		RegistryID:  req.RegistryID,
		Amount:      req.Amount,
		Year:        req.Year,
		Beneficiary: beneficiary,
	})
	s.respond(w, r, http.StatusAccepted, pm, err)
}

// ──────────────────────────────────────────────────
// Holders
// ──────────────────────────────────────────────────

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Balances(r.Context(), CallerFrom(r.Context()))
	s.respond(w, r, http.StatusOK, list, err)
}

func (s *Server) handleTotalBalance(w http.ResponseWriter, r *http.Request) {
	total, err := s.engine.TotalBalance(r.Context(), CallerFrom(r.Context()))
	s.respond(w, r, http.StatusOK, balanceResponse{Balance: total}, err)
}

func (s *Server) handleBalanceByID(w http.ResponseWriter, r *http.Request) {
	editionID, err := types.ParseEditionID(chi.URLParam(r, "editionID"))
	if err != nil {
		s.badRequest(w, r, "editionID", err)
		return
	}
	amount, err := s.engine.BalanceByID(r.Context(), CallerFrom(r.Context()), editionID)
	s.respond(w, r, http.StatusOK, balanceResponse{Balance: amount}, err)
}

func (s *Server) handleBalanceByYear(w http.ResponseWriter, r *http.Request) {
	year, err := types.ParseYear(chi.URLParam(r, "year"))
	if err != nil {
		s.badRequest(w, r, "year", err)
		return
	}
	amount, err := s.engine.BalanceByYear(r.Context(), CallerFrom(r.Context()), year)
	s.respond(w, r, http.StatusOK, balanceResponse{Balance: amount}, err)
}

func (s *Server) handleMyReports(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.MyReports(r.Context(), CallerFrom(r.Context()))
	s.respond(w, r, http.StatusOK, list, err)
}

func (s *Server) handleTransferAll(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, func(req transferRequest, to types.AccountID) (*token.Transfer, error) {
		return s.engine.TransferAll(r.Context(), CallerFrom(r.Context()), to)
	})
}

func (s *Server) handleTransferByID(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, func(req transferRequest, to types.AccountID) (*token.Transfer, error) {
		return s.engine.TransferByID(r.Context(), CallerFrom(r.Context()), to, req.EditionID, req.Amount)
	})
}

func (s *Server) handleTransferByYear(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, func(req transferRequest, to types.AccountID) (*token.Transfer, error) {
		return s.engine.TransferByYear(r.Context(), CallerFrom(r.Context()), to, req.Year, req.Amount)
	})
}

func (s *Server) handleTransferCompounded(w http.ResponseWriter, r *http.Request) {
	s.transfer(w, r, func(req transferRequest, to types.AccountID) (*token.Transfer, error) {
		return s.engine.TransferCompounded(r.Context(), CallerFrom(r.Context()), to, req.Editions)
	})
}

func (s *Server) handleRetire(w http.ResponseWriter, r *http.Request) {
	var req retireRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	receipt, err := s.engine.Retire(r.Context(), CallerFrom(r.Context()), req.EditionID, req.Amount)
	s.respond(w, r, http.StatusCreated, receipt, err)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (s *Server) transfer(w http.ResponseWriter, r *http.Request, fn func(transferRequest, types.AccountID) (*token.Transfer, error)) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := types.ParseAccountID(req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := fn(req, to)
	s.respond(w, r, http.StatusOK, t, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if carbon.IsRejection(err) {
		s.logger.DebugContext(ctx, "request rejected", "path", r.URL.Path, "error", err)
	} else {
		s.logger.ErrorContext(ctx, "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, field string, err error) {
	s.fail(w, r, carbon.ValidationError{Field: field, Message: err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return carbon.ValidationError{Field: "body", Message: fmt.Sprintf("malformed request body: %v", err)}
	}
	return nil
}
