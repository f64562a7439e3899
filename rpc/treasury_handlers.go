package rpc

import (
	"net/http"

	"mintvault/native/treasury"
	"mintvault/observability/metrics"
)

type withdrawalJSON struct {
	ID          uint64   `json:"id"`
	Amount      string   `json:"amount"`
	Recipient   string   `json:"recipient"`
	RequestedAt int64    `json:"requestedAt"`
	Approvals   []string `json:"approvals"`
	Executed    bool     `json:"executed"`
	Blocked     bool     `json:"blocked"`
}

func newWithdrawalJSON(request *treasury.WithdrawalRequest) withdrawalJSON {
	out := withdrawalJSON{
		ID:          request.ID,
		Amount:      request.Amount.String(),
		Recipient:   formatAddress(request.Recipient),
		RequestedAt: request.RequestedAt,
		Approvals:   make([]string, 0, len(request.Approvals)),
		Executed:    request.Executed,
		Blocked:     request.Blocked,
	}
	for _, member := range request.Approvals {
		out.Approvals = append(out.Approvals, formatAddress(member))
	}
	return out
}

type treasuryRequestParams struct {
	Caller    string `json:"caller"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleTreasuryRequest(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params treasuryRequestParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	recipient, err := parseBech32Address(params.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	request, err := s.node.TreasuryRequest(caller, amount, recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "withdrawal request failed", err.Error())
		return
	}
	metrics.Sale().ObserveWithdrawal("requested")
	writeResult(w, req.ID, newWithdrawalJSON(request))
}

type treasuryActionParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

func (s *Server) handleTreasuryApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params treasuryActionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	request, err := s.node.TreasuryApprove(caller, params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "approval failed", err.Error())
		return
	}
	metrics.Sale().ObserveWithdrawal("approved")
	if request.Executed {
		metrics.Sale().ObserveWithdrawal("executed")
		if balance, err := s.node.TreasuryBalance(); err == nil {
			metrics.Sale().SetTreasuryBalance(balance)
		}
	}
	writeResult(w, req.ID, newWithdrawalJSON(request))
}

func (s *Server) handleTreasuryBlock(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params treasuryActionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseBech32Address(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TreasuryBlock(caller, params.ID); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "block failed", err.Error())
		return
	}
	metrics.Sale().ObserveWithdrawal("blocked")
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

type treasuryIDParams struct {
	ID uint64 `json:"id"`
}

func (s *Server) handleTreasuryExecute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params treasuryIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TreasuryExecute(params.ID); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "execute failed", err.Error())
		return
	}
	metrics.Sale().ObserveWithdrawal("executed")
	if balance, err := s.node.TreasuryBalance(); err == nil {
		metrics.Sale().SetTreasuryBalance(balance)
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleTreasuryWithdrawal(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params treasuryIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	request, err := s.node.TreasuryWithdrawal(params.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "withdrawal lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, newWithdrawalJSON(request))
}

func (s *Server) handleTreasuryBoard(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	board := s.node.TreasuryBoard()
	members := make([]string, 0, len(board))
	for _, member := range board {
		members = append(members, formatAddress(member))
	}
	writeResult(w, req.ID, map[string]interface{}{
		"members": members,
		"address": formatAddress(s.node.TreasuryAddress()),
	})
}

func (s *Server) handleTreasuryBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	balance, err := s.node.TreasuryBalance()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "balance lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": formatAddress(s.node.TreasuryAddress()),
		"balance": balance.String(),
	})
}
