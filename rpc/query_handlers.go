package rpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"mintvault/native/codes"
	"mintvault/native/phase"
	"mintvault/native/tiers"
)

type phaseQueryParams struct {
	ID uint64 `json:"id,omitempty"`
}

func (s *Server) handleSalePhase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params phaseQueryParams
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if params.ID != 0 {
		stored, ok, err := s.node.PhaseByID(params.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "phase lookup failed", err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "phase not found", params.ID)
			return
		}
		writeResult(w, req.ID, newPhaseJSON(stored))
		return
	}
	current, err := s.node.CurrentPhase()
	if err != nil {
		if errors.Is(err, phase.ErrNoActivePhase) {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "no active phase", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "phase lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, newPhaseJSON(current))
}

type codeQueryParams struct {
	Code string `json:"code"`
}

func (s *Server) handleSaleCode(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params codeQueryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	record, ok, err := s.node.CodeInfo(params.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "code lookup failed", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "code not found", codes.Normalize(params.Code))
		return
	}
	switch record.Kind {
	case codes.KindAmbassador:
		writeResult(w, req.ID, newAmbassadorJSON(record.Ambassador))
	case codes.KindPersonal:
		writeResult(w, req.ID, newPersonalJSON(record.Personal))
	default:
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "corrupt code record", nil)
	}
}

type tierQueryParams struct {
	Class string `json:"class,omitempty"`
}

type tierJSON struct {
	Class        string `json:"class"`
	Cap          uint64 `json:"cap"`
	Minted       uint64 `json:"minted"`
	Remaining    uint64 `json:"remaining"`
	RewardWeight uint64 `json:"rewardWeight"`
}

func newTierJSON(class tiers.ClassID, info tiers.Info) tierJSON {
	return tierJSON{
		Class:        class.String(),
		Cap:          info.Cap,
		Minted:       info.Minted,
		Remaining:    info.Remaining(),
		RewardWeight: info.RewardWeight,
	}
}

func (s *Server) handleSaleTier(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params tierQueryParams
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if params.Class != "" {
		class, err := tiers.ParseClass(params.Class)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
		info, err := s.node.TierInfo(class)
		if err != nil {
			writeError(w, http.StatusNotFound, req.ID, codeServerError, "tier lookup failed", err.Error())
			return
		}
		writeResult(w, req.ID, newTierJSON(class, info))
		return
	}
	table, err := s.node.Tiers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "tier lookup failed", err.Error())
		return
	}
	out := make([]tierJSON, 0, len(table))
	for class, info := range table {
		out = append(out, newTierJSON(tiers.ClassID(class), info))
	}
	writeResult(w, req.ID, out)
}

type balanceQueryParams struct {
	Address string `json:"address"`
}

func (s *Server) handleBankBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceQueryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "balance lookup failed", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address": formatAddress(addr),
		"balance": balance.String(),
	})
}

func (s *Server) handleBankHoldings(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceQueryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseBech32Address(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	held, err := s.node.Holdings(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "holdings lookup failed", err.Error())
		return
	}
	holdings := make(map[string]uint64, len(held))
	for class, count := range held {
		holdings[tiers.ClassID(class).String()] = count
	}
	writeResult(w, req.ID, map[string]interface{}{
		"address":  formatAddress(addr),
		"holdings": holdings,
	})
}

type eventsQueryParams struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Server) handleEventsRecent(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params eventsQueryParams
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	writeResult(w, req.ID, s.node.Events(params.Limit))
}
