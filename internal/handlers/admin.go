package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"

	resp "lotto-settlement/internal/lib/api/response"
	"lotto-settlement/internal/oracle"
)

type startRoundRequest struct {
	Round           uint64 `json:"round"`
	TicketPrice     int64  `json:"ticketPrice" validate:"required,min=1"`
	DurationSeconds int64  `json:"durationSeconds" validate:"required,min=1"`
	Name            string `json:"name"`
}

type startRoundResponse struct {
	resp.Response
	RoundAddr string `json:"roundAddr"`
}

func (h *Handler) StartRound(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.StartRound"
	log := h.opLog(r, op)

	var req startRoundRequest
	if !h.decodeAndValidate(w, r, log, &req) {
		return
	}

	roundAddr, err := h.engine.StartRound(r.Context(), h.authority, req.Round,
		req.TicketPrice, time.Duration(req.DurationSeconds)*time.Second, req.Name)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	render.JSON(w, r, startRoundResponse{Response: resp.OK(), RoundAddr: roundAddr})
}

func (h *Handler) CloseRound(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.CloseRound"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.CloseRound(r.Context(), h.authority, round); err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))
	render.JSON(w, r, resp.OK())
}

type processResponse struct {
	resp.Response
	DuplicateTiers []string `json:"duplicateTiers,omitempty"`
}

// ProcessRound reveals the round's committed entropy (polling while the
// oracle is unresolved) and writes the winning numbers.
func (h *Handler) ProcessRound(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ProcessRound"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	view, err := h.engine.GetRound(r.Context(), h.authority, round)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	entropy, err := oracle.RetryReveal(r.Context(), h.oracle, view.Round.OracleRequestID, h.revealPolicy)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}

	duplicates, err := h.engine.ProcessWinningNumbers(r.Context(), h.authority, round,
		view.Round.OracleRequestID, entropy)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))

	out := processResponse{Response: resp.OK()}
	for _, tier := range duplicates {
		out.DuplicateTiers = append(out.DuplicateTiers, tier.String())
	}
	render.JSON(w, r, out)
}

type crankWinnersRequest struct {
	TicketAddr   string  `json:"ticketAddr" validate:"required"`
	Tier         string  `json:"tier" validate:"required"`
	Numbers      []uint8 `json:"numbers" validate:"required,len=6"`
	MatchIndexes []int   `json:"matchIndexes" validate:"required,len=4"`
}

type crankWinnersResponse struct {
	resp.Response
	Declared bool `json:"declared"`
}

func (h *Handler) CrankWinners(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.CrankWinners"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	var req crankWinnersRequest
	if !h.decodeAndValidate(w, r, log, &req) {
		return
	}
	tier, err := parseTier(req.Tier)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}

	var numbers [6]uint8
	copy(numbers[:], req.Numbers)
	var indexes [4]int
	copy(indexes[:], req.MatchIndexes)

	declared, err := h.engine.CrankWinners(r.Context(), h.authority, round,
		req.TicketAddr, tier, numbers, indexes)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	render.JSON(w, r, crankWinnersResponse{Response: resp.OK(), Declared: declared})
}

type disburseRequest struct {
	Tier           string  `json:"tier" validate:"required"`
	Numbers        []uint8 `json:"numbers" validate:"required,len=6"`
	DuplicateCount uint32  `json:"duplicateCount" validate:"required,min=1"`
}

type disburseResponse struct {
	resp.Response
	PerWinner int64 `json:"perWinner"`
}

func (h *Handler) Disburse(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Disburse"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	var req disburseRequest
	if !h.decodeAndValidate(w, r, log, &req) {
		return
	}
	tier, err := parseTier(req.Tier)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}

	var numbers [6]uint8
	copy(numbers[:], req.Numbers)
	perWinner, err := h.engine.CrankTransferWinningAmount(r.Context(), h.authority, round,
		tier, numbers, req.DuplicateCount)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))
	render.JSON(w, r, disburseResponse{Response: resp.OK(), PerWinner: perWinner})
}

func (h *Handler) FinishRound(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.FinishRound"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.FinishRound(r.Context(), h.authority, round); err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))
	render.JSON(w, r, resp.OK())
}

type sweepResponse struct {
	resp.Response
	Swept int64 `json:"swept"`
}

func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Sweep"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	swept, err := h.engine.CrankTransferToBuyAndBurnVault(r.Context(), h.authority, round)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))
	render.JSON(w, r, sweepResponse{Response: resp.OK(), Swept: swept})
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Archive"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	if err := h.engine.ArchiveRound(r.Context(), h.authority, round); err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))
	render.JSON(w, r, resp.OK())
}
