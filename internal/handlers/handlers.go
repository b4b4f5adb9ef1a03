// Package handlers is the HTTP surface: public user routes plus the
// token-protected authority routes driving the settlement pipeline.
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"lotto-settlement/internal/ledger"
	resp "lotto-settlement/internal/lib/api/response"
	"lotto-settlement/internal/lib/logger/sl"
	"lotto-settlement/internal/lotto"
	"lotto-settlement/internal/middleware"
	"lotto-settlement/internal/models"
	"lotto-settlement/internal/oracle"
)

const roundCacheTTL = 5 * time.Second

type Handler struct {
	engine       *lotto.Engine
	oracle       oracle.Oracle
	log          *slog.Logger
	authority    string
	validate     *validator.Validate
	rounds       *cache.Cache
	revealPolicy oracle.Policy
}

func New(engine *lotto.Engine, orc oracle.Oracle, log *slog.Logger, authority string, revealPolicy oracle.Policy) *Handler {
	return &Handler{
		engine:       engine,
		oracle:       orc,
		log:          log,
		authority:    authority,
		validate:     validator.New(),
		rounds:       cache.New(roundCacheTTL, time.Minute),
		revealPolicy: revealPolicy,
	}
}

// Routes assembles the router. The admin group is protected by the
// authority bearer token.
func (h *Handler) Routes(authorityToken string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Post("/rounds/{round}/tickets", h.BuyTicket)
	r.Post("/claims", h.Claim)
	r.Get("/rounds/{round}", h.GetRound)
	r.Get("/users/{owner}", h.GetUser)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthorityAuth(authorityToken))
		r.Post("/admin/rounds", h.StartRound)
		r.Post("/admin/rounds/{round}/close", h.CloseRound)
		r.Post("/admin/rounds/{round}/process", h.ProcessRound)
		r.Post("/admin/rounds/{round}/crank-winners", h.CrankWinners)
		r.Post("/admin/rounds/{round}/disburse", h.Disburse)
		r.Post("/admin/rounds/{round}/finish", h.FinishRound)
		r.Post("/admin/rounds/{round}/sweep", h.Sweep)
		r.Post("/admin/rounds/{round}/archive", h.Archive)
	})

	return r
}

type buyTicketRequest struct {
	Owner   string  `json:"owner" validate:"required"`
	Numbers []uint8 `json:"numbers" validate:"required,len=6"`
}

type buyTicketResponse struct {
	resp.Response
	TicketAddr string `json:"ticketAddr"`
}

func (h *Handler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.BuyTicket"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}
	var req buyTicketRequest
	if !h.decodeAndValidate(w, r, log, &req) {
		return
	}

	var numbers [6]uint8
	copy(numbers[:], req.Numbers)
	ticketAddr, err := h.engine.BuyTicket(r.Context(), h.authority, req.Owner, round, numbers)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Delete(roundCacheKey(round))

	render.JSON(w, r, buyTicketResponse{Response: resp.OK(), TicketAddr: ticketAddr})
}

type claimRequest struct {
	Owner  string `json:"owner" validate:"required"`
	Amount int64  `json:"amount" validate:"required,min=1"`
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Claim"
	log := h.opLog(r, op)

	var req claimRequest
	if !h.decodeAndValidate(w, r, log, &req) {
		return
	}

	if err := h.engine.ClaimUserRewards(r.Context(), h.authority, req.Owner, req.Amount); err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	render.JSON(w, r, resp.OK())
}

type roundResponse struct {
	resp.Response
	Round *lotto.RoundView `json:"round"`
}

func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.GetRound"
	log := h.opLog(r, op)

	round, ok := h.roundParam(w, r)
	if !ok {
		return
	}

	key := roundCacheKey(round)
	if cached, found := h.rounds.Get(key); found {
		render.JSON(w, r, roundResponse{Response: resp.OK(), Round: cached.(*lotto.RoundView)})
		return
	}

	view, err := h.engine.GetRound(r.Context(), h.authority, round)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	h.rounds.Set(key, view, cache.DefaultExpiration)

	render.JSON(w, r, roundResponse{Response: resp.OK(), Round: view})
}

type userResponse struct {
	resp.Response
	User *lotto.UserView `json:"user"`
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.GetUser"
	log := h.opLog(r, op)

	owner := chi.URLParam(r, "owner")
	view, err := h.engine.GetUserAccount(r.Context(), owner)
	if err != nil {
		h.writeErr(w, r, log, err)
		return
	}
	render.JSON(w, r, userResponse{Response: resp.OK(), User: view})
}

// roundParam parses the {round} URL segment.
func (h *Handler) roundParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	round, err := strconv.ParseUint(chi.URLParam(r, "round"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("invalid round number"))
		return 0, false
	}
	return round, true
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, log *slog.Logger, req any) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("failed to decode request"))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErrs))
		} else {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid request"))
		}
		return false
	}
	return true
}

// writeErr maps protocol errors onto the HTTP contract: replays of completed
// steps are success-equivalent, transient ordering failures ask the caller to
// retry, everything else is a client or server error.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case lotto.AlreadyApplied(err):
		render.JSON(w, r, resp.AlreadyApplied())
	case lotto.Retryable(err) || errors.Is(err, oracle.ErrRandomnessNotResolved):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, resp.RetryLater(protocolMessage(err)))
	case errors.Is(err, lotto.ErrInsufficientFunds):
		render.Status(r, http.StatusPaymentRequired)
		render.JSON(w, r, resp.Error(protocolMessage(err)))
	case errors.Is(err, lotto.ErrInvalidRound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, oracle.ErrUnknownRequest):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error(protocolMessage(err)))
	case isProtocolReject(err):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, resp.Error(protocolMessage(err)))
	default:
		log.Error("internal error", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("internal error"))
	}
}

func isProtocolReject(err error) bool {
	for _, target := range []error{
		lotto.ErrRoundNumbersAreSequential,
		lotto.ErrInvalidNumbersInTicket,
		lotto.ErrInvalidWinningTicket,
		lotto.ErrInvalidWinningTier,
		lotto.ErrWinningNumberIndexNotProvided,
		lotto.ErrInvalidWinningNumberIndex,
		lotto.ErrNoDuplicateTicketsFound,
		lotto.ErrLottoGameNotOpen,
		lotto.ErrLottoGameEnded,
		lotto.ErrTicketAlreadyExists,
		lotto.ErrNoRewardsToClaimFromVault,
		lotto.ErrNotSufficientRewardsInVault,
		lotto.ErrLottoGameVaultNotEmpty,
		lotto.ErrInvalidCrankAccounts,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// protocolMessage strips the op prefix down to the sentinel's own text.
func protocolMessage(err error) string {
	u := errors.Unwrap(err)
	for u != nil {
		err = u
		u = errors.Unwrap(err)
	}
	return err.Error()
}

func (h *Handler) opLog(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", chimw.GetReqID(r.Context())),
	)
}

func roundCacheKey(round uint64) string {
	return fmt.Sprintf("round:%d", round)
}

func parseTier(s string) (models.Tier, error) {
	switch s {
	case "jackpot":
		return models.TierJackpot, nil
	case "tier1":
		return models.Tier1, nil
	case "tier2":
		return models.Tier2, nil
	case "tier3":
		return models.Tier3, nil
	default:
		return 0, lotto.ErrInvalidWinningTier
	}
}
