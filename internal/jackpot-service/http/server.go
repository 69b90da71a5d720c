package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/jackpot-platform-poc/internal/jackpot-service/dto"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/domain"
	"github.com/radieske/jackpot-platform-poc/internal/jackpot/engine"
	"github.com/radieske/jackpot-platform-poc/pkg/contracts/events"
)

type BetPublisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

type RewardPublisher interface {
	PublishRewardGranted(ctx context.Context, e events.RewardGranted) error
}

type PoolPublisher interface {
	PublishPool(ctx context.Context, u events.PoolUpdate) error
}

// Server expõe a API REST do jackpot-service.
// Grants, Pool, WS e os contadores são opcionais
type Server struct {
	Log      *zap.Logger
	Catalog  *engine.Catalog
	Rewards  *engine.RewardService
	Bets     BetPublisher
	Grants   RewardPublisher
	Pool     PoolPublisher
	WS       http.Handler
	Validate *Validator
	Clock    engine.Clock

	Requests    *prometheus.CounterVec // labels: route, status
	Evaluations *prometheus.CounterVec // labels: outcome
}

// Router monta as rotas; /ws fica fora do middleware de métricas
func (s *Server) Router() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	if s.Validate == nil {
		s.Validate = NewValidator()
	}
	if s.Clock == nil {
		s.Clock = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.countRequests)

		r.Post("/api/bets", s.placeBet)
		r.Get("/api/bets/{betId}/reward", s.checkReward)
		r.Post("/jackpots", s.createJackpot)
		r.Get("/jackpots", s.listJackpots)
		r.Get("/jackpots/{id}", s.getJackpot)
		r.Get("/jackpots/{id}/contributions", s.listContributions)
		r.Delete("/jackpots/{id}", s.deleteJackpot)
	})

	if s.WS != nil {
		r.Get("/ws", s.WS.ServeHTTP)
	}
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if s.Requests == nil {
			return
		}
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Requests.WithLabelValues(r.Method+" "+route, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if !s.decode(w, r, &req) {
		return
	}

	// jackpot inexistente é rejeitado já na entrada
	if _, err := s.Catalog.Get(r.Context(), req.JackpotID); err != nil {
		s.writeError(w, err)
		return
	}

	ev := events.BetPlaced{
		BetRequestID: uuid.NewString(),
		UserID:       req.UserID,
		JackpotID:    req.JackpotID,
		BetAmount:    req.BetAmount,
		CreatedAt:    s.Clock(),
	}
	if err := s.Bets.PublishBetPlaced(r.Context(), ev); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
			s.writeError(w, err)
			return
		}
		s.Log.Error("publish bet failed", zap.String("bet_id", ev.BetRequestID), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "bet could not be published"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.PlaceBetResponse{BetID: ev.BetRequestID, Status: "PENDING"})
}

func (s *Server) checkReward(w http.ResponseWriter, r *http.Request) {
	out, err := s.Rewards.Evaluate(r.Context(), chi.URLParam(r, "betId"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !out.Replayed {
		s.countEvaluation(out.Won)
		if out.Won {
			s.announce(r.Context(), out)
		}
	}

	resp := dto.RewardResponse{
		BetID:     out.BetID,
		JackpotID: out.JackpotID,
		UserID:    out.UserID,
		Won:       out.Won,
		Amount:    out.Amount,
		Message:   dto.MessageLost,
	}
	if out.Won {
		at := out.GrantedAt
		resp.GrantedAt = &at
		resp.Message = dto.MessageWon
	}
	writeJSON(w, http.StatusOK, resp)
}

// announce publica o prêmio e o reset do pote; falhas só são logadas
func (s *Server) announce(ctx context.Context, out engine.Outcome) {
	if s.Grants != nil && out.Reward != nil {
		err := s.Grants.PublishRewardGranted(ctx, events.RewardGranted{
			RewardID:  out.Reward.ID,
			BetID:     out.BetID,
			JackpotID: out.JackpotID,
			UserID:    out.UserID,
			Amount:    out.Amount,
			GrantedAt: out.GrantedAt,
		})
		if err != nil {
			s.Log.Warn("publish reward failed", zap.String("bet_id", out.BetID), zap.Error(err))
		}
	}
	if s.Pool != nil {
		err := s.Pool.PublishPool(ctx, events.PoolUpdate{
			JackpotID:   out.JackpotID,
			Delta:       out.Amount.Neg(),
			CurrentPool: out.Pool,
			Reason:      events.PoolReasonReset,
			BetID:       out.BetID,
			UpdatedAt:   out.GrantedAt,
		})
		if err != nil {
			s.Log.Warn("publish pool reset failed", zap.String("jackpot_id", out.JackpotID), zap.Error(err))
		}
	}
}

func (s *Server) countEvaluation(won bool) {
	if s.Evaluations == nil {
		return
	}
	outcome := "lost"
	if won {
		outcome = "won"
	}
	s.Evaluations.WithLabelValues(outcome).Inc()
}

func (s *Server) createJackpot(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateJackpotRequest
	if !s.decode(w, r, &req) {
		return
	}

	j, err := s.Catalog.Create(r.Context(), engine.NewJackpot{
		Name:             req.Name,
		InitialPool:      req.InitialPool,
		ContributionType: req.ContributionType,
		RewardType:       req.RewardType,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Location", "/jackpots/"+j.ID)
	writeJSON(w, http.StatusCreated, dto.FromJackpot(*j))
}

func (s *Server) listJackpots(w http.ResponseWriter, r *http.Request) {
	list, err := s.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.JackpotResponse, 0, len(list))
	for _, j := range list {
		out = append(out, dto.FromJackpot(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getJackpot(w http.ResponseWriter, r *http.Request) {
	j, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromJackpot(*j))
}

func (s *Server) listContributions(w http.ResponseWriter, r *http.Request) {
	cs, err := s.Catalog.Contributions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]dto.ContributionResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, dto.ContributionResponse{
			BetID:              c.BetID,
			ContributionAmount: c.Amount,
			CreatedAt:          c.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteJackpot(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode lê o JSON e valida; em caso de erro já responde 400
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return false
	}
	if err := s.Validate.ValidateStruct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:  "invalid payload",
			Fields: FormatValidationError(err),
		})
		return false
	}
	return true
}

// writeError traduz os erros de domínio em status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	default:
		s.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
