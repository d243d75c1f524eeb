package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopcore/internal/health"
	"github.com/vladislavdragonenkov/shopcore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopcore/internal/service/payment"
)

// maxWebhookBody ограничивает тело webhook.
const maxWebhookBody = 64 << 10

type webhookResponse struct {
	Result payment.Result `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// newRouter собирает HTTP API: пробы, метрики и приём событий оплаты.
func newRouter(health *healthcheck.Handler, gatherer prometheus.Gatherer, payments kafka.PaymentEventHandler, stripeSecret string, logger *log.Entry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	health.Routes(r)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookHandler(payments, logger, func(body []byte, _ *http.Request) (domain.PaymentEvent, error) {
			return payment.Decode(body)
		}))
		if stripeSecret != "" {
			r.Post("/stripe", webhookHandler(payments, logger, func(body []byte, req *http.Request) (domain.PaymentEvent, error) {
				return payment.DecodeStripeWebhook(body, req.Header.Get("Stripe-Signature"), stripeSecret)
			}))
		}
	})
	return r
}

type decodeFunc func(body []byte, r *http.Request) (domain.PaymentEvent, error)

// webhookHandler отвечает 5xx только на ошибки, которые имеет смысл повторить.
func webhookHandler(payments kafka.PaymentEventHandler, logger *log.Entry, decode decodeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry := logger.WithField("request_id", middleware.GetReqID(r.Context()))

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeWebhook(w, http.StatusRequestEntityTooLarge, webhookResponse{Result: payment.ResultFailed, Error: err.Error()})
			return
		}

		event, err := decode(body, r)
		switch {
		case errors.Is(err, payment.ErrUnsupportedEvent):
			writeWebhook(w, http.StatusOK, webhookResponse{Result: payment.ResultIgnored})
			return
		case err != nil:
			entry.WithError(err).Warn("payment webhook rejected")
			writeWebhook(w, http.StatusBadRequest, webhookResponse{Result: payment.ResultFailed, Error: err.Error()})
			return
		}

		result, err := payments.Handle(r.Context(), event)
		if err != nil {
			writeWebhook(w, webhookStatus(err), webhookResponse{Result: result, Error: err.Error()})
			return
		}
		writeWebhook(w, http.StatusOK, webhookResponse{Result: result})
	}
}

func webhookStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOrderIDRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeWebhook(w http.ResponseWriter, code int, body webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
