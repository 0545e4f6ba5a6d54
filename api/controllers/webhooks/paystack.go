package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/wavelength-fm/station-backend/api/responses"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/metrics"
	"github.com/wavelength-fm/station-backend/pkg/paystack"
)

type PaystackWebhookService interface {
	Process(ctx context.Context, raw []byte) (enums.WebhookOutcome, error)
}

type signatureVerifier interface {
	Verify(body []byte, signature string) error
}

// PaystackWebhook verifies the provider signature over the raw body, then
// hands the delivery to the processor. Everything but a failed outcome is
// acknowledged with 200 so the provider stops retrying.
func PaystackWebhook(svc PaystackWebhookService, verifier signatureVerifier, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signature verifier unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payload too large"))
				return
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "read request body"))
			return
		}

		if err := verifier.Verify(payload, paystack.SignatureFromHeader(r.Header)); err != nil {
			m.IncSignatureFailure()
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid signature"))
			return
		}

		outcome, err := svc.Process(ctx, payload)
		if err != nil || !outcome.Acknowledged() {
			if err == nil {
				err = errors.New("webhook processing failed")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "process webhook"))
			return
		}

		responses.WriteAck(w)
	}
}
