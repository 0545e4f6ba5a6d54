package controllers

import (
	"context"
	"net/http"

	"github.com/wavelength-fm/station-backend/api/responses"
	"github.com/wavelength-fm/station-backend/api/validators"
	"github.com/wavelength-fm/station-backend/internal/donations"
	"github.com/wavelength-fm/station-backend/pkg/db/models"
	"github.com/wavelength-fm/station-backend/pkg/enums"
	pkgerrors "github.com/wavelength-fm/station-backend/pkg/errors"
	"github.com/wavelength-fm/station-backend/pkg/logger"
	"github.com/wavelength-fm/station-backend/pkg/pagination"
)

// NextCursorHeader carries the keyset cursor for the following page.
const NextCursorHeader = "X-Next-Cursor"

const (
	maxNameLen   = 100
	maxCursorLen = 512
)

type DonationService interface {
	Create(ctx context.Context, input donations.CreateInput) (*models.Donation, error)
	List(ctx context.Context, params donations.ListParams) (*donations.ListResult, error)
	UpdateByReference(ctx context.Context, reference string, patch donations.Patch) (*models.Donation, error)
}

type createDonationRequest struct {
	FirstName        *string        `json:"firstName" validate:"omitempty,max=100"`
	LastName         *string        `json:"lastName" validate:"omitempty,max=100"`
	Email            *string        `json:"email" validate:"omitempty,email"`
	Phone            *string        `json:"phone" validate:"omitempty,max=32"`
	Amount           *int64         `json:"amount" validate:"required,gt=0"`
	Currency         string         `json:"currency" validate:"omitempty,len=3"`
	PaymentReference string         `json:"paymentReference" validate:"omitempty,max=100"`
	PaymentMethod    *string        `json:"paymentMethod" validate:"omitempty,max=32"`
	PaymentStatus    *string        `json:"paymentStatus" validate:"omitempty,oneof=pending"`
	Metadata         map[string]any `json:"metadata"`
}

type updateDonationRequest struct {
	PaymentReference string         `json:"paymentReference" validate:"required,max=100"`
	FirstName        *string        `json:"firstName" validate:"omitempty,max=100"`
	LastName         *string        `json:"lastName" validate:"omitempty,max=100"`
	Email            *string        `json:"email" validate:"omitempty,email"`
	Phone            *string        `json:"phone" validate:"omitempty,max=32"`
	PaymentMethod    *string        `json:"paymentMethod" validate:"omitempty,max=32"`
	PaymentStatus    *string        `json:"paymentStatus"`
	Metadata         map[string]any `json:"metadata"`
}

// ListDonations serves the admin listing, optionally filtered by ?status=.
func ListDonations(svc DonationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		q := validators.NewQuery(r)
		// oversized limits are clamped by the service
		params := donations.ListParams{
			Cursor: q.String("cursor", maxCursorLen),
			Limit:  q.Int("limit", pagination.DefaultLimit, 1, 1<<20),
		}
		rawStatus := q.String("status", 32)
		if err := q.Err(); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if rawStatus != "" {
			status, err := enums.ParseDonationStatus(rawStatus)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"status": rawStatus}))
				return
			}
			params.Status = &status
		}

		result, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if result.NextCursor != "" {
			w.Header().Set(NextCursorHeader, result.NextCursor)
		}
		responses.WriteSuccess(w, result.Donations)
	}
}

// CreateDonation records a public pledge in pending state.
func CreateDonation(svc DonationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body createDonationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		donation, err := svc.Create(ctx, donations.CreateInput{
			FirstName:        validators.SanitizeOptional(body.FirstName, maxNameLen),
			LastName:         validators.SanitizeOptional(body.LastName, maxNameLen),
			Email:            validators.SanitizeOptional(body.Email, 0),
			Phone:            validators.SanitizeOptional(body.Phone, 0),
			Amount:           body.Amount,
			Currency:         body.Currency,
			PaymentReference: validators.SanitizeString(body.PaymentReference, 0),
			PaymentMethod:    validators.SanitizeOptional(body.PaymentMethod, 0),
			Metadata:         body.Metadata,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, donation)
	}
}

// UpdateDonation applies an admin patch located by paymentReference.
func UpdateDonation(svc DonationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body updateDonationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		patch := donations.Patch{
			FirstName:     validators.SanitizeOptional(body.FirstName, maxNameLen),
			LastName:      validators.SanitizeOptional(body.LastName, maxNameLen),
			Email:         validators.SanitizeOptional(body.Email, 0),
			Phone:         validators.SanitizeOptional(body.Phone, 0),
			PaymentMethod: validators.SanitizeOptional(body.PaymentMethod, 0),
			Metadata:      body.Metadata,
		}
		if body.PaymentStatus != nil {
			status, err := enums.ParseDonationStatus(*body.PaymentStatus)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid paymentStatus"))
				return
			}
			patch.PaymentStatus = &status
		}

		reference := validators.SanitizeString(body.PaymentReference, 0)
		if logg != nil {
			ctx = logg.WithDonationReference(ctx, reference)
		}
		donation, err := svc.UpdateByReference(ctx, reference, patch)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, donation)
	}
}
