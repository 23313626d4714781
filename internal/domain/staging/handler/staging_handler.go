// Package handler implements the StagingService Connect RPC handlers.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/wealth-tracker/internal/domain/common"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/costbasis"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/fees"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/classifier"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/normalizer"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/overlay"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/wealth-tracker/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/wealth-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/ledger"
	"github.com/FACorreiaa/wealth-tracker/internal/domain/wizard"
	wizardservice "github.com/FACorreiaa/wealth-tracker/internal/domain/wizard/service"
	"github.com/FACorreiaa/wealth-tracker/pkg/interceptors"
)

const ServiceName = "wealth.staging.v1.StagingService"

const (
	PreviewImportProcedure         = "/" + ServiceName + "/PreviewImport"
	GetPreviewProcedure            = "/" + ServiceName + "/GetPreview"
	UpdateGroupProcedure           = "/" + ServiceName + "/UpdateGroup"
	ConfirmImportProcedure         = "/" + ServiceName + "/ConfirmImport"
	CancelImportProcedure          = "/" + ServiceName + "/CancelImport"
	GetImportJobProcedure          = "/" + ServiceName + "/GetImportJob"
	StartTransactionProcedure      = "/" + ServiceName + "/StartTransaction"
	ApplyTransactionEventProcedure = "/" + ServiceName + "/ApplyTransactionEvent"
	SubmitTransactionProcedure     = "/" + ServiceName + "/SubmitTransaction"
	SearchSymbolsProcedure         = "/" + ServiceName + "/SearchSymbols"
	PreviewCostBasisProcedure      = "/" + ServiceName + "/PreviewCostBasis"
)

type (
	PreviewImportRequest struct {
		CSV string `json:"csv"`
	}
	GetPreviewRequest struct {
		SessionID string `json:"session_id"`
	}
	UpdateGroupRequest struct {
		SessionID  string  `json:"session_id"`
		GroupIndex int     `json:"group_index"`
		Toggle     bool    `json:"toggle,omitempty"`
		Excluded   *bool   `json:"excluded,omitempty"`
		EURAmount  *string `json:"eur_amount,omitempty"`
		UnitPrice  *string `json:"unit_price,omitempty"`
	}
	PreviewResponse struct {
		SessionID   string `json:"session_id"`
		Fingerprint string `json:"fingerprint"`
		overlay.Stats
		Groups []importservice.GroupView `json:"groups"`
	}
	ConfirmImportRequest struct {
		SessionID string `json:"session_id"`
		AccountID string `json:"account_id"`
	}
	CancelImportRequest struct {
		SessionID string `json:"session_id"`
	}
	CancelImportResponse struct{}
	GetImportJobRequest  struct {
		JobID string `json:"job_id"`
	}
	ImportJobResponse struct {
		ID           string     `json:"id"`
		AccountID    string     `json:"account_id"`
		Status       string     `json:"status"`
		Fingerprint  string     `json:"fingerprint"`
		RowsTotal    int        `json:"rows_total"`
		RowsImported int        `json:"rows_imported"`
		GroupsTotal  int        `json:"groups_total"`
		ErrorMessage *string    `json:"error_message,omitempty"`
		RequestedAt  time.Time  `json:"requested_at"`
		FinishedAt   *time.Time `json:"finished_at,omitempty"`
	}
	StartTransactionRequest      struct{}
	ApplyTransactionEventRequest struct {
		SessionID string          `json:"session_id"`
		Event     wizard.Envelope `json:"event"`
	}
	SubmitTransactionRequest struct {
		SessionID string `json:"session_id"`
		AccountID string `json:"account_id"`
	}
	SearchSymbolsRequest struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
	}
	SearchSymbolsResponse struct {
		Assets []ledger.Asset `json:"assets"`
	}
	PreviewCostBasisRequest struct {
		PrincipalEUR string `json:"principal_eur"`
		Quantity     string `json:"quantity"`
		FeeMode      string `json:"fee_mode,omitempty"`
		FeeEUR       string `json:"fee_eur,omitempty"`
		Currency     string `json:"currency,omitempty"`
	}
	PreviewCostBasisResponse struct {
		PRU       string `json:"pru"`
		Formatted string `json:"formatted"`
	}
)

// StagingHandler implements the StagingService Connect handlers.
type StagingHandler struct {
	imports *importservice.ImportService
	wizard  *wizardservice.WizardService
	anchor  string
}

// NewStagingHandler constructs a new handler. anchor is the display
// currency of cost-basis previews.
func NewStagingHandler(imports *importservice.ImportService, wizard *wizardservice.WizardService, anchor string) *StagingHandler {
	if anchor == "" {
		anchor = ledger.DefaultAssets().Anchor
	}
	return &StagingHandler{imports: imports, wizard: wizard, anchor: anchor}
}

// Routes returns the mount path and the handler serving every procedure.
func (h *StagingHandler) Routes(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PreviewImportProcedure, connect.NewUnaryHandler(PreviewImportProcedure, h.PreviewImport, opts...))
	mux.Handle(GetPreviewProcedure, connect.NewUnaryHandler(GetPreviewProcedure, h.GetPreview, opts...))
	mux.Handle(UpdateGroupProcedure, connect.NewUnaryHandler(UpdateGroupProcedure, h.UpdateGroup, opts...))
	mux.Handle(ConfirmImportProcedure, connect.NewUnaryHandler(ConfirmImportProcedure, h.ConfirmImport, opts...))
	mux.Handle(CancelImportProcedure, connect.NewUnaryHandler(CancelImportProcedure, h.CancelImport, opts...))
	mux.Handle(GetImportJobProcedure, connect.NewUnaryHandler(GetImportJobProcedure, h.GetImportJob, opts...))
	mux.Handle(StartTransactionProcedure, connect.NewUnaryHandler(StartTransactionProcedure, h.StartTransaction, opts...))
	mux.Handle(ApplyTransactionEventProcedure, connect.NewUnaryHandler(ApplyTransactionEventProcedure, h.ApplyTransactionEvent, opts...))
	mux.Handle(SubmitTransactionProcedure, connect.NewUnaryHandler(SubmitTransactionProcedure, h.SubmitTransaction, opts...))
	mux.Handle(SearchSymbolsProcedure, connect.NewUnaryHandler(SearchSymbolsProcedure, h.SearchSymbols, opts...))
	mux.Handle(PreviewCostBasisProcedure, connect.NewUnaryHandler(PreviewCostBasisProcedure, h.PreviewCostBasis, opts...))
	return "/" + ServiceName + "/", mux
}

// PreviewImport stages an uploaded exchange export.
func (h *StagingHandler) PreviewImport(
	ctx context.Context,
	req *connect.Request[PreviewImportRequest],
) (*connect.Response[PreviewResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Msg.CSV) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("csv is required"))
	}

	preview, err := h.imports.PreviewImport(ctx, userID, []byte(req.Msg.CSV))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toPreviewResponse(preview)), nil
}

// GetPreview returns the current state of a staged import.
func (h *StagingHandler) GetPreview(
	ctx context.Context,
	req *connect.Request[GetPreviewRequest],
) (*connect.Response[PreviewResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	preview, err := h.imports.GetPreview(ctx, userID, sessionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toPreviewResponse(preview)), nil
}

// UpdateGroup toggles exclusion or sets a EUR value on one group.
func (h *StagingHandler) UpdateGroup(
	ctx context.Context,
	req *connect.Request[UpdateGroupRequest],
) (*connect.Response[PreviewResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	preview, err := h.imports.UpdateGroup(ctx, userID, sessionID, importservice.GroupUpdate{
		GroupIndex: req.Msg.GroupIndex,
		Toggle:     req.Msg.Toggle,
		Excluded:   req.Msg.Excluded,
		EURAmount:  req.Msg.EURAmount,
		UnitPrice:  req.Msg.UnitPrice,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toPreviewResponse(preview)), nil
}

// ConfirmImport commits the included groups of a staged import.
func (h *StagingHandler) ConfirmImport(
	ctx context.Context,
	req *connect.Request[ConfirmImportRequest],
) (*connect.Response[importservice.ConfirmResult], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	accountID, err := parseID("account_id", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}

	result, err := h.imports.ConfirmImport(ctx, userID, sessionID, accountID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(result), nil
}

// CancelImport discards a staged import.
func (h *StagingHandler) CancelImport(
	ctx context.Context,
	req *connect.Request[CancelImportRequest],
) (*connect.Response[CancelImportResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	if err := h.imports.CancelImport(ctx, userID, sessionID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CancelImportResponse{}), nil
}

// GetImportJob reports the outcome of a confirmed import.
func (h *StagingHandler) GetImportJob(
	ctx context.Context,
	req *connect.Request[GetImportJobRequest],
) (*connect.Response[ImportJobResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	jobID, err := parseID("job_id", req.Msg.JobID)
	if err != nil {
		return nil, err
	}

	job, err := h.imports.GetImportJob(ctx, userID, jobID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toImportJobResponse(job)), nil
}

// StartTransaction opens a manual entry wizard.
func (h *StagingHandler) StartTransaction(
	ctx context.Context,
	_ *connect.Request[StartTransactionRequest],
) (*connect.Response[wizardservice.View], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	view, err := h.wizard.Start(ctx, userID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(view), nil
}

// ApplyTransactionEvent feeds one event into a wizard. Field validation
// failures come back on the view, not as an error.
func (h *StagingHandler) ApplyTransactionEvent(
	ctx context.Context,
	req *connect.Request[ApplyTransactionEventRequest],
) (*connect.Response[wizardservice.View], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	ev, err := req.Msg.Event.Event()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	view, err := h.wizard.Apply(ctx, userID, sessionID, ev)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(view), nil
}

// SubmitTransaction commits a completed wizard.
func (h *StagingHandler) SubmitTransaction(
	ctx context.Context,
	req *connect.Request[SubmitTransactionRequest],
) (*connect.Response[ledger.Record], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}
	accountID, err := parseID("account_id", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}

	record, err := h.wizard.Submit(ctx, userID, sessionID, accountID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(record), nil
}

// SearchSymbols looks up assets for the wizard's symbol pickers.
func (h *StagingHandler) SearchSymbols(
	ctx context.Context,
	req *connect.Request[SearchSymbolsRequest],
) (*connect.Response[SearchSymbolsResponse], error) {
	userID, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	assets, err := h.wizard.Search(ctx, userID, sessionID, req.Msg.Query)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SearchSymbolsResponse{Assets: assets}), nil
}

// PreviewCostBasis computes a PRU without any session.
func (h *StagingHandler) PreviewCostBasis(
	_ context.Context,
	req *connect.Request[PreviewCostBasisRequest],
) (*connect.Response[PreviewCostBasisResponse], error) {
	in, err := costBasisInput(req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	pru, err := costbasis.Preview(in)
	if err != nil {
		return nil, toConnectError(err)
	}

	currency := req.Msg.Currency
	if currency == "" {
		currency = h.anchor
	}
	return connect.NewResponse(&PreviewCostBasisResponse{
		PRU:       pru.String(),
		Formatted: costbasis.FormatPRU(pru, currency),
	}), nil
}

func costBasisInput(msg *PreviewCostBasisRequest) (costbasis.Input, error) {
	var (
		in   costbasis.Input
		errs fees.FieldErrors
	)
	amount := func(field, raw string) decimal.Decimal {
		if strings.TrimSpace(raw) == "" {
			return decimal.Zero
		}
		d, err := normalizer.ParseLocaleAmount(raw)
		if err != nil {
			errs = append(errs, fees.FieldError{Field: field, Message: "not a number"})
		}
		return d
	}

	in.PrincipalEUR = amount("principal_eur", msg.PrincipalEUR)
	in.Quantity = amount("quantity", msg.Quantity)
	in.FeeEUR = amount("fee_eur", msg.FeeEUR)
	if msg.FeeMode != "" {
		mode, err := ledger.ParseFeeMode(msg.FeeMode)
		if err != nil {
			errs = append(errs, fees.FieldError{Field: "fee_mode", Message: err.Error()})
		}
		in.FeeMode = mode
	}
	if len(errs) > 0 {
		return in, errs
	}
	return in, nil
}

func userFromContext(ctx context.Context) (uuid.UUID, error) {
	userIDStr, ok := interceptors.GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		return uuid.Nil, connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInternal, errors.New("invalid user ID in context"))
	}
	return userID, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid "+field))
	}
	return id, nil
}

func toPreviewResponse(p *importservice.Preview) *PreviewResponse {
	return &PreviewResponse{
		SessionID:   p.SessionID.String(),
		Fingerprint: p.Fingerprint,
		Stats:       p.Stats,
		Groups:      p.Groups,
	}
}

func toImportJobResponse(job *importrepo.ImportJob) *ImportJobResponse {
	return &ImportJobResponse{
		ID:           job.ID.String(),
		AccountID:    job.AccountID.String(),
		Status:       job.Status,
		Fingerprint:  job.Fingerprint,
		RowsTotal:    job.RowsTotal,
		RowsImported: job.RowsImported,
		GroupsTotal:  job.GroupsTotal,
		ErrorMessage: job.ErrorMessage,
		RequestedAt:  job.RequestedAt,
		FinishedAt:   job.FinishedAt,
	}
}

func toConnectError(err error) error {
	var (
		parseErr    *parser.ParseError
		classErr    *classifier.ClassificationError
		fieldErrs   fees.FieldErrors
		connectErr  *pgconn.ConnectError
		existingErr *connect.Error
	)
	switch {
	case errors.As(err, &existingErr):
		return err
	case errors.As(err, &parseErr), errors.As(err, &classErr), errors.As(err, &fieldErrs):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrBadRequest),
		errors.Is(err, costbasis.ErrNonPositiveQuantity):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, common.ErrSessionExpired), errors.Is(err, common.ErrNotFound),
		errors.Is(err, overlay.ErrUnknownGroup):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, wizard.ErrEventNotAllowed), errors.Is(err, wizard.ErrTerminal):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, importrepo.ErrDuplicateImport), errors.Is(err, common.ErrConflict):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, wizard.ErrSuperseded):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.As(err, &connectErr):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
