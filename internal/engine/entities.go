package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"alertline/internal/domain"
	"alertline/internal/events"
	"alertline/internal/registry"
	"alertline/internal/watch"
)

// Write paths for the watched entities. Each status change follows the same
// shape: open a transaction, capture the prior row into a span, update with
// an audit event, commit, then hand the detected transition to the dispatcher.
// Dispatch runs after commit, so a pipeline failure can never roll back the
// write.

func (e *Engine) descriptor(entityType string) (registry.Descriptor, error) {
	desc, ok := e.Registry.Lookup(entityType)
	if !ok {
		return registry.Descriptor{}, fmt.Errorf("unknown entity type %s", entityType)
	}
	return desc, nil
}

func (e *Engine) checkStatus(entityType, status string) error {
	if !e.Registry.ValidStatus(entityType, status) {
		return fmt.Errorf("status %s is not valid for %s", status, entityType)
	}
	return nil
}

// finish compares the span against the committed entity and, if the status
// changed, dispatches asynchronously with a snapshot taken now.
func (e *Engine) finish(span *watch.Span, after registry.Entity, actorID string) {
	event, ok := span.Commit(after, actorID, e.now())
	if !ok {
		return
	}
	e.Dispatcher.DispatchAsync(event, watch.Snap(after))
}

type OrderCreateOptions struct {
	Number     string
	AssignedTo string
	ActorID    string
}

func (e *Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.Order, error) {
	if opts.Number == "" {
		return domain.Order{}, errors.New("number is required")
	}
	if opts.ActorID == "" {
		return domain.Order{}, errors.New("actor required")
	}
	desc, err := e.descriptor("order")
	if err != nil {
		return domain.Order{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	o := domain.Order{
		ID:        uuid.NewString(),
		Number:    opts.Number,
		Status:    "open",
		CreatedBy: opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.AssignedTo != "" {
		o.AssignedTo = &opts.AssignedTo
	}
	// The span never captures a prior status, so creation cannot dispatch.
	span := watch.Begin(desc, o.ID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertOrderTx(ctx, tx, o); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "order.created", "order", o.ID, opts.ActorID, events.EventPayload{"number": o.Number, "status": o.Status}); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	e.finish(span, o, opts.ActorID)
	return o, nil
}

func (e *Engine) SetOrderStatus(ctx context.Context, id, status, actorID string) (domain.Order, error) {
	desc, err := e.descriptor("order")
	if err != nil {
		return domain.Order{}, err
	}
	if err := e.checkStatus("order", status); err != nil {
		return domain.Order{}, err
	}
	span := watch.Begin(desc, id)
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()
	// The pre-image must come from the same transaction as the write;
	// otherwise two concurrent writers can observe the same prior status.
	prior, err := e.Repo.GetOrderTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	span.CapturePrior(prior.Status)
	if err := e.Repo.UpdateOrderStatusTx(ctx, tx, id, status, now); err != nil {
		return domain.Order{}, err
	}
	after, err := e.Repo.GetOrderTx(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := e.Events.Append(ctx, tx, "order.status.changed", "order", id, actorID, events.EventPayload{"from": prior.Status, "to": status}); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	e.finish(span, after, actorID)
	return after, nil
}

type TicketCreateOptions struct {
	Number  string
	Subject string
	Handler string
	ActorID string
}

func (e *Engine) CreateTicket(ctx context.Context, opts TicketCreateOptions) (domain.Ticket, error) {
	if opts.Number == "" {
		return domain.Ticket{}, errors.New("number is required")
	}
	if opts.ActorID == "" {
		return domain.Ticket{}, errors.New("actor required")
	}
	desc, err := e.descriptor("ticket")
	if err != nil {
		return domain.Ticket{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Ticket{
		ID:        uuid.NewString(),
		Number:    opts.Number,
		Subject:   opts.Subject,
		Status:    "new",
		CreatedBy: opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.Handler != "" {
		t.Handler = &opts.Handler
	}
	span := watch.Begin(desc, t.ID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ticket{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTicketTx(ctx, tx, t); err != nil {
		return domain.Ticket{}, fmt.Errorf("insert ticket: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "ticket.created", "ticket", t.ID, opts.ActorID, events.EventPayload{"number": t.Number, "status": t.Status}); err != nil {
		return domain.Ticket{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Ticket{}, err
	}
	e.finish(span, t, opts.ActorID)
	return t, nil
}

func (e *Engine) SetTicketStatus(ctx context.Context, id, status, actorID string) (domain.Ticket, error) {
	desc, err := e.descriptor("ticket")
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := e.checkStatus("ticket", status); err != nil {
		return domain.Ticket{}, err
	}
	span := watch.Begin(desc, id)
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ticket{}, err
	}
	defer tx.Rollback()
	prior, err := e.Repo.GetTicketTx(ctx, tx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	span.CapturePrior(prior.Status)
	if err := e.Repo.UpdateTicketStatusTx(ctx, tx, id, status, now); err != nil {
		return domain.Ticket{}, err
	}
	after, err := e.Repo.GetTicketTx(ctx, tx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := e.Events.Append(ctx, tx, "ticket.status.changed", "ticket", id, actorID, events.EventPayload{"from": prior.Status, "to": status}); err != nil {
		return domain.Ticket{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Ticket{}, err
	}
	e.finish(span, after, actorID)
	return after, nil
}

type VacationRequestCreateOptions struct {
	EmployeeID string
	Approver   string
	StartDate  string
	EndDate    string
	ActorID    string
}

func (e *Engine) CreateVacationRequest(ctx context.Context, opts VacationRequestCreateOptions) (domain.VacationRequest, error) {
	if opts.EmployeeID == "" {
		return domain.VacationRequest{}, errors.New("employee_id is required")
	}
	if opts.StartDate == "" || opts.EndDate == "" {
		return domain.VacationRequest{}, errors.New("start_date and end_date are required")
	}
	desc, err := e.descriptor("vacation_request")
	if err != nil {
		return domain.VacationRequest{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	v := domain.VacationRequest{
		ID:         uuid.NewString(),
		EmployeeID: opts.EmployeeID,
		StartDate:  opts.StartDate,
		EndDate:    opts.EndDate,
		Status:     "submitted",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if opts.Approver != "" {
		v.Approver = &opts.Approver
	}
	span := watch.Begin(desc, v.ID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.VacationRequest{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertVacationRequestTx(ctx, tx, v); err != nil {
		return domain.VacationRequest{}, fmt.Errorf("insert vacation request: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "vacation_request.created", "vacation_request", v.ID, opts.ActorID, events.EventPayload{"status": v.Status}); err != nil {
		return domain.VacationRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.VacationRequest{}, err
	}
	e.finish(span, v, opts.ActorID)
	return v, nil
}

func (e *Engine) SetVacationRequestStatus(ctx context.Context, id, status, actorID string) (domain.VacationRequest, error) {
	desc, err := e.descriptor("vacation_request")
	if err != nil {
		return domain.VacationRequest{}, err
	}
	if err := e.checkStatus("vacation_request", status); err != nil {
		return domain.VacationRequest{}, err
	}
	span := watch.Begin(desc, id)
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.VacationRequest{}, err
	}
	defer tx.Rollback()
	prior, err := e.Repo.GetVacationRequestTx(ctx, tx, id)
	if err != nil {
		return domain.VacationRequest{}, err
	}
	span.CapturePrior(prior.Status)
	if err := e.Repo.UpdateVacationRequestStatusTx(ctx, tx, id, status, now); err != nil {
		return domain.VacationRequest{}, err
	}
	after, err := e.Repo.GetVacationRequestTx(ctx, tx, id)
	if err != nil {
		return domain.VacationRequest{}, err
	}
	if err := e.Events.Append(ctx, tx, "vacation_request.status.changed", "vacation_request", id, actorID, events.EventPayload{"from": prior.Status, "to": status}); err != nil {
		return domain.VacationRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.VacationRequest{}, err
	}
	e.finish(span, after, actorID)
	return after, nil
}

type QuotationCreateOptions struct {
	Number  string
	ActorID string
}

func (e *Engine) CreateQuotation(ctx context.Context, opts QuotationCreateOptions) (domain.Quotation, error) {
	if opts.Number == "" {
		return domain.Quotation{}, errors.New("number is required")
	}
	if opts.ActorID == "" {
		return domain.Quotation{}, errors.New("actor required")
	}
	desc, err := e.descriptor("quotation")
	if err != nil {
		return domain.Quotation{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	q := domain.Quotation{
		ID:        uuid.NewString(),
		Number:    opts.Number,
		Status:    "draft",
		CreatedBy: opts.ActorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span := watch.Begin(desc, q.ID)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Quotation{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertQuotationTx(ctx, tx, q); err != nil {
		return domain.Quotation{}, fmt.Errorf("insert quotation: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "quotation.created", "quotation", q.ID, opts.ActorID, events.EventPayload{"number": q.Number, "status": q.Status}); err != nil {
		return domain.Quotation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Quotation{}, err
	}
	e.finish(span, q, opts.ActorID)
	return q, nil
}

func (e *Engine) SetQuotationStatus(ctx context.Context, id, status, actorID string) (domain.Quotation, error) {
	desc, err := e.descriptor("quotation")
	if err != nil {
		return domain.Quotation{}, err
	}
	if err := e.checkStatus("quotation", status); err != nil {
		return domain.Quotation{}, err
	}
	span := watch.Begin(desc, id)
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Quotation{}, err
	}
	defer tx.Rollback()
	prior, err := e.Repo.GetQuotationTx(ctx, tx, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	span.CapturePrior(prior.Status)
	if err := e.Repo.UpdateQuotationStatusTx(ctx, tx, id, status, now); err != nil {
		return domain.Quotation{}, err
	}
	after, err := e.Repo.GetQuotationTx(ctx, tx, id)
	if err != nil {
		return domain.Quotation{}, err
	}
	if err := e.Events.Append(ctx, tx, "quotation.status.changed", "quotation", id, actorID, events.EventPayload{"from": prior.Status, "to": status}); err != nil {
		return domain.Quotation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Quotation{}, err
	}
	e.finish(span, after, actorID)
	return after, nil
}
