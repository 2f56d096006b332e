package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"alertline/internal/domain"
	"alertline/internal/engine"
)

type OrderResponse struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Status     string  `json:"status"`
	CreatedBy  string  `json:"created_by"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

type TicketResponse struct {
	ID        string  `json:"id"`
	Number    string  `json:"number"`
	Subject   string  `json:"subject,omitempty"`
	Status    string  `json:"status"`
	CreatedBy string  `json:"created_by"`
	Handler   *string `json:"handler,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type VacationRequestResponse struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Approver   *string `json:"approver,omitempty"`
	StartDate  string  `json:"start_date" format:"date"`
	EndDate    string  `json:"end_date" format:"date"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

type QuotationResponse struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Status    string `json:"status"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

func orderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		Number:     o.Number,
		Status:     o.Status,
		CreatedBy:  o.CreatedBy,
		AssignedTo: o.AssignedTo,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func ticketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID,
		Number:    t.Number,
		Subject:   t.Subject,
		Status:    t.Status,
		CreatedBy: t.CreatedBy,
		Handler:   t.Handler,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func vacationRequestResponse(v domain.VacationRequest) VacationRequestResponse {
	return VacationRequestResponse{
		ID:         v.ID,
		EmployeeID: v.EmployeeID,
		Approver:   v.Approver,
		StartDate:  v.StartDate,
		EndDate:    v.EndDate,
		Status:     v.Status,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func quotationResponse(q domain.Quotation) QuotationResponse {
	return QuotationResponse{
		ID:        q.ID,
		Number:    q.Number,
		Status:    q.Status,
		CreatedBy: q.CreatedBy,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

// registerEntities exposes the demo entity write paths so status transitions
// can be driven over the API.
func registerEntities(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders",
		Summary:       "Create order",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateOrderRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.OrderCreateOptions{Number: input.Body.Number, ActorID: actorID}
		if input.Body.AssignedTo != nil {
			opts.AssignedTo = *input.Body.AssignedTo
		}
		o, err := e.CreateOrder(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		o, err := e.Repo.GetOrder(ctx, input.OrderID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-order-status",
		Method:      http.MethodPatch,
		Path:        "/orders/{order_id}/status",
		Summary:     "Set order status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string           `path:"order_id"`
		Body    SetStatusRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.SetOrderStatus(ctx, input.OrderID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-ticket",
		Method:        http.MethodPost,
		Path:          "/tickets",
		Summary:       "Create ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTicketRequest `json:"body"`
	}) (*struct {
		Body TicketResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TicketCreateOptions{
			Number:  input.Body.Number,
			Subject: input.Body.Subject,
			ActorID: actorID,
		}
		if input.Body.Handler != nil {
			opts.Handler = *input.Body.Handler
		}
		t, err := e.CreateTicket(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketResponse `json:"body"`
		}{Body: ticketResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{ticket_id}",
		Summary:     "Get ticket",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TicketID string `path:"ticket_id"`
	}) (*struct {
		Body TicketResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTicket(ctx, input.TicketID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketResponse `json:"body"`
		}{Body: ticketResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-ticket-status",
		Method:      http.MethodPatch,
		Path:        "/tickets/{ticket_id}/status",
		Summary:     "Set ticket status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TicketID string           `path:"ticket_id"`
		Body     SetStatusRequest `json:"body"`
	}) (*struct {
		Body TicketResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.SetTicketStatus(ctx, input.TicketID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TicketResponse `json:"body"`
		}{Body: ticketResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-vacation-request",
		Method:        http.MethodPost,
		Path:          "/vacation-requests",
		Summary:       "Create vacation request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateVacationRequestRequest `json:"body"`
	}) (*struct {
		Body VacationRequestResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.VacationRequestCreateOptions{
			EmployeeID: input.Body.EmployeeID,
			StartDate:  input.Body.StartDate,
			EndDate:    input.Body.EndDate,
			ActorID:    actorID,
		}
		if input.Body.Approver != nil {
			opts.Approver = *input.Body.Approver
		}
		v, err := e.CreateVacationRequest(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacationRequestResponse `json:"body"`
		}{Body: vacationRequestResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-vacation-request",
		Method:      http.MethodGet,
		Path:        "/vacation-requests/{request_id}",
		Summary:     "Get vacation request",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RequestID string `path:"request_id"`
	}) (*struct {
		Body VacationRequestResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		v, err := e.Repo.GetVacationRequest(ctx, input.RequestID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacationRequestResponse `json:"body"`
		}{Body: vacationRequestResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-vacation-request-status",
		Method:      http.MethodPatch,
		Path:        "/vacation-requests/{request_id}/status",
		Summary:     "Set vacation request status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RequestID string           `path:"request_id"`
		Body      SetStatusRequest `json:"body"`
	}) (*struct {
		Body VacationRequestResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.SetVacationRequestStatus(ctx, input.RequestID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacationRequestResponse `json:"body"`
		}{Body: vacationRequestResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-quotation",
		Method:        http.MethodPost,
		Path:          "/quotations",
		Summary:       "Create quotation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateQuotationRequest `json:"body"`
	}) (*struct {
		Body QuotationResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.CreateQuotation(ctx, engine.QuotationCreateOptions{Number: input.Body.Number, ActorID: actorID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QuotationResponse `json:"body"`
		}{Body: quotationResponse(q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-quotation",
		Method:      http.MethodGet,
		Path:        "/quotations/{quotation_id}",
		Summary:     "Get quotation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		QuotationID string `path:"quotation_id"`
	}) (*struct {
		Body QuotationResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		q, err := e.Repo.GetQuotation(ctx, input.QuotationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QuotationResponse `json:"body"`
		}{Body: quotationResponse(q)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-quotation-status",
		Method:      http.MethodPatch,
		Path:        "/quotations/{quotation_id}/status",
		Summary:     "Set quotation status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		QuotationID string           `path:"quotation_id"`
		Body        SetStatusRequest `json:"body"`
	}) (*struct {
		Body QuotationResponse `json:"body"`
	}, error) {
		actorID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.SetQuotationStatus(ctx, input.QuotationID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QuotationResponse `json:"body"`
		}{Body: quotationResponse(q)}, nil
	})
}
