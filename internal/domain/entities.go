package domain

// Watched business entities. The surrounding ERP owns their full CRUD surface;
// here they carry only what the dispatch engine consumes: a stable identity,
// the watched status field, and optional creator/assignee attributes.

type Order struct {
	ID         string  `json:"id"`
	Number     string  `json:"number"`
	Status     string  `json:"status" enum:"open,confirmed,shipped,invoiced,canceled"`
	CreatedBy  string  `json:"created_by"`
	AssignedTo *string `json:"assigned_to,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

func (o Order) EntityType() string  { return "order" }
func (o Order) EntityID() string    { return o.ID }
func (o Order) StatusValue() string { return o.Status }
func (o Order) OwnerID() string     { return o.CreatedBy }
func (o Order) AssigneeID() string  { return deref(o.AssignedTo) }
func (o Order) DisplayRef() string  { return firstNonEmpty(o.Number, o.ID) }

type Ticket struct {
	ID        string  `json:"id"`
	Number    string  `json:"number"`
	Subject   string  `json:"subject"`
	Status    string  `json:"status" enum:"new,in_progress,resolved,closed"`
	CreatedBy string  `json:"created_by"`
	Handler   *string `json:"handler,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

func (t Ticket) EntityType() string  { return "ticket" }
func (t Ticket) EntityID() string    { return t.ID }
func (t Ticket) StatusValue() string { return t.Status }
func (t Ticket) OwnerID() string     { return t.CreatedBy }
func (t Ticket) AssigneeID() string  { return deref(t.Handler) }
func (t Ticket) DisplayRef() string  { return firstNonEmpty(t.Number, t.Subject, t.ID) }

type VacationRequest struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Approver   *string `json:"approver,omitempty"`
	StartDate  string  `json:"start_date" format:"date"`
	EndDate    string  `json:"end_date" format:"date"`
	Status     string  `json:"status" enum:"submitted,approved,rejected,canceled"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
	UpdatedAt  string  `json:"updated_at" format:"date-time"`
}

func (v VacationRequest) EntityType() string  { return "vacation_request" }
func (v VacationRequest) EntityID() string    { return v.ID }
func (v VacationRequest) StatusValue() string { return v.Status }
func (v VacationRequest) OwnerID() string     { return v.EmployeeID }
func (v VacationRequest) AssigneeID() string  { return deref(v.Approver) }
func (v VacationRequest) DisplayRef() string  { return v.ID }

// Quotation has no assignee attribute; assignee-mode recipient rows
// contribute nothing for it.
type Quotation struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Status    string `json:"status" enum:"draft,sent,accepted,declined"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

func (q Quotation) EntityType() string  { return "quotation" }
func (q Quotation) EntityID() string    { return q.ID }
func (q Quotation) StatusValue() string { return q.Status }
func (q Quotation) OwnerID() string     { return q.CreatedBy }
func (q Quotation) DisplayRef() string  { return firstNonEmpty(q.Number, q.ID) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
