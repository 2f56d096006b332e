package repo

import (
	"context"
	"database/sql"

	"alertline/internal/domain"
)

// Persistence for the watched business entities. Only what the write paths
// and the dispatch pipeline need; the wider ERP surface lives elsewhere.

func (r Repo) InsertOrderTx(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orders(id,number,status,created_by,assigned_to,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		o.ID, o.Number, o.Status, o.CreatedBy, nullableStringPtr(o.AssignedTo), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return scanOrder(r.DB.QueryRowContext(ctx, `SELECT id,number,status,created_by,assigned_to,created_at,updated_at FROM orders WHERE id=?`, id))
}

func (r Repo) GetOrderTx(ctx context.Context, tx *sql.Tx, id string) (domain.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx, `SELECT id,number,status,created_by,assigned_to,created_at,updated_at FROM orders WHERE id=?`, id))
}

func scanOrder(row *sql.Row) (domain.Order, error) {
	var o domain.Order
	var assigned sql.NullString
	err := row.Scan(&o.ID, &o.Number, &o.Status, &o.CreatedBy, &assigned, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if assigned.Valid {
		o.AssignedTo = &assigned.String
	}
	return o, nil
}

func (r Repo) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE orders SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,number,status,created_by,assigned_to,created_at,updated_at FROM orders ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		var o domain.Order
		var assigned sql.NullString
		if err := rows.Scan(&o.ID, &o.Number, &o.Status, &o.CreatedBy, &assigned, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		if assigned.Valid {
			o.AssignedTo = &assigned.String
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) InsertTicketTx(ctx context.Context, tx *sql.Tx, t domain.Ticket) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tickets(id,number,subject,status,created_by,handler,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Number, t.Subject, t.Status, t.CreatedBy, nullableStringPtr(t.Handler), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTicket(ctx context.Context, id string) (domain.Ticket, error) {
	return scanTicket(r.DB.QueryRowContext(ctx, `SELECT id,number,subject,status,created_by,handler,created_at,updated_at FROM tickets WHERE id=?`, id))
}

func (r Repo) GetTicketTx(ctx context.Context, tx *sql.Tx, id string) (domain.Ticket, error) {
	return scanTicket(tx.QueryRowContext(ctx, `SELECT id,number,subject,status,created_by,handler,created_at,updated_at FROM tickets WHERE id=?`, id))
}

func scanTicket(row *sql.Row) (domain.Ticket, error) {
	var t domain.Ticket
	var handler sql.NullString
	err := row.Scan(&t.ID, &t.Number, &t.Subject, &t.Status, &t.CreatedBy, &handler, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if handler.Valid {
		t.Handler = &handler.String
	}
	return t, nil
}

func (r Repo) UpdateTicketStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tickets SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,number,subject,status,created_by,handler,created_at,updated_at FROM tickets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		var handler sql.NullString
		if err := rows.Scan(&t.ID, &t.Number, &t.Subject, &t.Status, &t.CreatedBy, &handler, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if handler.Valid {
			t.Handler = &handler.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertVacationRequestTx(ctx context.Context, tx *sql.Tx, v domain.VacationRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO vacation_requests(id,employee_id,approver,start_date,end_date,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		v.ID, v.EmployeeID, nullableStringPtr(v.Approver), v.StartDate, v.EndDate, v.Status, v.CreatedAt, v.UpdatedAt)
	return err
}

func (r Repo) GetVacationRequest(ctx context.Context, id string) (domain.VacationRequest, error) {
	return scanVacation(r.DB.QueryRowContext(ctx, `SELECT id,employee_id,approver,start_date,end_date,status,created_at,updated_at FROM vacation_requests WHERE id=?`, id))
}

func (r Repo) GetVacationRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.VacationRequest, error) {
	return scanVacation(tx.QueryRowContext(ctx, `SELECT id,employee_id,approver,start_date,end_date,status,created_at,updated_at FROM vacation_requests WHERE id=?`, id))
}

func scanVacation(row *sql.Row) (domain.VacationRequest, error) {
	var v domain.VacationRequest
	var approver sql.NullString
	err := row.Scan(&v.ID, &v.EmployeeID, &approver, &v.StartDate, &v.EndDate, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if approver.Valid {
		v.Approver = &approver.String
	}
	return v, nil
}

func (r Repo) UpdateVacationRequestStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE vacation_requests SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertQuotationTx(ctx context.Context, tx *sql.Tx, q domain.Quotation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO quotations(id,number,status,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		q.ID, q.Number, q.Status, q.CreatedBy, q.CreatedAt, q.UpdatedAt)
	return err
}

func (r Repo) GetQuotation(ctx context.Context, id string) (domain.Quotation, error) {
	return scanQuotation(r.DB.QueryRowContext(ctx, `SELECT id,number,status,created_by,created_at,updated_at FROM quotations WHERE id=?`, id))
}

func (r Repo) GetQuotationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Quotation, error) {
	return scanQuotation(tx.QueryRowContext(ctx, `SELECT id,number,status,created_by,created_at,updated_at FROM quotations WHERE id=?`, id))
}

func scanQuotation(row *sql.Row) (domain.Quotation, error) {
	var q domain.Quotation
	err := row.Scan(&q.ID, &q.Number, &q.Status, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	return q, err
}

func (r Repo) UpdateQuotationStatusTx(ctx context.Context, tx *sql.Tx, id, status, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE quotations SET status=?, updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
