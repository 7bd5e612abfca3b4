package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const clientColumns = `
	id, legal_name, trade_name, email, mobile_number, business_nature,
	gst_number, loan_status, feedback, document_url, created_by,
	created_at, updated_at
`

func scanClient(row interface{ Scan(...any) error }) (Client, error) {
	var c Client
	var documentURL sql.NullString
	err := row.Scan(&c.ID, &c.LegalName, &c.TradeName, &c.Email, &c.MobileNumber,
		&c.BusinessNature, &c.GSTNumber, &c.LoanStatus, &c.Feedback,
		&documentURL, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	c.DocumentURL = documentURL.String
	return c, nil
}

func (r *Repository) List(ctx context.Context) ([]Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	clients := make([]Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}

	return clients, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE id = $1
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return Client{}, err
		}
		return Client{}, fmt.Errorf("query client: %w", err)
	}
	return c, nil
}

func (r *Repository) Create(ctx context.Context, input ClientInput, createdBy string) (Client, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Client{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	c := Client{
		ID:             id.String(),
		LegalName:      input.LegalName,
		TradeName:      input.TradeName,
		Email:          input.Email,
		MobileNumber:   input.MobileNumber,
		BusinessNature: input.BusinessNature,
		GSTNumber:      input.GSTNumber,
		LoanStatus:     LoanStatusProcessing,
		Feedback:       input.Feedback,
		DocumentURL:    input.DocumentURL,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13)
	`, c.ID, c.LegalName, c.TradeName, c.Email, c.MobileNumber, c.BusinessNature,
		c.GSTNumber, c.LoanStatus, c.Feedback, c.DocumentURL, c.CreatedBy,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return Client{}, fmt.Errorf("insert client: %w", err)
	}

	return c, nil
}

func (r *Repository) Update(ctx context.Context, id string, input ClientInput) (Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `
		UPDATE clients
		SET legal_name = $2, trade_name = $3, email = $4, mobile_number = $5,
			business_nature = $6, gst_number = $7, feedback = $8,
			document_url = COALESCE(NULLIF($9, ''), document_url), updated_at = $10
		WHERE id = $1
		RETURNING `+clientColumns+`
	`, id, input.LegalName, input.TradeName, input.Email, input.MobileNumber,
		input.BusinessNature, input.GSTNumber, input.Feedback, input.DocumentURL,
		time.Now().UTC()))
	if err != nil {
		if err == sql.ErrNoRows {
			return Client{}, err
		}
		return Client{}, fmt.Errorf("update client: %w", err)
	}

	return c, nil
}

// UpdateLoanStatus moves a client through the loan pipeline and returns the
// updated record so callers can notify the client.
func (r *Repository) UpdateLoanStatus(ctx context.Context, id, status string) (Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `
		UPDATE clients
		SET loan_status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+clientColumns+`
	`, id, status, time.Now().UTC()))
	if err != nil {
		if err == sql.ErrNoRows {
			return Client{}, err
		}
		return Client{}, fmt.Errorf("update loan status: %w", err)
	}

	return c, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
