package enquiry

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

const enquiryColumns = `
	id, name, mobile_number, gst_number, business_nature,
	assigned_staff, comment, created_at, updated_at
`

func scanEnquiry(row interface{ Scan(...any) error }) (Enquiry, error) {
	var e Enquiry
	err := row.Scan(&e.ID, &e.Name, &e.MobileNumber, &e.GSTNumber,
		&e.BusinessNature, &e.AssignedStaff, &e.Comment, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Enquiry{}, err
	}
	return e, nil
}

func (r *Repository) List(ctx context.Context) ([]Enquiry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+enquiryColumns+`
		FROM enquiries
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query enquiries: %w", err)
	}
	defer rows.Close()

	enquiries := make([]Enquiry, 0)
	for rows.Next() {
		e, err := scanEnquiry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enquiry: %w", err)
		}
		enquiries = append(enquiries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate enquiries: %w", err)
	}

	return enquiries, nil
}

func (r *Repository) Create(ctx context.Context, input EnquiryInput) (Enquiry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Enquiry{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	e := Enquiry{
		ID:             id.String(),
		Name:           input.Name,
		MobileNumber:   input.MobileNumber,
		GSTNumber:      input.GSTNumber,
		BusinessNature: input.BusinessNature,
		AssignedStaff:  input.AssignedStaff,
		Comment:        input.Comment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO enquiries (`+enquiryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.Name, e.MobileNumber, e.GSTNumber, e.BusinessNature,
		e.AssignedStaff, e.Comment, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return Enquiry{}, fmt.Errorf("insert enquiry: %w", err)
	}

	return e, nil
}

func (r *Repository) Update(ctx context.Context, id string, input EnquiryInput) (Enquiry, error) {
	e, err := scanEnquiry(r.db.QueryRowContext(ctx, `
		UPDATE enquiries
		SET name = $2, mobile_number = $3, gst_number = $4, business_nature = $5,
			assigned_staff = $6, comment = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+enquiryColumns+`
	`, id, input.Name, input.MobileNumber, input.GSTNumber, input.BusinessNature,
		input.AssignedStaff, input.Comment, time.Now().UTC()))
	if err != nil {
		if err == sql.ErrNoRows {
			return Enquiry{}, err
		}
		return Enquiry{}, fmt.Errorf("update enquiry: %w", err)
	}

	return e, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enquiries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enquiry: %w", err)
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
