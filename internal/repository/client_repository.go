package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pipeline-crm/internal/model"
)

const clientColumns = "id,name,company,email,phone,deal_value,stage,user_id,creator_name,notes,created_at,updated_at"

// ClientRepo provides CRUD operations for clients (sales opportunities).
type ClientRepo struct {
	db *sql.DB
}

// NewClientRepo returns a new ClientRepo.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

// Create inserts c on behalf of creatorID.  The owner id and creator name
// are taken from the users row inside the same statement, never from c.
// ErrNoCreator is returned when creatorID matches no user.  On success c
// is filled with the stored row.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client, creatorID string) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, company, email, phone, deal_value, stage, notes, user_id, creator_name, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, u.id, u.name, ? FROM users u WHERE u.id = ?`,
		c.ID, c.Name, c.Company, c.Email, c.Phone, c.DealValue, string(c.Stage), c.Notes, c.CreatedAt, creatorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoCreator
	}
	stored, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = stored
	return nil
}

// GetByID fetches a client by id.
func (r *ClientRepo) GetByID(ctx context.Context, id string) (model.Client, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+clientColumns+" FROM clients WHERE id=?", id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, ErrNotFound
	}
	return c, err
}

// List returns every client ordered by creation time.
func (r *ClientRepo) List(ctx context.Context) ([]model.Client, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+clientColumns+" FROM clients ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateStage overwrites the stage of id.  Any stage may replace any other.
// Returns the number of matched rows.
func (r *ClientRepo) UpdateStage(ctx context.Context, id string, stage model.Stage, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE clients SET stage=?, updated_at=? WHERE id=?", string(stage), now.UTC(), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Update overwrites the editable fields of c.  Stage, owner and creator
// name are left untouched.  Returns the number of matched rows.
func (r *ClientRepo) Update(ctx context.Context, c model.Client, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE clients SET name=?, company=?, deal_value=?, email=?, notes=?, phone=?, updated_at=? WHERE id=?",
		c.Name, c.Company, c.DealValue, c.Email, c.Notes, c.Phone, now.UTC(), c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes id and returns the number of deleted rows.
func (r *ClientRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM clients WHERE id=?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanClient(s rowScanner) (model.Client, error) {
	var (
		c                                   model.Client
		stage                               string
		company, email, phone, notes, cname sql.NullString
		updated                             sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Name, &company, &email, &phone, &c.DealValue, &stage,
		&c.UserID, &cname, &notes, &c.CreatedAt, &updated); err != nil {
		return model.Client{}, err
	}
	c.Company = company.String
	c.Email = email.String
	c.Phone = phone.String
	c.Notes = notes.String
	c.CreatorName = cname.String
	c.Stage = model.Stage(stage)
	if updated.Valid {
		t := updated.Time
		c.UpdatedAt = &t
	}
	return c, nil
}
