package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/lifedata/connector/internal/models"
	"github.com/lifedata/connector/internal/warehouse"
)

const credentialColumns = "service_name, client_id, client_secret, access_token, refresh_token, token_type, scope, expires_at, metadata, updated_at"

// Repository reads and writes credential rows.
type Repository struct {
	exec warehouse.Executor
}

// NewRepository creates a Repository over exec.
func NewRepository(exec warehouse.Executor) *Repository {
	return &Repository{exec: exec}
}

// Load returns the row for service from table. A missing row yields
// *errors.ErrCredentialsNotFound.
func (r *Repository) Load(ctx context.Context, table, service string) (*models.Credential, error) {
	d := r.exec.Dialect()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE service_name = %s",
		credentialColumns, d.Table(table), d.Placeholder(1))

	res, err := r.exec.Exec(ctx, query, service)
	if err != nil {
		return nil, fmt.Errorf("load %s credentials: %w", service, err)
	}
	if res.Len() == 0 {
		return nil, &apperrors.ErrCredentialsNotFound{Service: service, Table: table}
	}
	return scanCredential(res.Rows[0])
}

// List returns every row of both credential tables ordered by service.
func (r *Repository) List(ctx context.Context) ([]*models.Credential, error) {
	d := r.exec.Dialect()
	var out []*models.Credential
	for _, table := range []string{warehouse.OAuth2CredentialsTable, warehouse.CredentialsTable} {
		query := fmt.Sprintf("SELECT %s FROM %s ORDER BY service_name", credentialColumns, d.Table(table))
		res, err := r.exec.Exec(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		for _, row := range res.Rows {
			cred, err := scanCredential(row)
			if err != nil {
				return nil, err
			}
			out = append(out, cred)
		}
	}
	return out, nil
}

// UpdateToken stores a refreshed access token. refreshToken is written only
// when non-empty.
func (r *Repository) UpdateToken(ctx context.Context, table, service, accessToken, refreshToken string, expiresAt time.Time) error {
	d := r.exec.Dialect()

	var query string
	var params []any
	if refreshToken != "" {
		query = fmt.Sprintf("UPDATE %s SET access_token = %s, refresh_token = %s, expires_at = %s, updated_at = %s WHERE service_name = %s RETURNING service_name",
			d.Table(table), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Now(), d.Placeholder(4))
		params = []any{accessToken, refreshToken, d.Time(expiresAt), service}
	} else {
		query = fmt.Sprintf("UPDATE %s SET access_token = %s, expires_at = %s, updated_at = %s WHERE service_name = %s RETURNING service_name",
			d.Table(table), d.Placeholder(1), d.Placeholder(2), d.Now(), d.Placeholder(3))
		params = []any{accessToken, d.Time(expiresAt), service}
	}

	res, err := r.exec.Exec(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("update %s token: %w", service, err)
	}
	if res.Len() == 0 {
		return &apperrors.ErrCredentialsNotFound{Service: service, Table: table}
	}
	return nil
}

// Import inserts or replaces a credential row.
func (r *Repository) Import(ctx context.Context, table string, cred *models.Credential) error {
	if strings.TrimSpace(cred.ServiceName) == "" {
		return fmt.Errorf("credential has no service_name")
	}
	d := r.exec.Dialect()

	meta := cred.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode %s metadata: %w", cred.ServiceName, err)
	}

	var expiresAt any
	if cred.ExpiresAt != nil {
		expiresAt = d.Time(*cred.ExpiresAt)
	}

	ph := make([]string, 9)
	for i := range ph {
		ph[i] = d.Placeholder(i + 1)
	}
	ph[8] = d.JSON(ph[8])

	query := fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s, %s)
ON CONFLICT (service_name) DO UPDATE SET
  client_id = EXCLUDED.client_id,
  client_secret = EXCLUDED.client_secret,
  access_token = EXCLUDED.access_token,
  refresh_token = EXCLUDED.refresh_token,
  token_type = EXCLUDED.token_type,
  scope = EXCLUDED.scope,
  expires_at = EXCLUDED.expires_at,
  metadata = EXCLUDED.metadata,
  updated_at = EXCLUDED.updated_at`,
		d.Table(table), credentialColumns, strings.Join(ph, ", "), d.Now())

	_, err = r.exec.Exec(ctx, query,
		cred.ServiceName, cred.ClientID, cred.ClientSecret, cred.AccessToken, cred.RefreshToken,
		cred.TokenType, cred.Scope, expiresAt, string(metaJSON))
	if err != nil {
		return fmt.Errorf("import %s credentials: %w", cred.ServiceName, err)
	}
	return nil
}

func scanCredential(row []any) (*models.Credential, error) {
	if len(row) < 10 {
		return nil, fmt.Errorf("credential row has %d columns, want 10", len(row))
	}
	cred := &models.Credential{
		ServiceName:  warehouse.AsString(row[0]),
		ClientID:     warehouse.AsString(row[1]),
		ClientSecret: warehouse.AsString(row[2]),
		AccessToken:  warehouse.AsString(row[3]),
		RefreshToken: warehouse.AsString(row[4]),
		TokenType:    warehouse.AsString(row[5]),
		Scope:        warehouse.AsString(row[6]),
	}

	expiresAt, err := warehouse.AsTime(row[7])
	if err != nil {
		return nil, fmt.Errorf("%s expires_at: %w", cred.ServiceName, err)
	}
	cred.ExpiresAt = expiresAt

	meta, err := warehouse.AsJSONMap(row[8])
	if err != nil {
		return nil, fmt.Errorf("%s metadata: %w", cred.ServiceName, err)
	}
	cred.Metadata = meta

	if updated, err := warehouse.AsTime(row[9]); err == nil && updated != nil {
		cred.UpdatedAt = *updated
	}
	return cred, nil
}
