package database

import (
	"context"
	"database/sql"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

// UpsertReferences stores a page of bulk-fetched remote entities in the local
// mirror. Existing rows are refreshed by (organization, provider, kind,
// external id).
func (d Datasource) UpsertReferences(ctx context.Context, organizationID, provider, kind string, refs []model.Reference) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin reference upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ref := range refs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reference_entities (organization_id, provider, kind, external_id, name, code, type, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (organization_id, provider, kind, external_id)
			DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code, type = EXCLUDED.type, updated_at = NOW()
		`, organizationID, provider, kind, ref.ID, ref.Name, ref.Code, ref.Type)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert reference entity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit reference upsert", err)
	}
	return nil
}

func (d Datasource) GetReferences(ctx context.Context, organizationID, provider, kind string) ([]model.Reference, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT external_id, name, code, type
		FROM reference_entities
		WHERE organization_id = $1 AND provider = $2 AND kind = $3
		ORDER BY name ASC
	`, organizationID, provider, kind)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reference entities", err)
	}
	defer rows.Close()

	var refs []model.Reference
	for rows.Next() {
		var ref model.Reference
		var name, code, typ sql.NullString
		if err := rows.Scan(&ref.ID, &name, &code, &typ); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reference entity", err)
		}
		ref.Name = name.String
		ref.Code = code.String
		ref.Type = typ.String
		refs = append(refs, ref)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over reference entities", err)
	}
	return refs, nil
}
