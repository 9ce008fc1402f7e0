package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

const integrationColumns = `integration_id, organization_id, provider, access_token, refresh_token, status, priority, expires_at, tenant_id, realm_id, org_id, created_at, updated_at`

// GetActiveIntegration loads the one credential set the processor may use for
// an (organization, provider) pair: active and priority 1.
func (d Datasource) GetActiveIntegration(ctx context.Context, organizationID, provider string) (*model.Integration, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM integrations
		WHERE organization_id = $1 AND provider = $2 AND status = 'active' AND priority = 1
	`, integrationColumns), organizationID, provider)

	integration, err := scanIntegration(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Integration not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve integration", err)
	}
	return integration, nil
}

// GetIntegration re-reads a credential row by id. The token manager uses this
// before a network refresh in case another process already refreshed.
func (d Datasource) GetIntegration(ctx context.Context, integrationID string) (*model.Integration, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM integrations
		WHERE integration_id = $1
	`, integrationColumns), integrationID)

	integration, err := scanIntegration(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Integration with ID '%s' not found", integrationID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve integration", err)
	}
	return integration, nil
}

func (d Datasource) UpdateIntegrationTokens(ctx context.Context, integration *model.Integration) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE integrations
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
		WHERE integration_id = $1
	`, integration.IntegrationID, integration.AccessToken, integration.RefreshToken, integration.ExpiresAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update integration tokens", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Integration with ID '%s' not found", integration.IntegrationID), nil)
	}
	return nil
}

// MarkIntegrationRequiresReauth flags a revoked credential set. The status is
// organization-visible; jobs against it fail with an auth error until a human
// reconnects the platform.
func (d Datasource) MarkIntegrationRequiresReauth(ctx context.Context, integrationID string) error {
	_, err := d.Conn.ExecContext(ctx, `
		UPDATE integrations
		SET status = 'requires_reauth', updated_at = NOW()
		WHERE integration_id = $1
	`, integrationID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to flag integration for re-authentication", err)
	}
	return nil
}

func scanIntegration(row rowScanner) (*model.Integration, error) {
	integration := &model.Integration{}
	var refreshToken, tenantID, realmID, orgID sql.NullString
	var expiresAt sql.NullTime
	err := row.Scan(
		&integration.IntegrationID, &integration.OrganizationID, &integration.Provider,
		&integration.AccessToken, &refreshToken, &integration.Status, &integration.Priority,
		&expiresAt, &tenantID, &realmID, &orgID,
		&integration.CreatedAt, &integration.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	integration.RefreshToken = refreshToken.String
	integration.TenantID = tenantID.String
	integration.RealmID = realmID.String
	integration.OrgID = orgID.String
	if expiresAt.Valid {
		integration.ExpiresAt = expiresAt.Time
	}
	return integration, nil
}
