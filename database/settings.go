package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

// guardFieldFor maps a resolvable kind to the provider-defaults field whose
// absence permits a conditional write.
func guardFieldFor(kind string) (string, error) {
	switch kind {
	case model.ReferenceKindContact:
		return "default_contact_id", nil
	case model.ReferenceKindAccount:
		return "default_account_id", nil
	case model.ReferenceKindProduct:
		return "default_product_id", nil
	case model.ReferenceKindBank:
		return "bank_account_id", nil
	default:
		return "", fmt.Errorf("no default guard for kind %q", kind)
	}
}

// GetOrganizationSettings loads an organization's sync settings snapshot.
// Organizations without a row fall back to the built-in defaults.
func (d Datasource) GetOrganizationSettings(ctx context.Context, organizationID string) (*model.Settings, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT auto_create_list, default_expense_type, default_sales_type, provider_defaults
		FROM organization_settings
		WHERE organization_id = $1
	`, organizationID)

	settings := model.DefaultSettings()
	var expenseType, salesType sql.NullString
	var providerJSON []byte
	err := row.Scan(&settings.AutoCreateList, &expenseType, &salesType, &providerJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.DefaultSettings(), nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve organization settings", err)
	}
	settings.DefaultExpenseType = expenseType.String
	settings.DefaultSalesType = salesType.String
	if len(providerJSON) > 0 {
		if err := json.Unmarshal(providerJSON, &settings.Providers); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal provider defaults", err)
		}
	}
	return settings, nil
}

// ProposeProviderDefault persists a lazily-created default entity, but only if
// no default of that kind landed first. The write is a single conditional
// update keyed on the kind's id field being absent; the loser of a race
// re-reads and adopts whatever the winner persisted. The returned block is
// always the winning one.
func (d Datasource) ProposeProviderDefault(ctx context.Context, organizationID, provider, kind string, proposed model.ProviderDefaults) (model.ProviderDefaults, error) {
	guard, err := guardFieldFor(kind)
	if err != nil {
		return model.ProviderDefaults{}, apierror.NewAPIError(apierror.ErrInternalServer, "Unknown default kind", err)
	}

	proposedJSON, err := json.Marshal(proposed)
	if err != nil {
		return model.ProviderDefaults{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal proposed defaults", err)
	}

	// Make sure the settings row exists before the conditional write.
	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO organization_settings (organization_id) VALUES ($1)
		ON CONFLICT (organization_id) DO NOTHING
	`, organizationID)
	if err != nil {
		return model.ProviderDefaults{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to ensure settings row", err)
	}

	row := d.Conn.QueryRowContext(ctx, `
		UPDATE organization_settings
		SET provider_defaults = jsonb_set(
		        COALESCE(provider_defaults, '{}'::jsonb),
		        ARRAY[$2],
		        COALESCE(provider_defaults -> $2, '{}'::jsonb) || $3::jsonb
		    ),
		    updated_at = NOW()
		WHERE organization_id = $1
		  AND provider_defaults #>> ARRAY[$2, $4] IS NULL
		RETURNING provider_defaults -> $2
	`, organizationID, provider, proposedJSON, guard)

	var winnerJSON []byte
	err = row.Scan(&winnerJSON)
	if err == sql.ErrNoRows {
		// Lost the race: another resolution persisted a default first.
		row = d.Conn.QueryRowContext(ctx, `
			SELECT provider_defaults -> $2 FROM organization_settings WHERE organization_id = $1
		`, organizationID, provider)
		err = row.Scan(&winnerJSON)
	}
	if err != nil {
		return model.ProviderDefaults{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to persist provider default", err)
	}

	var winner model.ProviderDefaults
	if len(winnerJSON) > 0 {
		if err := json.Unmarshal(winnerJSON, &winner); err != nil {
			return model.ProviderDefaults{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal provider defaults", err)
		}
	}
	return winner, nil
}
