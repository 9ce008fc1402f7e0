/*
Copyright 2025 BillsDeck Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package provider

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/billsdeck/ledgersync/config"
	"github.com/billsdeck/ledgersync/internal/apierror"
	"github.com/billsdeck/ledgersync/model"
)

// credentialStore is the slice of the data source the token manager needs.
type credentialStore interface {
	GetIntegration(ctx context.Context, integrationID string) (*model.Integration, error)
	UpdateIntegrationTokens(ctx context.Context, integration *model.Integration) error
	MarkIntegrationRequiresReauth(ctx context.Context, integrationID string) error
}

// TokenManager owns the credential lifecycle for every adapter in the
// process. Refreshes are single-flight per integration: concurrent callers
// needing the same credential block on one network refresh and share its
// outcome.
type TokenManager struct {
	store credentialStore

	mu       sync.Mutex
	inflight map[string]*refreshCall
}

type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

func NewTokenManager(store credentialStore) *TokenManager {
	return &TokenManager{
		store:    store,
		inflight: make(map[string]*refreshCall),
	}
}

// EnsureToken returns an access token valid for at least the configured
// refresh buffer, refreshing first when needed. force skips the freshness
// check, used after a provider rejected the current token outright.
func (m *TokenManager) EnsureToken(ctx context.Context, integration *model.Integration, creds config.ProviderCredentials, force bool) (string, error) {
	if integration.Status == model.IntegrationStatusRequiresReauth {
		return "", apierror.NewAPIError(apierror.ErrAuth, "Integration requires re-authentication", nil)
	}

	conf, err := config.Fetch()
	if err != nil {
		return "", err
	}

	if !force && !integration.TokenExpiring(conf.RefreshBuffer()) {
		return integration.AccessToken, nil
	}
	return m.refresh(ctx, integration, creds, force)
}

// refresh is the single-flight gate. The first caller for an integration
// performs the refresh; everyone else waits on its outcome.
func (m *TokenManager) refresh(ctx context.Context, integration *model.Integration, creds config.ProviderCredentials, force bool) (string, error) {
	m.mu.Lock()
	if call, ok := m.inflight[integration.IntegrationID]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			if call.err == nil {
				integration.AccessToken = call.token
			}
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	m.inflight[integration.IntegrationID] = call
	m.mu.Unlock()

	call.token, call.err = m.doRefresh(ctx, integration, creds, force)
	close(call.done)

	m.mu.Lock()
	delete(m.inflight, integration.IntegrationID)
	m.mu.Unlock()

	return call.token, call.err
}

func (m *TokenManager) doRefresh(ctx context.Context, integration *model.Integration, creds config.ProviderCredentials, force bool) (string, error) {
	conf, err := config.Fetch()
	if err != nil {
		return "", err
	}

	// Another process may have refreshed already. Re-read the persisted
	// credential and adopt it when it is fresh, unless it is the very token
	// the provider just rejected.
	persisted, err := m.store.GetIntegration(ctx, integration.IntegrationID)
	if err == nil {
		if persisted.Status == model.IntegrationStatusRequiresReauth {
			integration.Status = persisted.Status
			return "", apierror.NewAPIError(apierror.ErrAuth, "Integration requires re-authentication", nil)
		}
		rejected := force && persisted.AccessToken == integration.AccessToken
		if !rejected && !persisted.TokenExpiring(conf.RefreshBuffer()) {
			*integration = *persisted
			return integration.AccessToken, nil
		}
		integration.RefreshToken = persisted.RefreshToken
	}

	oc := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: creds.TokenURL},
	}
	token, err := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: integration.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			logrus.WithField("integration_id", integration.IntegrationID).
				Warn("refresh token revoked, flagging integration for re-authentication")
			if markErr := m.store.MarkIntegrationRequiresReauth(ctx, integration.IntegrationID); markErr != nil {
				logrus.Error(markErr)
			}
			integration.Status = model.IntegrationStatusRequiresReauth
			return "", apierror.NewAPIError(apierror.ErrAuth, "Integration requires re-authentication", err)
		}
		return "", apierror.NewAPIError(apierror.ErrRemoteAPI, "Token refresh failed", err)
	}

	integration.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		integration.RefreshToken = token.RefreshToken
	}
	integration.ExpiresAt = token.Expiry

	if err := m.store.UpdateIntegrationTokens(ctx, integration); err != nil {
		return "", err
	}
	logrus.WithField("integration_id", integration.IntegrationID).Info("access token refreshed")
	return integration.AccessToken, nil
}
