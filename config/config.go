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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"LEDGERSYNC_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"LEDGERSYNC_REDIS_DNS"`
}

// WorkerConfig carries the polling loop inputs. The poll interval, claim
// concurrency and stuck-job window are deliberate configuration inputs rather
// than embedded constants.
type WorkerConfig struct {
	PollIntervalMinMS int `json:"poll_interval_min_ms" envconfig:"LEDGERSYNC_WORKER_POLL_INTERVAL_MIN_MS"`
	PollIntervalMaxMS int `json:"poll_interval_max_ms" envconfig:"LEDGERSYNC_WORKER_POLL_INTERVAL_MAX_MS"`
	Concurrency       int `json:"concurrency" envconfig:"LEDGERSYNC_WORKER_CONCURRENCY"`
	StuckJobTimeoutM  int `json:"stuck_job_timeout_minutes" envconfig:"LEDGERSYNC_WORKER_STUCK_JOB_TIMEOUT_MINUTES"`
	MaxAttempts       int `json:"max_attempts" envconfig:"LEDGERSYNC_WORKER_MAX_ATTEMPTS"`
}

// ProviderCredentials holds one accounting platform's OAuth2 app credentials
// and endpoints.
type ProviderCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	APIBaseURL   string `json:"api_base_url"`
	TokenURL     string `json:"token_url"`
}

type ProvidersConfig struct {
	QuickBooks ProviderCredentials `json:"quickbooks"`
	Xero       ProviderCredentials `json:"xero"`
	ZohoBooks  ProviderCredentials `json:"zohobooks"`
	// RefreshBufferSeconds is the window before token expiry in which a
	// refresh is forced ahead of any remote call.
	RefreshBufferSeconds int `json:"refresh_buffer_seconds" envconfig:"LEDGERSYNC_PROVIDER_REFRESH_BUFFER_SECONDS"`
}

type Configuration struct {
	ProjectName string           `json:"project_name" envconfig:"LEDGERSYNC_PROJECT_NAME"`
	DataSource  DataSourceConfig `json:"data_source"`
	Redis       RedisConfig      `json:"redis"`
	Worker      WorkerConfig     `json:"worker"`
	Providers   ProvidersConfig  `json:"providers"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("ledgersync", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called ledgersync.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Ledgersync"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Worker.PollIntervalMinMS <= 0 {
		cnf.Worker.PollIntervalMinMS = 1000
	}
	if cnf.Worker.PollIntervalMaxMS <= cnf.Worker.PollIntervalMinMS {
		cnf.Worker.PollIntervalMaxMS = cnf.Worker.PollIntervalMinMS + 2000
	}
	if cnf.Worker.Concurrency <= 0 {
		cnf.Worker.Concurrency = 3
	}
	if cnf.Worker.StuckJobTimeoutM <= 0 {
		cnf.Worker.StuckJobTimeoutM = 15
	}
	if cnf.Worker.MaxAttempts <= 0 {
		cnf.Worker.MaxAttempts = 3
	}
	if cnf.Providers.RefreshBufferSeconds <= 0 {
		cnf.Providers.RefreshBufferSeconds = 300
	}

	return nil
}

// PollIntervalMin returns the lower bound of the idle sleep between poll cycles.
func (cnf *Configuration) PollIntervalMin() time.Duration {
	return time.Duration(cnf.Worker.PollIntervalMinMS) * time.Millisecond
}

// PollIntervalMax returns the upper bound of the idle sleep between poll cycles.
func (cnf *Configuration) PollIntervalMax() time.Duration {
	return time.Duration(cnf.Worker.PollIntervalMaxMS) * time.Millisecond
}

// StuckJobTimeout returns the inactivity window after which a processing job
// is considered abandoned by its worker.
func (cnf *Configuration) StuckJobTimeout() time.Duration {
	return time.Duration(cnf.Worker.StuckJobTimeoutM) * time.Minute
}

// RefreshBuffer returns the pre-expiry window in which access tokens are
// refreshed ahead of use.
func (cnf *Configuration) RefreshBuffer() time.Duration {
	return time.Duration(cnf.Providers.RefreshBufferSeconds) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.DataSource.Dns == "" {
		mockConfig.DataSource.Dns = "postgres://localhost/ledgersync_test"
	}
	if err := mockConfig.validateAndAddDefaults(); err != nil {
		log.Printf("mock config validation: %v", err)
	}
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
