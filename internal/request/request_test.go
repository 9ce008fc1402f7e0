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

package request

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func TestCallDecodesResponse(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "https://provider.example/v1/things",
		httpmock.NewStringResponder(http.StatusOK, `{"id":"thing_1"}`))

	req, err := New(context.Background(), http.MethodPost, "https://provider.example/v1/things", map[string]string{"name": "a"})
	assert.NoError(t, err)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	var out struct {
		ID string `json:"id"`
	}
	resp, raw, err := Call(req, &out)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "thing_1", out.ID)
	assert.JSONEq(t, `{"id":"thing_1"}`, string(raw))
}

func TestCallReturnsRawBodyOnError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodGet, "https://provider.example/v1/missing",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error":"no such record"}`))

	req, err := New(context.Background(), http.MethodGet, "https://provider.example/v1/missing", nil)
	assert.NoError(t, err)

	resp, raw, err := Call(req, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(raw), "no such record")
}

func TestBasicAuth(t *testing.T) {
	assert.Equal(t, "aWQ6c2VjcmV0", BasicAuth("id", "secret"))
}
