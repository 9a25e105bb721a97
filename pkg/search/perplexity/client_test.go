package perplexity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SearchMixedCitations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.ReturnCitations)
		assert.Equal(t, "sonar", req.Model)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"content":"Cross-sectional designs cannot show causation."}}],
			"citations":["https://a.example/1",{"url":"https://b.example/2","title":"Review","snippet":"text"}],
			"usage":{"prompt_tokens":9,"completion_tokens":21}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "")
	ans, err := c.Search(context.Background(), "cross-sectional causation limits")
	require.NoError(t, err)

	assert.Equal(t, "Cross-sectional designs cannot show causation.", ans.Text)
	require.Len(t, ans.Citations, 2)
	assert.Equal(t, "https://a.example/1", ans.Citations[0].URL)
	assert.Equal(t, "Review", ans.Citations[1].Title)
	assert.Equal(t, 21, ans.Usage.CompletionTokens)
}
