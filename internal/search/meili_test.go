package search

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMeiliServer(t *testing.T, up *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/health" {
			if !up.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"message":"down","code":"internal","type":"internal","link":""}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"available"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"taskUid":1,"indexUid":"vsg_news","status":"enqueued","type":"indexCreation"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMeiliRecoveryRunsHookOnce(t *testing.T) {
	var up atomic.Bool
	srv := fakeMeiliServer(t, &up)
	m := NewMeili(srv.URL, "", nil)
	defer m.Close()
	require.False(t, m.Healthy())

	var recovered atomic.Int32
	m.OnRecover(func() { recovered.Add(1) })

	m.checkHealth()
	assert.False(t, m.Healthy())
	assert.Zero(t, recovered.Load())

	up.Store(true)
	m.checkHealth()
	assert.True(t, m.Healthy())
	assert.Equal(t, int32(1), recovered.Load())

	m.checkHealth()
	assert.Equal(t, int32(1), recovered.Load(), "only the down to up transition counts")

	up.Store(false)
	m.checkHealth()
	up.Store(true)
	m.checkHealth()
	assert.Equal(t, int32(2), recovered.Load())
}

func TestMergePagesMatchesScanPaging(t *testing.T) {
	pages := [][]Result{
		{{Type: ResultNews, ID: "1"}, {Type: ResultNews, ID: "2"}, {Type: ResultNews, ID: "3"}},
		{{Type: ResultFAQ, ID: "1"}, {Type: ResultFAQ, ID: "2"}, {Type: ResultFAQ, ID: "3"}},
		{{Type: ResultRule, ID: "1"}, {Type: ResultRule, ID: "2"}, {Type: ResultRule, ID: "3"}},
	}

	got := mergePages(pages, Query{Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, Result{Type: ResultNews, ID: "1"}, got[0])

	got = mergePages(pages, Query{Limit: 4, Offset: 2})
	require.Len(t, got, 4)
	assert.Equal(t, Result{Type: ResultNews, ID: "3"}, got[0])
	assert.Equal(t, Result{Type: ResultFAQ, ID: "3"}, got[3])

	assert.Len(t, mergePages(pages, Query{}), 9)
	assert.Empty(t, mergePages(pages, Query{Offset: 9}))
}
