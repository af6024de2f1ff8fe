package kv

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
)

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := PutJSON(ctx, s, "subscription_sub_1", map[string]string{"planKey": "unknown"}, map[string]string{"status": "pending_setup"})
	require.NoError(t, err)

	raw, err := s.Get(ctx, "subscription_sub_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"planKey":"unknown"}`, string(raw))

	entry, ok := s.Entry("subscription_sub_1")
	require.True(t, ok)
	assert.Equal(t, "pending_setup", entry.Metadata["status"])

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"subscription_sub_1"}, s.Keys())
}

func TestMemoryStoreInjectedError(t *testing.T) {
	s := NewMemoryStore()
	s.Err = errors.New("boom")

	err := s.Put(context.Background(), "k", []byte("v"), nil)
	assert.EqualError(t, err, "boom")
	assert.Empty(t, s.Keys())
}

func TestOpenNoneBackend(t *testing.T) {
	s, err := Open(context.Background(), "contact", config.StoreConfig{Backend: config.StoreNone}, &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "contact", config.StoreConfig{Backend: "etcd"}, &config.Config{})
	assert.Error(t, err)
}

func TestS3StorePutWritesPrefixedObject(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBody  string
		gotMeta  string
		gotCType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotMeta = r.Header.Get("X-Amz-Meta-Status")
		gotCType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewS3Store(ctx, config.S3Config{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Region:          "us-east-1",
		BucketName:      "site-records",
		EndpointURL:     srv.URL,
	}, "contact-submissions/")
	require.NoError(t, err)
	assert.Equal(t, "contact-submissions/contact_1_abc", s.ObjectKey("contact_1_abc"))

	err = s.Put(ctx, "contact_1_abc", []byte(`{"name":"Ada"}`), map[string]string{"status": "new"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/site-records/contact-submissions/contact_1_abc", gotPath)
	assert.True(t, strings.Contains(gotBody, `"name":"Ada"`))
	assert.Equal(t, "new", gotMeta)
	assert.Equal(t, "application/json", gotCType)
}

func TestRedisStorePutGet(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 13})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_, err := client.Ping(ctx).Result()
	cancel()
	if err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint (%v)", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	s := NewRedisStoreFromClient(client)
	ctx = context.Background()

	require.NoError(t, s.Put(ctx, "subscription_sub_9", []byte(`{"a":1}`), map[string]string{"planKey": "pro"}))

	raw, err := s.Get(ctx, "subscription_sub_9")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))

	meta, err := s.Metadata(ctx, "subscription_sub_9")
	require.NoError(t, err)
	assert.Equal(t, "pro", meta["planKey"])

	_, err = s.Get(ctx, "subscription_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
