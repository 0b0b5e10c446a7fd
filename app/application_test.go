package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vmget/handlers"
)

func TestApplication_Handler(t *testing.T) {
	container, err := NewContainer(newTestConfig(t), nil)
	require.NoError(t, err)

	app := NewApplication(container)
	require.NoError(t, app.Start())
	defer app.Stop()
	require.NotEmpty(t, app.Addr())

	resp, err := http.Get("http://" + app.Addr() + "/api/os")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	var list []handlers.OSSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Alpine Linux", list[0].PrettyName)
}

func TestApplication_RunStopsOnCancel(t *testing.T) {
	container, err := NewContainer(newTestConfig(t), nil)
	require.NoError(t, err)

	app := NewApplication(container)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
