package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/minisearch/pkg/logger"
)

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker(logger.Discard())
	c.Register("index", Ping(func(context.Context) error { return nil }))
	c.Register("cache", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded}
	})

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Len(t, report.Components, 2)

	c.Register("storage", Ping(func(context.Context) error { return errors.New("unreachable") }))
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "unreachable", report.Components["storage"].Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(logger.Discard())
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("storage", Ping(func(context.Context) error { return errors.New("x") }))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
