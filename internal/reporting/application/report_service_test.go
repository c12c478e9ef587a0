package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/reporting/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

type mockEventLog struct {
	mock.Mock
}

func (m *mockEventLog) LogBatch(ctx context.Context, entries []domain.EventLogEntry) error {
	return m.Called(ctx, entries).Error(0)
}

func (m *mockEventLog) CountByType(ctx context.Context, from, to time.Time) ([]domain.EventTypeCount, error) {
	args := m.Called(ctx, from, to)
	counts, _ := args.Get(0).([]domain.EventTypeCount)
	return counts, args.Error(1)
}

func TestEventCounts(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	t.Run("sin analítica", func(t *testing.T) {
		svc := NewReportService(nil, nil, nil, sharedDomain.SystemClock{}, zap.NewNop())

		_, err := svc.EventCounts(context.Background(), from, to)

		assert.ErrorIs(t, err, domain.ErrAnalyticsDisabled)
	})

	t.Run("ventana inválida", func(t *testing.T) {
		svc := NewReportService(nil, nil, new(mockEventLog), sharedDomain.SystemClock{}, zap.NewNop())

		_, err := svc.EventCounts(context.Background(), to, from)

		assert.ErrorIs(t, err, domain.ErrInvalidReportQuery)
	})

	t.Run("delegates", func(t *testing.T) {
		sink := new(mockEventLog)
		want := []domain.EventTypeCount{{Type: "InvoiceApprovedEvent", Count: 3}}
		sink.On("CountByType", mock.Anything, from, to).Return(want, nil)
		svc := NewReportService(nil, nil, sink, sharedDomain.SystemClock{}, zap.NewNop())

		got, err := svc.EventCounts(context.Background(), from, to)

		require.NoError(t, err)
		assert.Equal(t, want, got)
		sink.AssertExpectations(t)
	})
}
