package sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect(ctx context.Context) (smtp.Client, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	return m.Called().String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	return m.Called(from).Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	return m.Called(to).Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

// bufferWriter собирает записанное письмо.
type bufferWriter struct {
	data   []byte
	closed bool
}

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *bufferWriter) Close() error {
	w.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// expectDelivery настраивает успешную отправку письма на адрес to.
func expectDelivery(transport *MockTransport, to string) (*MockSMTPClient, *bufferWriter) {
	client := new(MockSMTPClient)
	writer := &bufferWriter{}

	transport.On("GetSMTPUser").Return("noreply@example.com")
	transport.On("Connect", mock.Anything).Return(client, nil).Once()
	client.On("Mail", "noreply@example.com").Return(nil).Once()
	client.On("Rcpt", to).Return(nil).Once()
	client.On("Data").Return(writer, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()
	return client, writer
}

func TestHandleLifecycle(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		deliver      bool
		wantErr      string
		wantContains []string
	}{
		{
			name:    "cancelled is delivered",
			body:    `{"app_user_id":"u1","email":"user@example.com","event":"cancelled","snapshot":{"product_identifier":"premium_monthly","will_renew":false,"expiration_date":"2025-03-30T12:00:00Z"}}`,
			deliver: true,
			wantContains: []string{
				"Subject: Subscription Cancelled",
				"You'll still have access until Mar 30, 2025.",
			},
		},
		{
			name:    "billing issue links management url",
			body:    `{"app_user_id":"u1","email":"user@example.com","event":"billing_issue_detected","management_url":"https://example.com/manage"}`,
			deliver: true,
			wantContains: []string{
				"Subject: Payment Issue",
				"Update Payment: https://example.com/manage",
			},
		},
		{
			name: "renewed is silent",
			body: `{"app_user_id":"u1","email":"user@example.com","event":"renewed","snapshot":{"expiration_date":"2025-04-30T12:00:00Z"}}`,
		},
		{
			name: "no email",
			body: `{"app_user_id":"u1","event":"expired"}`,
		},
		{
			name: "unknown event",
			body: `{"app_user_id":"u1","email":"user@example.com","event":"paused"}`,
		},
		{
			name:    "invalid JSON",
			body:    `invalid json`,
			wantErr: "error unmarshalling message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			var (
				client *MockSMTPClient
				writer *bufferWriter
			)
			if tt.deliver {
				client, writer = expectDelivery(transport, "user@example.com")
			}
			service := NewSenderService(transport, metrics.Noop(), newNoopLogger())

			err := service.HandleLifecycle(context.Background(), []byte(tt.body))

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			transport.AssertExpectations(t)
			if !tt.deliver {
				transport.AssertNotCalled(t, "Connect")
				return
			}
			client.AssertExpectations(t)
			assert.True(t, writer.closed)
			for _, s := range tt.wantContains {
				assert.Contains(t, string(writer.data), s)
			}
		})
	}
}

func TestHandleLifecycle_SMTPErrors(t *testing.T) {
	body := []byte(`{"app_user_id":"u1","email":"user@example.com","event":"reactivated"}`)

	t.Run("connection error", func(t *testing.T) {
		transport := new(MockTransport)
		transport.On("GetSMTPUser").Return("noreply@example.com")
		transport.On("Connect", mock.Anything).Return(nil, errors.New("connection error")).Once()

		err := NewSenderService(transport, metrics.Noop(), newNoopLogger()).HandleLifecycle(context.Background(), body)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection error")
	})

	t.Run("rcpt error closes client", func(t *testing.T) {
		transport := new(MockTransport)
		client := new(MockSMTPClient)
		transport.On("GetSMTPUser").Return("noreply@example.com")
		transport.On("Connect", mock.Anything).Return(client, nil).Once()
		client.On("Mail", "noreply@example.com").Return(nil).Once()
		client.On("Rcpt", "user@example.com").Return(errors.New("mailbox unavailable")).Once()
		client.On("Close").Return(nil).Once()

		err := NewSenderService(transport, metrics.Noop(), newNoopLogger()).HandleLifecycle(context.Background(), body)
		require.Error(t, err)
		client.AssertExpectations(t)
	})
}

func TestHandleReminder(t *testing.T) {
	t.Run("renewing soon", func(t *testing.T) {
		transport := new(MockTransport)
		_, writer := expectDelivery(transport, "user@example.com")
		service := NewSenderService(transport, metrics.Noop(), newNoopLogger())

		body := []byte(`{"app_user_id":"u1","email":"user@example.com","status":{"status":"renewing_soon","message":"Renews in 2 days"}}`)
		require.NoError(t, service.HandleReminder(context.Background(), body))

		assert.Contains(t, string(writer.data), "Subject: Subscription Renews Soon")
		assert.Contains(t, string(writer.data), "Renews in 2 days.")
	})

	t.Run("active status is skipped", func(t *testing.T) {
		transport := new(MockTransport)
		service := NewSenderService(transport, metrics.Noop(), newNoopLogger())

		body := []byte(`{"app_user_id":"u1","email":"user@example.com","status":{"status":"active"}}`)
		require.NoError(t, service.HandleReminder(context.Background(), body))
		transport.AssertNotCalled(t, "Connect")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		service := NewSenderService(new(MockTransport), metrics.Noop(), newNoopLogger())
		assert.Error(t, service.HandleReminder(context.Background(), []byte("{")))
	})
}

func TestRenderBody(t *testing.T) {
	n, ok := lifecycle.Notify(lifecycle.Event{Kind: lifecycle.EventBillingIssueDetected})
	require.True(t, ok)

	assert.Contains(t, renderBody(n, ""), "Update Payment in the app store subscription settings.")

	n, ok = lifecycle.Notify(lifecycle.Event{Kind: lifecycle.EventExpired})
	require.True(t, ok)
	assert.Contains(t, renderBody(n, ""), "Resubscribe in the app.")
}
