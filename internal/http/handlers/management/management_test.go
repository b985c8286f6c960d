package management

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Management(ctx context.Context, appUserID string, platform lifecycle.Platform) (*lifecycle.Management, error) {
	args := m.Called(ctx, appUserID, platform)
	if res := args.Get(0); res != nil {
		return res.(*lifecycle.Management), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestManagementHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		url            string
		appUserID      string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "ios with management url",
			url:       "/api/v1/management?platform=IOS",
			appUserID: "user_1",
			setupMock: func(m *MockService) {
				m.On("Management", mock.Anything, "user_1", lifecycle.PlatformIOS).Return(&lifecycle.Management{
					URL: "https://apps.apple.com/account/subscriptions",
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"url":"https://apps.apple.com/account/subscriptions"`,
		},
		{
			name:      "platform defaults to android",
			url:       "/api/v1/management",
			appUserID: "user_1",
			setupMock: func(m *MockService) {
				m.On("Management", mock.Anything, "user_1", lifecycle.PlatformAndroid).Return(&lifecycle.Management{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "unknown platform",
			url:            "/api/v1/management?platform=web",
			appUserID:      "user_1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"platform must be ios or android"}`,
		},
		{
			name:           "unauthorized",
			url:            "/api/v1/management",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:      "service error",
			url:       "/api/v1/management?platform=ios",
			appUserID: "user_1",
			setupMock: func(m *MockService) {
				m.On("Management", mock.Anything, "user_1", lifecycle.PlatformIOS).Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not get management instructions"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.appUserID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.AppUserID, tt.appUserID))
			}
			rr := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
