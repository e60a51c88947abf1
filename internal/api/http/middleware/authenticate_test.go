package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	httpcontext "github.com/dtroode/househelp-server/internal/api/http/context"
	"github.com/dtroode/househelp-server/internal/model"
	"github.com/dtroode/househelp-server/internal/testutil"
)

type mockTokenService struct {
	mock.Mock
}

func (m *mockTokenService) Authenticate(ctx context.Context, token string) (model.TokenClaims, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(model.TokenClaims), args.Error(1)
}

func TestAuthenticate_Handle(t *testing.T) {
	cm := httpcontext.NewManager()

	tests := []struct {
		name       string
		required   bool
		header     string
		setup      func(*mockTokenService)
		wantStatus int
		wantCaller string
	}{
		{
			name:       "anonymous allowed",
			wantStatus: http.StatusOK,
		},
		{
			name:       "anonymous rejected when required",
			required:   true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "valid token",
			header: "Bearer good",
			setup: func(m *mockTokenService) {
				m.On("Authenticate", mock.Anything, "good").Return(model.TokenClaims{PublicKey: "GA", Role: "employer"}, nil)
			},
			wantStatus: http.StatusOK,
			wantCaller: "GA",
		},
		{
			name:   "invalid token",
			header: "bearer bad",
			setup: func(m *mockTokenService) {
				m.On("Authenticate", mock.Anything, "bad").Return(model.TokenClaims{}, errors.New("expired"))
			},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockTokenService{}
			if tt.setup != nil {
				tt.setup(tokens)
			}
			mw := NewAuthenticate(tokens, cm, tt.required, testutil.MakeNoopLogger())

			var caller string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if claims, ok := cm.GetClaimsFromContext(r.Context()); ok {
					caller = claims.PublicKey
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.Handle(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCaller, caller)
			tokens.AssertExpectations(t)
		})
	}
}
