package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdii/portal/core"
)

func TestService_Login(t *testing.T) {
	svc := NewService(core.AccessConfig{
		Admins:       []string{"boss@x.com"},
		Coordinators: []string{"a@x.com", "boss@x.com"},
	})

	tests := []struct {
		name    string
		email   string
		want    Session
		wantErr bool
	}{
		{name: "admin", email: "boss@x.com", want: Session{Email: "boss@x.com", IsAdmin: true}},
		{name: "coordinator", email: " a@x.com ", want: Session{Email: "a@x.com"}},
		{name: "unknown", email: "z@x.com", wantErr: true},
		{name: "case sensitive", email: "A@x.com", wantErr: true},
		{name: "blank", email: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Login(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok)
				assert.Equal(t, ErrNotAuthorized, vErr.Err)
				assert.Equal(t, "email", vErr.Fields[0].Field)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Refresh(t *testing.T) {
	svc := NewService(core.AccessConfig{Coordinators: []string{"a@x.com"}})

	sess, err := svc.Refresh(Session{Email: "a@x.com", IsAdmin: true})
	require.NoError(t, err)
	assert.False(t, sess.IsAdmin, "role is recomputed from the allowlists")
	assert.Equal(t, "coordinator", sess.Role())

	_, err = svc.Refresh(Session{Email: "gone@x.com"})
	assert.Error(t, err)
}
