package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/soarclient/soarsocket/pkg/model"
)

func TestDecode(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    Inbound
		wantErr error
	}{
		"announcement": {
			input: `{"type":"identity_announcement","identity":"u-1","displayName":"alice"}`,
			want:  IdentityAnnouncement{Identity: "u-1", DisplayName: "alice"},
		},
		"legacy announcement": {
			input: `{"type":"user_uuid","uuid":"u-2","name":"bob"}`,
			want:  IdentityAnnouncement{Identity: "u-2", DisplayName: "bob"},
		},
		"display name sanitized": {
			input: `{"type":"identity_announcement","identity":"u-3","displayName":" eve\u0007 "}`,
			want:  IdentityAnnouncement{Identity: "u-3", DisplayName: "eve"},
		},
		"not json": {
			input:   `{"type":`,
			wantErr: ErrMalformed,
		},
		"missing type": {
			input:   `{"identity":"u-1"}`,
			wantErr: ErrMalformed,
		},
		"announcement without identity": {
			input:   `{"type":"identity_announcement","displayName":"alice"}`,
			wantErr: ErrMalformed,
		},
		"other type": {
			input:   `{"type":"chat","text":"hi"}`,
			wantErr: ErrUnknownType,
		},
		"server frame echoed back": {
			input:   `{"type":"role_update","role":"Owner"}`,
			wantErr: ErrUnknownType,
		},
		"too large": {
			input:   `{"type":"x","pad":"` + strings.Repeat("a", MaxFrameSize) + `"}`,
			wantErr: ErrFrameTooLarge,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Decode([]byte(tc.input))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Decode err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: unexpected error: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeFrames(t *testing.T) {
	req := require.New(t)

	data, err := Encode(NewRequestIdentity())
	req.NoError(err)
	req.JSONEq(`{"type":"request_identity"}`, string(data))

	data, err = Encode(NewRoleUpdate(model.RoleStaff))
	req.NoError(err)
	req.JSONEq(`{"type":"role_update","role":"Staff"}`, string(data))

	data, err = Encode(NewServerMessage("Welcome"))
	req.NoError(err)
	req.JSONEq(`{"type":"server_message","message":"Welcome"}`, string(data))

	data, err = Encode(NewUserDirectory(nil))
	req.NoError(err)
	req.JSONEq(`{"type":"user_directory","users":[]}`, string(data))

	data, err = Encode(NewUserDirectory([]DirectoryEntry{{DisplayName: "a", Identity: "1", Role: "Premium"}}))
	req.NoError(err)
	req.JSONEq(`{"type":"user_directory","users":[{"displayName":"a","identity":"1","role":"Premium"}]}`, string(data))
}

func TestAnnouncementRoundTrip(t *testing.T) {
	data, err := Encode(NewIdentityAnnouncement("u-9", "zed"))
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, IdentityAnnouncement{Identity: "u-9", DisplayName: "zed"}, got)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"user_directory","users":[{"displayName":"a","identity":"1","role":"Staff"}]}`))
	require.NoError(t, err)
	require.Equal(t, TypeUserDirectory, env.Type)
	require.Len(t, env.Users, 1)

	_, err = DecodeEnvelope([]byte(`[]`))
	require.ErrorIs(t, err, ErrMalformed)
}
