package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

func TestStruct_AppealRequest(t *testing.T) {
	testCases := []struct {
		name      string
		req       schemas.AppealRequest
		wantField string
		wantMsg   string
	}{
		{name: "valid", req: schemas.AppealRequest{InfringingURL: "https://example.com/clip/1"}},
		{name: "valid with original", req: schemas.AppealRequest{InfringingURL: "https://example.com/clip/1", OriginalURL: "https://example.com/mine"}},
		{name: "missing url", req: schemas.AppealRequest{}, wantField: "infringingUrl", wantMsg: "infringingUrl is a required field"},
		{name: "not a url", req: schemas.AppealRequest{InfringingURL: "clip 1"}, wantField: "infringingUrl", wantMsg: "infringingUrl must be an absolute URL"},
		{name: "bad original", req: schemas.AppealRequest{InfringingURL: "https://example.com/1", OriginalURL: "nope"}, wantField: "originalUrl"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.req)
			if tc.wantField == "" {
				require.NoError(t, err)
				return
			}
			var verr *Error
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.wantField, verr.Field)
			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, verr.Error())
			}
		})
	}
}

func TestGet_Singleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestStruct_NonStruct(t *testing.T) {
	err := Struct(42)
	require.Error(t, err)
	var verr *Error
	assert.False(t, errors.As(err, &verr))
}
