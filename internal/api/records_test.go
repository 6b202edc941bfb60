package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
)

type mockRecords struct {
	mock.Mock
}

func (m *mockRecords) GetProfile(ctx context.Context) (*schemas.Profile, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*schemas.Profile)
	return p, args.Error(1)
}

func (m *mockRecords) SaveProfile(ctx context.Context, p schemas.Profile) (*schemas.Profile, error) {
	args := m.Called(ctx, p)
	saved, _ := args.Get(0).(*schemas.Profile)
	return saved, args.Error(1)
}

func (m *mockRecords) ListIPAssets(ctx context.Context) ([]schemas.IPAsset, error) {
	args := m.Called(ctx)
	assets, _ := args.Get(0).([]schemas.IPAsset)
	return assets, args.Error(1)
}

func (m *mockRecords) SaveIPAsset(ctx context.Context, a schemas.IPAsset) (*schemas.IPAsset, error) {
	args := m.Called(ctx, a)
	saved, _ := args.Get(0).(*schemas.IPAsset)
	return saved, args.Error(1)
}

func (m *mockRecords) DeleteIPAsset(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockRecords) ListCases(ctx context.Context, limit int) ([]schemas.CaseRecord, error) {
	args := m.Called(ctx, limit)
	cases, _ := args.Get(0).([]schemas.CaseRecord)
	return cases, args.Error(1)
}

func recordsRouter(rec *mockRecords) http.Handler {
	return NewRouter(testConfig(), new(mockAutomation), rec, zap.NewNop())
}

func TestProfileRoutes(t *testing.T) {
	t.Run("missing profile is a 404", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("GetProfile", mock.Anything).Return(nil, nil)

		resp := do(t, recordsRouter(rec), http.MethodGet, "/profile", "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("save returns the stored profile", func(t *testing.T) {
		rec := new(mockRecords)
		id := uuid.New()
		want := schemas.Profile{Name: "张三", Email: "z@example.com", IDCardFiles: []string{"id/front.png"}}
		rec.On("SaveProfile", mock.Anything, want).Return(&schemas.Profile{ID: id, Name: "张三"}, nil).Once()

		resp := do(t, recordsRouter(rec), http.MethodPut, "/profile",
			`{"name":"张三","email":"z@example.com","idCardFiles":["id/front.png"]}`)

		require.Equal(t, http.StatusOK, resp.Code)
		var got schemas.Profile
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
		assert.Equal(t, id, got.ID)
		rec.AssertExpectations(t)
	})

	t.Run("a profile needs a name", func(t *testing.T) {
		rec := new(mockRecords)

		resp := do(t, recordsRouter(rec), http.MethodPut, "/profile", `{"email":"z@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "name", body.Field)
		rec.AssertNotCalled(t, "SaveProfile", mock.Anything, mock.Anything)
	})

	t.Run("rejects a malformed email", func(t *testing.T) {
		rec := new(mockRecords)
		resp := do(t, recordsRouter(rec), http.MethodPut, "/profile", `{"name":"张三","email":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), `"field":"email"`)
	})
}

func TestAssetRoutes(t *testing.T) {
	id := uuid.New()

	t.Run("empty list renders as an array", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("ListIPAssets", mock.Anything).Return(nil, nil)

		resp := do(t, recordsRouter(rec), http.MethodGet, "/assets", "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.JSONEq(t, `[]`, resp.Body.String())
	})

	t.Run("create", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("SaveIPAsset", mock.Anything, schemas.IPAsset{WorkName: "山河", IsAgent: true}).
			Return(&schemas.IPAsset{ID: id, WorkName: "山河", IsAgent: true}, nil).Once()

		resp := do(t, recordsRouter(rec), http.MethodPost, "/assets", `{"workName":"山河","isAgent":true}`)

		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), id.String())
		rec.AssertExpectations(t)
	})

	t.Run("create without a work name", func(t *testing.T) {
		rec := new(mockRecords)
		resp := do(t, recordsRouter(rec), http.MethodPost, "/assets", `{"owner":"某影业"}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), `"field":"workName"`)
	})

	t.Run("delete", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("DeleteIPAsset", mock.Anything, id).Return(true, nil).Once()

		resp := do(t, recordsRouter(rec), http.MethodDelete, "/assets/"+id.String(), "")
		assert.Equal(t, http.StatusNoContent, resp.Code)
	})

	t.Run("delete unknown", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("DeleteIPAsset", mock.Anything, id).Return(false, nil).Once()

		resp := do(t, recordsRouter(rec), http.MethodDelete, "/assets/"+id.String(), "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("delete with a bad id", func(t *testing.T) {
		rec := new(mockRecords)
		resp := do(t, recordsRouter(rec), http.MethodDelete, "/assets/42", "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		rec.AssertNotCalled(t, "DeleteIPAsset", mock.Anything, mock.Anything)
	})
}

func TestCaseRoutes(t *testing.T) {
	t.Run("passes the limit through", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("ListCases", mock.Anything, 5).Return([]schemas.CaseRecord{
			{InfringingURL: "https://v.example.com/x", AssociatedIPName: "山河", Status: schemas.CaseSubmitted},
		}, nil).Once()

		resp := do(t, recordsRouter(rec), http.MethodGet, "/cases?limit=5", "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"associatedIpName":"山河"`)
		rec.AssertExpectations(t)
	})

	t.Run("default limit", func(t *testing.T) {
		rec := new(mockRecords)
		rec.On("ListCases", mock.Anything, 0).Return(nil, errors.New("connection reset")).Once()

		resp := do(t, recordsRouter(rec), http.MethodGet, "/cases", "")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})

	t.Run("rejects a bad limit", func(t *testing.T) {
		rec := new(mockRecords)
		resp := do(t, recordsRouter(rec), http.MethodGet, "/cases?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestRecordRoutesAbsentWithoutRecords(t *testing.T) {
	resp := do(t, NewRouter(testConfig(), new(mockAutomation), nil, zap.NewNop()), http.MethodGet, "/profile", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
