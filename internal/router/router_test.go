package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/usersvc/internal/db/memorystorage"
	"github.com/patric-chuzhbe/usersvc/internal/logger"
	"github.com/patric-chuzhbe/usersvc/internal/mockstorage"
	"github.com/patric-chuzhbe/usersvc/internal/models"
)

type initOption func(*initOptions)

type initOptions struct {
	mockStorage storage
}

func withMockStorage(db storage) initOption {
	return func(options *initOptions) {
		options.mockStorage = db
	}
}

func setupTestRouter(t *testing.T, optionsProto ...initOption) (*httptest.Server, storage) {
	t.Helper()

	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := logger.Init("debug")
	require.NoError(t, err)

	var db storage
	if options.mockStorage != nil {
		db = options.mockStorage
	} else {
		db, err = memorystorage.New()
		require.NoError(t, err)
	}

	server := httptest.NewServer(New(db))
	t.Cleanup(server.Close)

	return server, db
}

func createTestUser(t *testing.T, server *httptest.Server, name, surname, password string) models.UserResponse {
	t.Helper()

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"name":     name,
			"surname":  surname,
			"password": password,
		}).
		Post(server.URL + "/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var created models.UserResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &created))

	return created
}

func TestPostUsers(t *testing.T) {
	server, _ := setupTestRouter(t)

	testCases := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{
			name:         "positive",
			body:         `{"name":"A","surname":"B","password":"p"}`,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "missing_name",
			body:         `{"surname":"B","password":"p"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing_surname",
			body:         `{"name":"A","password":"p"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "missing_password",
			body:         `{"name":"A","surname":"B"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "wrong_type",
			body:         `{"name":1,"surname":"B","password":"p"}`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "malformed_JSON",
			body:         `{"name":`,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "empty_body",
			body:         ``,
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(server.URL + "/users")
			require.NoError(t, err)

			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
		})
	}
}

func TestPostUsersResponseShape(t *testing.T) {
	server, _ := setupTestRouter(t)

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(`{"name":"A","surname":"B","password":"p"}`).
		Post(server.URL + "/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body(), &payload))

	assert.Contains(t, payload, "id")
	assert.Equal(t, "A", payload["name"])
	assert.Equal(t, "B", payload["surname"])
	assert.Contains(t, payload, "created_at")
	assert.Contains(t, payload, "updated_at")
	assert.NotContains(t, payload, "password")
	assert.Equal(t, payload["created_at"], payload["updated_at"])
}

func TestGetUser(t *testing.T) {
	server, _ := setupTestRouter(t)

	created := createTestUser(t, server, "Anna", "Smirnova", "p")

	t.Run("round_trip", func(t *testing.T) {
		resp, err := resty.New().R().Get(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var fetched models.UserResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &fetched))
		assert.Equal(t, created, fetched)
	})

	t.Run("absent_id_echoed_in_message", func(t *testing.T) {
		resp, err := resty.New().R().Get(server.URL + "/users/999999")
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
		assert.Contains(t, string(resp.Body()), "999999")
	})

	t.Run("non_integer_id", func(t *testing.T) {
		resp, err := resty.New().R().Get(server.URL + "/users/abc")
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	})
}

func TestPutUser(t *testing.T) {
	server, _ := setupTestRouter(t)

	t.Run("partial_update_changes_only_named_field", func(t *testing.T) {
		created := createTestUser(t, server, "Anna", "Smirnova", "p")

		resp, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{"surname":"Kuznetsova"}`).
			Put(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var updated models.UserResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &updated))

		assert.Equal(t, "Anna", updated.Name)
		assert.Equal(t, "Kuznetsova", updated.Surname)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
		assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	})

	t.Run("empty_payload_is_a_no_op", func(t *testing.T) {
		created := createTestUser(t, server, "Petr", "Ivanov", "p")

		resp, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{}`).
			Put(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var updated models.UserResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &updated))
		assert.Equal(t, created, updated)
	})

	t.Run("absent_id", func(t *testing.T) {
		resp, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{"name":"Nobody"}`).
			Put(server.URL + "/users/999999")
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode())
		assert.Contains(t, string(resp.Body()), "999999")
	})

	t.Run("wrong_field_type", func(t *testing.T) {
		created := createTestUser(t, server, "Ivan", "Petrov", "p")

		resp, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{"name":42}`).
			Put(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	})
}

func TestDeleteUser(t *testing.T) {
	server, _ := setupTestRouter(t)

	created := createTestUser(t, server, "Anna", "Smirnova", "p")

	resp, err := resty.New().R().Delete(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Empty(t, resp.Body())

	resp, err = resty.New().R().Get(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	resp, err = resty.New().R().Delete(fmt.Sprintf("%s/users/%d", server.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestGetUsers(t *testing.T) {
	server, _ := setupTestRouter(t)

	t.Run("empty_sequence_is_not_an_error", func(t *testing.T) {
		resp, err := resty.New().R().Get(server.URL + "/users")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var users []models.UserResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &users))
		assert.Empty(t, users)
	})

	ids := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		created := createTestUser(
			t,
			server,
			fmt.Sprintf("Name%d", i),
			fmt.Sprintf("Surname%d", i),
			"p",
		)
		ids = append(ids, created.ID)
	}

	t.Run("offset_and_limit_window", func(t *testing.T) {
		resp, err := resty.New().R().Get(server.URL + "/users?offset=2&limit=2")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var window []models.UserResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &window))
		require.Len(t, window, 2)
		assert.Equal(t, ids[2], window[0].ID)
		assert.Equal(t, ids[3], window[1].ID)
	})

	t.Run("defaults_return_everything", func(t *testing.T) {
		resp, err := resty.New().R().Get(server.URL + "/users")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())

		var users []models.UserResponse
		require.NoError(t, json.Unmarshal(resp.Body(), &users))
		assert.Len(t, users, 5)
	})

	t.Run("bad_query_types", func(t *testing.T) {
		for _, query := range []string{
			"?offset=abc",
			"?limit=abc",
			"?offset=-1",
			"?limit=-1",
		} {
			resp, err := resty.New().R().Get(server.URL + "/users" + query)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode(), "query %s", query)
		}
	})
}

func TestStorageErrorsSurfaceAsServerErrors(t *testing.T) {
	db := new(mockstorage.StorageMock)
	server, _ := setupTestRouter(t, withMockStorage(db))

	db.On("ListUsers", mock.Anything, 0, models.ListUsersDefaultLimit).
		Return([]models.User(nil), errors.New("db error"))
	db.On("GetUser", mock.Anything, 1).
		Return((*models.User)(nil), false, errors.New("db error"))
	db.On("CreateUser", mock.Anything, "A", "B", "p").
		Return((*models.User)(nil), errors.New("db error"))
	db.On("UpdateUser", mock.Anything, 1, mock.Anything).
		Return((*models.User)(nil), false, errors.New("db error"))
	db.On("DeleteUser", mock.Anything, 1).
		Return(false, errors.New("db error"))

	testCases := []struct {
		name   string
		method string
		url    string
		body   string
	}{
		{name: "list", method: http.MethodGet, url: "/users"},
		{name: "get", method: http.MethodGet, url: "/users/1"},
		{name: "create", method: http.MethodPost, url: "/users", body: `{"name":"A","surname":"B","password":"p"}`},
		{name: "update", method: http.MethodPut, url: "/users/1", body: `{"name":"A"}`},
		{name: "delete", method: http.MethodDelete, url: "/users/1"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := resty.New().R()
			req.Method = testCase.method
			req.URL = server.URL + testCase.url
			if testCase.body != "" {
				req.SetHeader("Content-Type", "application/json")
				req.SetBody(testCase.body)
			}

			resp, err := req.Send()
			require.NoError(t, err)

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
		})
	}
}

func TestGetPing(t *testing.T) {
	server, _ := setupTestRouter(t)

	resp, err := resty.New().R().Get(server.URL + "/ping")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestRequestIDEchoedInResponse(t *testing.T) {
	server, _ := setupTestRouter(t)

	resp, err := resty.New().R().Get(server.URL + "/users")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}
