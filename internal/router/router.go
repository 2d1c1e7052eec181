// Package router binds the /users HTTP routes to the storage operations.
// Every handler walks the same path: decode and validate the payload,
// run exactly one storage operation, map the result (or its absence)
// to a response payload or an error.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/usersvc/internal/logger"
	"github.com/patric-chuzhbe/usersvc/internal/models"
	"github.com/patric-chuzhbe/usersvc/internal/requestid"
)

type usersKeeper interface {
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, error)

	GetUser(ctx context.Context, userID int) (*models.User, bool, error)

	CreateUser(
		ctx context.Context,
		name,
		surname,
		password string,
	) (*models.User, error)

	UpdateUser(
		ctx context.Context,
		userID int,
		patch models.UserPatch,
	) (*models.User, bool, error)

	DeleteUser(ctx context.Context, userID int) (bool, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	usersKeeper
	pinger
}

// Router holds the dependencies of the user endpoint handlers.
type Router struct {
	db       storage
	validate *validator.Validate
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(res http.ResponseWriter, statusCode int, payload interface{}) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	if err := json.NewEncoder(res).Encode(payload); err != nil {
		logger.Log.Errorln("writing response:", err)
	}
}

func writeError(res http.ResponseWriter, statusCode int, message string) {
	writeJSON(res, statusCode, errorResponse{Error: message})
}

func (theRouter *Router) writeStorageError(res http.ResponseWriter, req *http.Request, err error) {
	logger.Log.Errorln(
		"storage error:",
		err,
		"request_id", requestid.FromContext(req.Context()),
	)
	writeError(res, http.StatusInternalServerError, "internal server error")
}

func validationDetail(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	details := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		details = append(
			details,
			fmt.Sprintf("field %q is %s", strings.ToLower(fieldError.Field()), fieldError.Tag()),
		)
	}

	return strings.Join(details, "; ")
}

func parseQueryInt(req *http.Request, name string, defaultValue int) (int, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("query parameter %q must be a non-negative integer", name)
	}

	return value, nil
}

func parseUserID(req *http.Request) (int, error) {
	userID, err := strconv.Atoi(chi.URLParam(req, "userID"))
	if err != nil {
		return 0, errors.New("the user id must be an integer")
	}

	return userID, nil
}

// GetUsers handles GET /users. Responds 200 with a (possibly empty) JSON
// array. `offset` and `limit` default to 0 and 100; there is no upper bound
// on `limit`.
func (theRouter *Router) GetUsers(res http.ResponseWriter, req *http.Request) {
	offset, err := parseQueryInt(req, "offset", 0)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := parseQueryInt(req, "limit", models.ListUsersDefaultLimit)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	users, err := theRouter.db.ListUsers(req.Context(), offset, limit)
	if err != nil {
		theRouter.writeStorageError(res, req, err)
		return
	}

	responses := funk.Map(users, func(usr models.User) models.UserResponse {
		return models.NewUserResponse(&usr)
	}).([]models.UserResponse)

	writeJSON(res, http.StatusOK, responses)
}

// PostUsers handles POST /users. Responds 201 with the created record.
func (theRouter *Router) PostUsers(res http.ResponseWriter, req *http.Request) {
	var request models.CreateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		writeError(res, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := theRouter.validate.Struct(request); err != nil {
		writeError(res, http.StatusBadRequest, validationDetail(err))
		return
	}

	usr, err := theRouter.db.CreateUser(
		req.Context(),
		request.Name,
		request.Surname,
		request.Password,
	)
	if err != nil {
		theRouter.writeStorageError(res, req, err)
		return
	}

	writeJSON(res, http.StatusCreated, models.NewUserResponse(usr))
}

// GetUser handles GET /users/{userID}. Responds 404 with the
// requested id echoed in the message when the record is absent.
func (theRouter *Router) GetUser(res http.ResponseWriter, req *http.Request) {
	userID, err := parseUserID(req)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	usr, found, err := theRouter.db.GetUser(req.Context(), userID)
	if err != nil {
		theRouter.writeStorageError(res, req, err)
		return
	}
	if !found {
		writeError(res, http.StatusNotFound, fmt.Sprintf("user %d not found", userID))
		return
	}

	writeJSON(res, http.StatusOK, models.NewUserResponse(usr))
}

// PutUser handles PUT /users/{userID}. Only the fields present in the
// payload are applied; an empty payload returns the record unchanged.
func (theRouter *Router) PutUser(res http.ResponseWriter, req *http.Request) {
	userID, err := parseUserID(req)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	var request models.UpdateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		writeError(res, http.StatusBadRequest, "malformed request body")
		return
	}

	usr, found, err := theRouter.db.UpdateUser(
		req.Context(),
		userID,
		models.UserPatch{
			Name:     request.Name,
			Surname:  request.Surname,
			Password: request.Password,
		},
	)
	if err != nil {
		theRouter.writeStorageError(res, req, err)
		return
	}
	if !found {
		writeError(res, http.StatusNotFound, fmt.Sprintf("user %d not found", userID))
		return
	}

	writeJSON(res, http.StatusOK, models.NewUserResponse(usr))
}

// DeleteUser handles DELETE /users/{userID}. Responds 204 on success.
func (theRouter *Router) DeleteUser(res http.ResponseWriter, req *http.Request) {
	userID, err := parseUserID(req)
	if err != nil {
		writeError(res, http.StatusBadRequest, err.Error())
		return
	}

	found, err := theRouter.db.DeleteUser(req.Context(), userID)
	if err != nil {
		theRouter.writeStorageError(res, req, err)
		return
	}
	if !found {
		writeError(res, http.StatusNotFound, fmt.Sprintf("user %d not found", userID))
		return
	}

	res.WriteHeader(http.StatusNoContent)
}

// GetPing handles GET /ping and reports storage connectivity.
func (theRouter *Router) GetPing(res http.ResponseWriter, req *http.Request) {
	if err := theRouter.db.Ping(req.Context()); err != nil {
		theRouter.writeStorageError(res, req, err)
		return
	}

	res.WriteHeader(http.StatusOK)
}

// New builds the chi mux with the /users routes and the request-id and
// logging middleware.
func New(db storage) *chi.Mux {
	theRouter := &Router{
		db:       db,
		validate: validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		requestid.Middleware,
		logger.WithLoggingHTTPMiddleware,
	)

	router.Route(`/users`, func(router chi.Router) {
		router.Get(`/`, theRouter.GetUsers)
		router.Post(`/`, theRouter.PostUsers)
		router.Get(`/{userID}`, theRouter.GetUser)
		router.Put(`/{userID}`, theRouter.PutUser)
		router.Delete(`/{userID}`, theRouter.DeleteUser)
	})
	router.Get(`/ping`, theRouter.GetPing)

	return router
}
