package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/soarclient/soarsocket/pkg/crypto"
	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/version"
)

const maxRequestBody = 64 << 10

// API serves the shop, user and admin HTTP endpoints.
type API struct {
	hub      *Hub
	admin    *crypto.AdminKey
	validate *validator.Validate
}

// NewAPI creates the HTTP layer. Admin requests are checked against admin.
func NewAPI(h *Hub, admin *crypto.AdminKey) *API {
	return &API{
		hub:      h,
		admin:    admin,
		validate: validator.New(),
	}
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type specialResponse struct {
	Success bool `json:"success"`
	Special bool `json:"special"`
}

type shopResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type specialUser struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type usersResponse struct {
	Success bool          `json:"success"`
	Users   []specialUser `json:"users"`
}

type handshakeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version string `json:"version"`
}

type adminRequest struct {
	AdminKey string `json:"adminKey"`
}

type userRequest struct {
	UUID     string `json:"uuid" validate:"required,max=128"`
	AdminKey string `json:"adminKey"`
}

type roleRequest struct {
	UUID     string `json:"uuid" validate:"required,max=128"`
	Role     string `json:"role" validate:"required,oneof=Normal Premium Staff Famous Owner"`
	AdminKey string `json:"adminKey"`
}

type createPremiumQuery struct {
	UUID string `validate:"required,max=128"`
	Name string `validate:"max=256"`
}

// Register mounts every API route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/handshake", a.handleHandshake)
	mux.HandleFunc("GET /v1/user/isSpecialUser", a.handleIsSpecialUser)
	mux.HandleFunc("GET /v1/shop/createPremium", a.handleCreatePremium)
	mux.HandleFunc("POST /v1/admin/verify", a.handleVerify)
	mux.HandleFunc("POST /v1/admin/addSpecialUser", a.handleAddSpecialUser)
	mux.HandleFunc("GET /v1/admin/premiumUsers", a.handlePremiumUsers)
	mux.HandleFunc("POST /v1/admin/removePremium", a.handleRemovePremium)
	mux.HandleFunc("POST /v1/admin/updateUserRole", a.handleUpdateUserRole)
}

func (a *API) handleHandshake(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, handshakeResponse{
		Success: true,
		Message: "Handshake successful",
		Version: version.String(),
	})
}

func (a *API) handleIsSpecialUser(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("uuid")
	WriteJSON(w, http.StatusOK, specialResponse{Success: true, Special: a.hub.IsSpecialRole(identity)})
}

func (a *API) handleCreatePremium(w http.ResponseWriter, r *http.Request) {
	q := createPremiumQuery{
		UUID: r.URL.Query().Get("uuid"),
		Name: r.URL.Query().Get("name"),
	}
	if err := a.validate.Struct(q); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request")
		return
	}

	link, err := a.hub.GrantPremium(r.Context(), q.UUID, q.Name)
	if err != nil {
		a.storeFailure(w, "create premium", err)
		return
	}
	WriteJSON(w, http.StatusOK, shopResponse{Success: true, URL: link})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !a.admin.Verify(req.AdminKey) {
		writeFailure(w, http.StatusForbidden, "Invalid admin key")
		return
	}
	WriteJSON(w, http.StatusOK, response{Success: true, Message: "Admin key verified"})
}

func (a *API) handleAddSpecialUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !a.decodeAdmin(w, r, &req, &req.AdminKey) {
		return
	}
	if err := a.hub.MutateRole(r.Context(), req.UUID, Change{Role: model.RolePremium}); err != nil {
		a.storeFailure(w, "add special user", err)
		return
	}
	WriteJSON(w, http.StatusOK, response{Success: true, Message: "User added as premium user"})
}

func (a *API) handlePremiumUsers(w http.ResponseWriter, r *http.Request) {
	if !a.admin.Verify(r.URL.Query().Get("adminKey")) {
		writeFailure(w, http.StatusForbidden, "Invalid admin key")
		return
	}
	users := lo.Map(a.hub.ListSpecialUsers(), func(rec model.UserRecord, _ int) specialUser {
		return specialUser{UUID: rec.Identity, Name: rec.NameOrUnknown(), Role: rec.Role.String()}
	})
	WriteJSON(w, http.StatusOK, usersResponse{Success: true, Users: users})
}

func (a *API) handleRemovePremium(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !a.decodeAdmin(w, r, &req, &req.AdminKey) {
		return
	}
	if err := a.hub.MutateRole(r.Context(), req.UUID, Change{Remove: true}); err != nil {
		a.storeFailure(w, "remove premium", err)
		return
	}
	WriteJSON(w, http.StatusOK, response{Success: true, Message: "Premium status removed"})
}

func (a *API) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// A bad key and an unknown role get the same answer.
	if !a.admin.Verify(req.AdminKey) || a.validate.Var(req.Role, "required,oneof=Normal Premium Staff Famous Owner") != nil {
		writeFailure(w, http.StatusForbidden, "Invalid request")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeFailure(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		writeFailure(w, http.StatusForbidden, "Invalid request")
		return
	}
	if err := a.hub.MutateRole(r.Context(), req.UUID, Change{Role: role}); err != nil {
		a.storeFailure(w, "update user role", err)
		return
	}
	WriteJSON(w, http.StatusOK, response{Success: true, Message: "User role updated"})
}

// decodeAdmin decodes the body, checks the admin key, then validates.
func (a *API) decodeAdmin(w http.ResponseWriter, r *http.Request, req any, key *string) bool {
	if !decodeBody(w, r, req) {
		return false
	}
	if !a.admin.Verify(*key) {
		writeFailure(w, http.StatusForbidden, "Invalid admin key")
		return false
	}
	if err := a.validate.Struct(req); err != nil {
		writeFailure(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (a *API) storeFailure(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, model.ErrIdentityEmpty) || errors.Is(err, model.ErrIdentityTooLong) {
		writeFailure(w, http.StatusBadRequest, "Invalid request")
		return
	}
	slog.Error("role mutation failed", "op", op, "err", err)
	writeFailure(w, http.StatusInternalServerError, "Internal server error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		return strings.ToLower(fe.Field())
	})
	return "Invalid field: " + strings.Join(lo.Uniq(fields), ", ")
}

func writeFailure(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, response{Success: false, Message: msg})
}

// WriteJSON encodes v and writes it with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(data, '\n'))
}
