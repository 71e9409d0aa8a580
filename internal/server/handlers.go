package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/logging"
	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/result"
	"github.com/terraconstructs/idmgr/internal/services/identity"
)

const defaultPageSize = 100

// Handlers serves the admin API over an identity.Service.
type Handlers struct {
	svc     identity.Service
	logger  *zap.Logger
	schemas *bodySchemas
}

// NewHandlers compiles the request schemas and returns the handler set.
func NewHandlers(svc identity.Service, logger *zap.Logger) (*Handlers, error) {
	if svc == nil {
		return nil, errors.New("server: identity service is required")
	}
	schemas, err := compileBodySchemas()
	if err != nil {
		return nil, fmt.Errorf("compile request schemas: %w", err)
	}
	return &Handlers{
		svc:     svc,
		logger:  logging.OrNop(logger).Named("http"),
		schemas: schemas,
	}, nil
}

// Mount registers the API routes on r.
func (h *Handlers) Mount(r chi.Router) {
	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/", h.GetMeta)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Route("/{subject}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Delete("/", h.DeleteUser)
				r.Put("/properties/{type}", h.SetUserProperty)
				r.Post("/claims", h.AddUserClaim)
				r.Delete("/claims/{type}/{value}", h.RemoveUserClaim)
				r.Post("/roles/{role}", h.AddUserRole)
				r.Delete("/roles/{role}", h.RemoveUserRole)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Get("/", h.ListRoles)
			r.Post("/", h.CreateRole)
			r.Route("/{subject}", func(r chi.Router) {
				r.Get("/", h.GetRole)
				r.Delete("/", h.DeleteRole)
				r.Put("/properties/{type}", h.SetRoleProperty)
			})
		})
	})
}

func (h *Handlers) metadata(w http.ResponseWriter, r *http.Request) (*metadata.Metadata, bool) {
	md, err := h.svc.GetMetadata(r.Context())
	if err != nil {
		h.writeFault(w, r, err)
		return nil, false
	}
	return md, true
}

// respond writes 204 for success, 400 for a failed Result and 500 for err.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, res result.Result, err error) {
	switch {
	case err != nil:
		h.writeFault(w, r, err)
	case !res.IsSuccess():
		writeFailure(w, res)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// GetMeta handles GET /api.
func (h *Handlers) GetMeta(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}

	links := Links{"users": usersPath()}
	if md.Roles.SupportsListing {
		links["roles"] = rolesPath()
	}
	if md.Users.SupportsCreate {
		links["createUser"] = CreateLink{Href: usersPath(), Meta: md.Users.EffectiveCreateProperties()}
	}
	if md.Roles.SupportsCreate {
		links["createRole"] = CreateLink{Href: rolesPath(), Meta: md.Roles.EffectiveCreateProperties()}
	}
	writeJSON(w, http.StatusOK, Resource{Data: md, Links: links})
}

// --- users ---

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Users.SupportsListing {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filter, start, count, errs := pageParams(r)
	if len(errs) > 0 {
		writeErrors(w, http.StatusBadRequest, errs...)
		return
	}

	res, err := h.svc.QueryUsers(r.Context(), filter, start, count)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	if !res.IsSuccess() {
		writeFailure(w, res.Result)
		return
	}

	data := queryData(res.Data, func(u identity.UserSummary) Resource {
		links := Links{"detail": userPath(u.Subject)}
		if md.Users.SupportsDelete {
			links["delete"] = userPath(u.Subject)
		}
		return Resource{Data: u, Links: links}
	})
	links := Links{}
	if md.Users.SupportsCreate {
		links["create"] = CreateLink{Href: usersPath(), Meta: md.Users.EffectiveCreateProperties()}
	}
	writeJSON(w, http.StatusOK, Resource{Data: data, Links: links})
}

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Users.SupportsCreate {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	props, ok := h.decodeProperties(w, r)
	if !ok {
		return
	}

	res, err := h.svc.CreateUser(r.Context(), props)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	if !res.IsSuccess() {
		writeFailure(w, res.Result)
		return
	}

	location := userPath(res.Data.Subject)
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusCreated, Resource{Data: res.Data, Links: Links{"detail": location}})
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	subject := subjectParam(r)
	res, err := h.svc.GetUser(r.Context(), subject)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	if !res.IsSuccess() {
		writeFailure(w, res.Result)
		return
	}
	if res.Data == nil {
		writeErrors(w, http.StatusNotFound, identity.MsgNoUserFound)
		return
	}

	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	user := res.Data

	data := UserDetailData{
		Subject:  user.Subject,
		Username: user.Username,
		Name:     user.Name,
		Properties: propertyResources(user.Properties, md.Users.UpdateProperties, func(typ string) string {
			return userPropertyPath(user.Subject, typ)
		}),
	}

	if md.Roles.RoleClaimType != "" {
		roles, err := h.svc.QueryRoles(r.Context(), "", -1, -1)
		if err != nil {
			h.writeFault(w, r, err)
			return
		}
		if !roles.IsSuccess() {
			writeFailure(w, roles.Result)
			return
		}
		data.Roles = roleToggles(user.Subject, user.Claims, md.Roles.RoleClaimType, roles.Data.Items)
	}

	if md.Users.SupportsClaims {
		claims := make([]Resource, 0, len(user.Claims))
		for _, c := range user.Claims {
			claims = append(claims, Resource{
				Data:  c,
				Links: Links{"delete": userClaimPath(user.Subject, c.Type, c.Value)},
			})
		}
		data.Claims = &ClaimsResource{
			Data:  claims,
			Links: Links{"create": userClaimsPath(user.Subject)},
		}
	}

	links := Links{}
	if md.Users.SupportsDelete {
		links["delete"] = userPath(user.Subject)
	}
	writeJSON(w, http.StatusOK, Resource{Data: data, Links: links})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Users.SupportsDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	res, err := h.svc.DeleteUser(r.Context(), subjectParam(r))
	h.respond(w, r, res, err)
}

// SetUserProperty handles PUT /api/users/{subject}/properties/{type}. The
// type is base64url encoded and the raw body is the new value.
func (h *Handlers) SetUserProperty(w http.ResponseWriter, r *http.Request) {
	typ, err := decodedParam(r, "type")
	if err != nil {
		writeErrors(w, http.StatusBadRequest, MsgInvalidPathParameter)
		return
	}
	value, ok := h.readValue(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SetUserProperty(r.Context(), subjectParam(r), typ, value)
	h.respond(w, r, res, err)
}

func (h *Handlers) AddUserClaim(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Users.SupportsClaims {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		h.writeBodyError(w, r, err)
		return
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeErrors(w, http.StatusBadRequest, MsgClaimDataRequired)
		return
	}
	var claim identity.ClaimValue
	if msg := decodeValidated(h.schemas.claim, body, &claim); msg != "" {
		writeErrors(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.svc.AddUserClaim(r.Context(), subjectParam(r), claim.Type, claim.Value)
	h.respond(w, r, res, err)
}

func (h *Handlers) RemoveUserClaim(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Users.SupportsClaims {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	typ, err := decodedParam(r, "type")
	if err != nil {
		writeErrors(w, http.StatusBadRequest, MsgInvalidPathParameter)
		return
	}
	value, err := decodedParam(r, "value")
	if err != nil {
		writeErrors(w, http.StatusBadRequest, MsgInvalidPathParameter)
		return
	}
	if strings.TrimSpace(typ) == "" || strings.TrimSpace(value) == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	res, err := h.svc.RemoveUserClaim(r.Context(), subjectParam(r), typ, value)
	h.respond(w, r, res, err)
}

func (h *Handlers) AddUserRole(w http.ResponseWriter, r *http.Request) {
	h.toggleRole(w, r, h.svc.AddUserClaim)
}

func (h *Handlers) RemoveUserRole(w http.ResponseWriter, r *http.Request) {
	h.toggleRole(w, r, h.svc.RemoveUserClaim)
}

// toggleRole adds or removes a role membership, recorded as a claim of the
// configured role claim type.
func (h *Handlers) toggleRole(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, subject, typ, value string) (result.Result, error)) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if md.Roles.RoleClaimType == "" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	role, err := decodedParam(r, "role")
	if err != nil {
		writeErrors(w, http.StatusBadRequest, MsgInvalidPathParameter)
		return
	}
	res, err := apply(r.Context(), subjectParam(r), md.Roles.RoleClaimType, role)
	h.respond(w, r, res, err)
}

// --- roles ---

func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Roles.SupportsListing {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	filter, start, count, errs := pageParams(r)
	if len(errs) > 0 {
		writeErrors(w, http.StatusBadRequest, errs...)
		return
	}

	res, err := h.svc.QueryRoles(r.Context(), filter, start, count)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	if !res.IsSuccess() {
		writeFailure(w, res.Result)
		return
	}

	data := queryData(res.Data, func(role identity.RoleSummary) Resource {
		links := Links{"detail": rolePath(role.Subject)}
		if md.Roles.SupportsDelete {
			links["delete"] = rolePath(role.Subject)
		}
		return Resource{Data: role, Links: links}
	})
	links := Links{}
	if md.Roles.SupportsCreate {
		links["create"] = CreateLink{Href: rolesPath(), Meta: md.Roles.EffectiveCreateProperties()}
	}
	writeJSON(w, http.StatusOK, Resource{Data: data, Links: links})
}

func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Roles.SupportsCreate {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	props, ok := h.decodeProperties(w, r)
	if !ok {
		return
	}

	res, err := h.svc.CreateRole(r.Context(), props)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	if !res.IsSuccess() {
		writeFailure(w, res.Result)
		return
	}

	location := rolePath(res.Data.Subject)
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusCreated, Resource{Data: res.Data, Links: Links{"detail": location}})
}

func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetRole(r.Context(), subjectParam(r))
	if err != nil {
		h.writeFault(w, r, err)
		return
	}
	if !res.IsSuccess() {
		writeFailure(w, res.Result)
		return
	}
	if res.Data == nil {
		writeErrors(w, http.StatusNotFound, identity.MsgNoRoleFound)
		return
	}

	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	role := res.Data

	data := RoleDetailData{
		Subject:     role.Subject,
		Name:        role.Name,
		Description: role.Description,
		Properties: propertyResources(role.Properties, md.Roles.UpdateProperties, func(typ string) string {
			return rolePropertyPath(role.Subject, typ)
		}),
	}
	links := Links{}
	if md.Roles.SupportsDelete {
		links["delete"] = rolePath(role.Subject)
	}
	writeJSON(w, http.StatusOK, Resource{Data: data, Links: links})
}

func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	md, ok := h.metadata(w, r)
	if !ok {
		return
	}
	if !md.Roles.SupportsDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	res, err := h.svc.DeleteRole(r.Context(), subjectParam(r))
	h.respond(w, r, res, err)
}

func (h *Handlers) SetRoleProperty(w http.ResponseWriter, r *http.Request) {
	typ, err := decodedParam(r, "type")
	if err != nil {
		writeErrors(w, http.StatusBadRequest, MsgInvalidPathParameter)
		return
	}
	value, ok := h.readValue(w, r)
	if !ok {
		return
	}
	res, err := h.svc.SetRoleProperty(r.Context(), subjectParam(r), typ, value)
	h.respond(w, r, res, err)
}

// --- request helpers ---

func (h *Handlers) decodeProperties(w http.ResponseWriter, r *http.Request) ([]identity.PropertyValue, bool) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeBodyError(w, r, err)
		return nil, false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		writeErrors(w, http.StatusBadRequest, MsgPropertiesRequired)
		return nil, false
	}
	var props []identity.PropertyValue
	if msg := decodeValidated(h.schemas.properties, body, &props); msg != "" {
		writeErrors(w, http.StatusBadRequest, msg)
		return nil, false
	}
	return props, true
}

func (h *Handlers) readValue(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeBodyError(w, r, err)
		return "", false
	}
	return string(body), true
}

func (h *Handlers) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrBodyTooLarge) {
		writeErrors(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	h.writeFault(w, r, err)
}

func subjectParam(r *http.Request) string {
	raw := chi.URLParam(r, "subject")
	if s, err := url.PathUnescape(raw); err == nil {
		return s
	}
	return raw
}

// pageParams reads filter, start and count from the query string.
func pageParams(r *http.Request) (filter string, start, count int, errs []string) {
	q := r.URL.Query()
	filter = q.Get("filter")
	start, count = 0, defaultPageSize

	if s := q.Get("start"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, "start must be an integer")
		}
		start = n
	}
	if s := q.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, "count must be an integer")
		}
		count = n
	}
	return filter, start, count, errs
}
