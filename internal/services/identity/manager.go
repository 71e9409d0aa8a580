package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/terraconstructs/idmgr/internal/db/bunx"
	"github.com/terraconstructs/idmgr/internal/db/models"
	"github.com/terraconstructs/idmgr/internal/logging"
	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/repository"
	"github.com/terraconstructs/idmgr/internal/result"
	"github.com/terraconstructs/idmgr/internal/telemetry"
	"github.com/terraconstructs/idmgr/internal/validation"
)

const tracerName = "idmgr/services/identity"

// Manager implements Service over a pair of repositories. Property reads and
// writes go through the metadata bindings; conventional properties fall back
// to the Policy.
type Manager struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	meta   *metadata.Provider
	policy Policy
	logger *zap.Logger
}

var _ Service = (*Manager)(nil)

// NewManager wires a Manager. All collaborators are required.
func NewManager(users repository.UserRepository, roles repository.RoleRepository, meta *metadata.Provider, policy Policy) (*Manager, error) {
	switch {
	case users == nil:
		return nil, errors.New("identity: user repository is required")
	case roles == nil:
		return nil, errors.New("identity: role repository is required")
	case meta == nil:
		return nil, errors.New("identity: metadata provider is required")
	case policy == nil:
		return nil, errors.New("identity: policy is required")
	}
	return &Manager{users: users, roles: roles, meta: meta, policy: policy, logger: zap.NewNop()}, nil
}

// WithLogger sets the logger used for mutations and faults.
func (m *Manager) WithLogger(l *zap.Logger) *Manager {
	m.logger = logging.OrNop(l).Named("identity")
	return m
}

func (m *Manager) GetMetadata(_ context.Context) (*metadata.Metadata, error) {
	return m.meta.Get()
}

// --- users ---

func (m *Manager) QueryUsers(ctx context.Context, filter string, start, count int) (result.DataResult[result.QueryResult[UserSummary]], error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.QueryUsers",
		attribute.String(telemetry.AttrFilter, filter))
	defer span.End()

	users, err := m.users.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return result.DataResult[result.QueryResult[UserSummary]]{}, fmt.Errorf("query users: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(filter))
	seen := make(map[string]struct{}, len(users))
	items := make([]UserSummary, 0, len(users))
	for i := range users {
		u := &users[i]
		if _, dup := seen[u.ID]; dup {
			continue
		}
		if needle != "" && !userMatches(u, needle) {
			continue
		}
		seen[u.ID] = struct{}{}
		items = append(items, userSummary(u))
	}

	page := result.Paginate(items, needle, start, count)
	return result.With(&page), nil
}

func userMatches(u *models.User, needle string) bool {
	if strings.Contains(strings.ToLower(u.Username), needle) {
		return true
	}
	for _, name := range u.Claims.Values(ClaimName) {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}

func userSummary(u *models.User) UserSummary {
	return UserSummary{Subject: u.ID, Username: u.Username, Name: u.Claims.Value(ClaimName)}
}

// GetUser returns a successful result with nil Data when the user does not exist.
func (m *Manager) GetUser(ctx context.Context, subject string) (result.DataResult[UserDetail], error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.GetUser",
		attribute.String(telemetry.AttrSubject, subject))
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return result.Fail[UserDetail](MsgSubjectRequired), nil
	}

	md, err := m.meta.Get()
	if err != nil {
		return result.DataResult[UserDetail]{}, err
	}

	user, err := m.users.GetByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return result.With[UserDetail](nil), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return result.DataResult[UserDetail]{}, fmt.Errorf("get user: %w", err)
	}

	props := make([]DisplayValue, 0, len(md.Users.UpdateProperties))
	for _, p := range md.Users.UpdateProperties {
		v, err := m.getUserProperty(ctx, p, user)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.DataResult[UserDetail]{}, err
		}
		props = append(props, DisplayValue{Type: p.Type, Value: v})
	}

	claims := make([]ClaimValue, 0, len(user.Claims))
	for _, c := range user.Claims {
		claims = append(claims, ClaimValue{Type: c.Type, Value: c.Value})
	}

	return result.With(&UserDetail{
		UserSummary: userSummary(user),
		Properties:  props,
		Claims:      claims,
	}), nil
}

func (m *Manager) CreateUser(ctx context.Context, properties []PropertyValue) (result.DataResult[CreateResult], error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.CreateUser")
	defer span.End()

	md, err := m.meta.Get()
	if err != nil {
		return result.DataResult[CreateResult]{}, err
	}
	createSet := md.Users.EffectiveCreateProperties()

	errs := validation.ValidateCreate(createSet, properties)
	for _, pv := range properties {
		if fieldRejected(createSet, pv) {
			continue
		}
		extra, err := m.policy.ValidateUserProperty(ctx, nil, pv.Type, pv.Value)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.DataResult[CreateResult]{}, fmt.Errorf("validate user property: %w", err)
		}
		errs = append(errs, extra...)
	}
	if len(errs) > 0 {
		span.SetAttributes(attribute.Int(telemetry.AttrErrorCount, len(errs)))
		return result.Fail[CreateResult](errs...), nil
	}

	user := &models.User{ID: bunx.NewUUIDv7()}
	for _, pv := range properties {
		res, err := m.setUserProperty(ctx, createSet, user, pv.Type, pv.Value)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.DataResult[CreateResult]{}, err
		}
		if !res.IsSuccess() {
			return result.From[CreateResult](res), nil
		}
	}

	taken, err := m.users.ExistsByUsername(ctx, user.Username, "")
	if err != nil {
		telemetry.RecordError(span, err)
		return result.DataResult[CreateResult]{}, fmt.Errorf("create user: %w", err)
	}
	if taken {
		return result.Fail[CreateResult](MsgUsernameInUse), nil
	}

	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return result.Fail[CreateResult](MsgUsernameInUse), nil
		}
		telemetry.RecordError(span, err)
		m.logger.Error("create user failed", zap.Error(err))
		return result.DataResult[CreateResult]{}, fmt.Errorf("create user: %w", err)
	}

	span.SetAttributes(attribute.String(telemetry.AttrSubject, user.ID))
	m.logger.Info("user created", zap.String("subject", user.ID), zap.String("username", user.Username))
	return result.With(&CreateResult{Subject: user.ID}), nil
}

// fieldRejected reports whether pv already failed its own field validation.
func fieldRejected(set metadata.PropertySet, pv PropertyValue) bool {
	p := set.Find(pv.Type)
	return p != nil && validation.ValidateField(p, pv.Value) != ""
}

// DeleteUser succeeds whether or not the user exists.
func (m *Manager) DeleteUser(ctx context.Context, subject string) (result.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.DeleteUser",
		attribute.String(telemetry.AttrSubject, subject))
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return result.Failure(MsgSubjectRequired), nil
	}
	if err := m.users.Delete(ctx, subject); err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, fmt.Errorf("delete user: %w", err)
	}
	m.logger.Info("user deleted", zap.String("subject", subject))
	return result.Success(), nil
}

func (m *Manager) SetUserProperty(ctx context.Context, subject, typ, value string) (result.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.SetUserProperty",
		attribute.String(telemetry.AttrSubject, subject),
		attribute.String(telemetry.AttrPropertyType, typ))
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return result.Failure(MsgSubjectRequired), nil
	}

	md, err := m.meta.Get()
	if err != nil {
		return result.Result{}, err
	}

	user, err := m.users.GetByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure(MsgNoUserFound), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, fmt.Errorf("set user property: %w", err)
	}

	errs := validation.ValidateUpdate(md.Users.UpdateProperties, typ, value)
	if len(errs) == 0 {
		extra, err := m.policy.ValidateUserProperty(ctx, user, typ, value)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.Result{}, fmt.Errorf("validate user property: %w", err)
		}
		errs = extra
	}
	if len(errs) > 0 {
		return result.Failure(errs...), nil
	}

	res, err := m.setUserProperty(ctx, md.Users.UpdateProperties, user, typ, value)
	if err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, err
	}
	if !res.IsSuccess() {
		return res, nil
	}

	return m.saveUser(ctx, user, "property updated", zap.String("property", typ))
}

func (m *Manager) AddUserClaim(ctx context.Context, subject, typ, value string) (result.Result, error) {
	return m.changeClaims(ctx, "identity.AddUserClaim", subject, typ, value, func(c *models.Claims) {
		c.Add(typ, value)
	})
}

func (m *Manager) RemoveUserClaim(ctx context.Context, subject, typ, value string) (result.Result, error) {
	return m.changeClaims(ctx, "identity.RemoveUserClaim", subject, typ, value, func(c *models.Claims) {
		c.Remove(typ, value)
	})
}

func (m *Manager) changeClaims(ctx context.Context, op, subject, typ, value string, apply func(*models.Claims)) (result.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, op,
		attribute.String(telemetry.AttrSubject, subject),
		attribute.String(telemetry.AttrClaimType, typ))
	defer span.End()

	var errs []string
	if strings.TrimSpace(subject) == "" {
		errs = append(errs, MsgSubjectRequired)
	}
	if strings.TrimSpace(typ) == "" {
		errs = append(errs, MsgClaimTypeRequired)
	}
	if strings.TrimSpace(value) == "" {
		errs = append(errs, MsgClaimValueRequired)
	}
	if len(errs) > 0 {
		return result.Failure(errs...), nil
	}

	user, err := m.users.GetByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure(MsgNoUserFound), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, fmt.Errorf("%s: %w", op, err)
	}

	apply(&user.Claims)
	return m.saveUser(ctx, user, "claims updated", zap.String("claim_type", typ))
}

func (m *Manager) saveUser(ctx context.Context, user *models.User, msg string, fields ...zap.Field) (result.Result, error) {
	if err := m.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return result.Failure(MsgUsernameInUse), nil
		case errors.Is(err, repository.ErrNotFound):
			return result.Failure(MsgNoUserFound), nil
		}
		m.logger.Error("update user failed", zap.String("subject", user.ID), zap.Error(err))
		return result.Result{}, fmt.Errorf("update user: %w", err)
	}
	m.logger.Info(msg, append([]zap.Field{zap.String("subject", user.ID)}, fields...)...)
	return result.Success(), nil
}

func (m *Manager) getUserProperty(ctx context.Context, p *metadata.PropertyDescriptor, user *models.User) (*string, error) {
	v, err := p.Get(ctx, user)
	if errors.Is(err, metadata.ErrNoBinding) {
		return m.policy.GetUserProperty(ctx, user, p.Type)
	}
	return v, err
}

// setUserProperty applies one value. Types not found in set, or found
// without a binding, go to the policy.
func (m *Manager) setUserProperty(ctx context.Context, set metadata.PropertySet, user *models.User, typ, value string) (result.Result, error) {
	if p := set.Find(typ); p != nil && !p.IsConventional() {
		return p.Set(ctx, user, value)
	}
	return m.policy.SetUserProperty(ctx, user, typ, value)
}

// --- roles ---

func (m *Manager) QueryRoles(ctx context.Context, filter string, start, count int) (result.DataResult[result.QueryResult[RoleSummary]], error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.QueryRoles",
		attribute.String(telemetry.AttrFilter, filter))
	defer span.End()

	roles, err := m.roles.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return result.DataResult[result.QueryResult[RoleSummary]]{}, fmt.Errorf("query roles: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(filter))
	seen := make(map[string]struct{}, len(roles))
	items := make([]RoleSummary, 0, len(roles))
	for i := range roles {
		r := &roles[i]
		if _, dup := seen[r.ID]; dup {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(r.Name), needle) &&
			!strings.Contains(strings.ToLower(r.Description), needle) {
			continue
		}
		seen[r.ID] = struct{}{}
		items = append(items, roleSummary(r))
	}

	page := result.Paginate(items, needle, start, count)
	return result.With(&page), nil
}

func roleSummary(r *models.Role) RoleSummary {
	return RoleSummary{Subject: r.ID, Name: r.Name, Description: r.Description}
}

// GetRole returns a successful result with nil Data when the role does not exist.
func (m *Manager) GetRole(ctx context.Context, subject string) (result.DataResult[RoleDetail], error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.GetRole",
		attribute.String(telemetry.AttrSubject, subject))
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return result.Fail[RoleDetail](MsgSubjectRequired), nil
	}

	md, err := m.meta.Get()
	if err != nil {
		return result.DataResult[RoleDetail]{}, err
	}

	role, err := m.roles.GetByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return result.With[RoleDetail](nil), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return result.DataResult[RoleDetail]{}, fmt.Errorf("get role: %w", err)
	}

	props := make([]DisplayValue, 0, len(md.Roles.UpdateProperties))
	for _, p := range md.Roles.UpdateProperties {
		v, err := p.Get(ctx, role)
		if errors.Is(err, metadata.ErrNoBinding) {
			v, err = m.policy.GetRoleProperty(ctx, role, p.Type)
		}
		if err != nil {
			telemetry.RecordError(span, err)
			return result.DataResult[RoleDetail]{}, err
		}
		props = append(props, DisplayValue{Type: p.Type, Value: v})
	}

	return result.With(&RoleDetail{RoleSummary: roleSummary(role), Properties: props}), nil
}

func (m *Manager) CreateRole(ctx context.Context, properties []PropertyValue) (result.DataResult[CreateResult], error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.CreateRole")
	defer span.End()

	md, err := m.meta.Get()
	if err != nil {
		return result.DataResult[CreateResult]{}, err
	}
	createSet := md.Roles.EffectiveCreateProperties()

	errs := validation.ValidateCreate(createSet, properties)
	for _, pv := range properties {
		if fieldRejected(createSet, pv) {
			continue
		}
		extra, err := m.policy.ValidateRoleProperty(ctx, nil, pv.Type, pv.Value)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.DataResult[CreateResult]{}, fmt.Errorf("validate role property: %w", err)
		}
		errs = append(errs, extra...)
	}
	if len(errs) > 0 {
		span.SetAttributes(attribute.Int(telemetry.AttrErrorCount, len(errs)))
		return result.Fail[CreateResult](errs...), nil
	}

	role := &models.Role{ID: bunx.NewUUIDv7()}
	for _, pv := range properties {
		res, err := m.setRoleProperty(ctx, createSet, role, pv.Type, pv.Value)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.DataResult[CreateResult]{}, err
		}
		if !res.IsSuccess() {
			return result.From[CreateResult](res), nil
		}
	}

	taken, err := m.roles.ExistsByName(ctx, role.Name, "")
	if err != nil {
		telemetry.RecordError(span, err)
		return result.DataResult[CreateResult]{}, fmt.Errorf("create role: %w", err)
	}
	if taken {
		return result.Fail[CreateResult](MsgRoleNameInUse), nil
	}

	if err := m.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return result.Fail[CreateResult](MsgRoleNameInUse), nil
		}
		telemetry.RecordError(span, err)
		m.logger.Error("create role failed", zap.Error(err))
		return result.DataResult[CreateResult]{}, fmt.Errorf("create role: %w", err)
	}

	m.logger.Info("role created", zap.String("subject", role.ID), zap.String("name", role.Name))
	return result.With(&CreateResult{Subject: role.ID}), nil
}

// DeleteRole succeeds whether or not the role exists.
func (m *Manager) DeleteRole(ctx context.Context, subject string) (result.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.DeleteRole",
		attribute.String(telemetry.AttrSubject, subject))
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return result.Failure(MsgSubjectRequired), nil
	}
	if err := m.roles.Delete(ctx, subject); err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, fmt.Errorf("delete role: %w", err)
	}
	m.logger.Info("role deleted", zap.String("subject", subject))
	return result.Success(), nil
}

func (m *Manager) SetRoleProperty(ctx context.Context, subject, typ, value string) (result.Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.SetRoleProperty",
		attribute.String(telemetry.AttrSubject, subject),
		attribute.String(telemetry.AttrPropertyType, typ))
	defer span.End()

	if strings.TrimSpace(subject) == "" {
		return result.Failure(MsgSubjectRequired), nil
	}

	md, err := m.meta.Get()
	if err != nil {
		return result.Result{}, err
	}

	role, err := m.roles.GetByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return result.Failure(MsgNoRoleFound), nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, fmt.Errorf("set role property: %w", err)
	}

	errs := validation.ValidateUpdate(md.Roles.UpdateProperties, typ, value)
	if len(errs) == 0 {
		extra, err := m.policy.ValidateRoleProperty(ctx, role, typ, value)
		if err != nil {
			telemetry.RecordError(span, err)
			return result.Result{}, fmt.Errorf("validate role property: %w", err)
		}
		errs = extra
	}
	if len(errs) > 0 {
		return result.Failure(errs...), nil
	}

	res, err := m.setRoleProperty(ctx, md.Roles.UpdateProperties, role, typ, value)
	if err != nil {
		telemetry.RecordError(span, err)
		return result.Result{}, err
	}
	if !res.IsSuccess() {
		return res, nil
	}

	if err := m.roles.Update(ctx, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return result.Failure(MsgRoleNameInUse), nil
		case errors.Is(err, repository.ErrNotFound):
			return result.Failure(MsgNoRoleFound), nil
		}
		telemetry.RecordError(span, err)
		return result.Result{}, fmt.Errorf("update role: %w", err)
	}
	m.logger.Info("property updated", zap.String("subject", role.ID), zap.String("property", typ))
	return result.Success(), nil
}

func (m *Manager) setRoleProperty(ctx context.Context, set metadata.PropertySet, role *models.Role, typ, value string) (result.Result, error) {
	if p := set.Find(typ); p != nil && !p.IsConventional() {
		return p.Set(ctx, role, value)
	}
	return m.policy.SetRoleProperty(ctx, role, typ, value)
}
