package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/idmgr/internal/db/models"
	"github.com/terraconstructs/idmgr/internal/metadata"
	"github.com/terraconstructs/idmgr/internal/result"
)

// Property types of the bundled metadata.
const (
	PropUsername  = "username"
	PropPassword  = "password"
	PropName      = "name"
	PropEmail     = "email"
	PropMobile    = "mobile"
	PropRoleAdmin = "role.admin"
	PropGravatar  = "gravatar"

	PropRoleName        = "name"
	PropRoleDescription = "description"
)

// Claim types used by the bundled metadata.
const (
	ClaimName     = "name"
	ClaimGravatar = "gravatar"
	RoleClaimType = "role"
	AdminRole     = "admin"
)

const MsgPasswordTooLong = "Password must be at most 72 bytes"

// DefaultMetadata returns a builder for the bundled user and role metadata.
// Passwords are hashed with bcrypt at the given cost.
func DefaultMetadata(passwordCost int) func() (*metadata.Metadata, error) {
	return func() (*metadata.Metadata, error) {
		username := metadata.Property(PropUsername,
			metadata.StringField(func(u *models.User) *string { return &u.Username }),
			metadata.WithDisplayName("Username"), metadata.Required())

		users := metadata.UserMetadata{
			EntityMetadata: metadata.EntityMetadata{
				SupportsCreate:   true,
				SupportsDelete:   true,
				SupportsListing:  true,
				CreateProperties: metadata.PropertySet{username},
				UpdateProperties: metadata.PropertySet{
					username,
					metadata.Property(PropPassword,
						metadata.FromFunctions(
							func(*models.User) string { return "" },
							passwordSetter(passwordCost),
						),
						metadata.WithDisplayName("Password"),
						metadata.WithDataType(metadata.Password),
						metadata.Required()),
					metadata.Property(PropName,
						metadata.FromFunctions(
							func(u *models.User) string { return u.Claims.Value(ClaimName) },
							func(u *models.User, v string) result.Result {
								u.Claims.SetValue(ClaimName, v)
								return result.Success()
							},
						),
						metadata.WithDisplayName("Display Name"),
						metadata.Required()),
					metadata.Property(PropEmail,
						metadata.StringField(func(u *models.User) *string { return &u.Email }),
						metadata.WithDisplayName("Email"),
						metadata.WithDataType(metadata.Email)),
					metadata.Property(PropMobile,
						metadata.StringField(func(u *models.User) *string { return &u.Mobile }),
						metadata.WithDisplayName("Mobile")),
					metadata.Conventional(PropRoleAdmin,
						metadata.WithDisplayName("Is Administrator"),
						metadata.WithDataType(metadata.Boolean)),
					metadata.Conventional(PropGravatar,
						metadata.WithDisplayName("Gravatar Url"),
						metadata.WithDataType(metadata.URL)),
				},
			},
			SupportsClaims: true,
		}

		roles := metadata.RoleMetadata{
			EntityMetadata: metadata.EntityMetadata{
				SupportsCreate:  true,
				SupportsDelete:  true,
				SupportsListing: true,
				CreateProperties: metadata.PropertySet{
					metadata.Property(PropRoleName,
						metadata.StringField(func(r *models.Role) *string { return &r.Name }),
						metadata.WithDisplayName("Name"), metadata.Required()),
				},
				UpdateProperties: metadata.PropertySet{
					metadata.Property(PropRoleDescription,
						metadata.StringField(func(r *models.Role) *string { return &r.Description }),
						metadata.WithDisplayName("Description")),
				},
			},
			RoleClaimType: RoleClaimType,
		}

		return &metadata.Metadata{Users: users, Roles: roles}, nil
	}
}

func passwordSetter(cost int) func(*models.User, string) result.Result {
	return func(u *models.User, v string) result.Result {
		if v == "" {
			u.PasswordHash = ""
			return result.Success()
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(v), cost)
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return result.Failure(MsgPasswordTooLong)
			}
			return result.Failure(err.Error())
		}
		u.PasswordHash = string(hash)
		return result.Success()
	}
}

// CheckPassword reports whether password matches the user's stored hash.
func CheckPassword(u *models.User, password string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
