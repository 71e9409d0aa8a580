package server

import "net/url"

const apiPrefix = "/api"

func usersPath() string { return apiPrefix + "/users" }
func rolesPath() string { return apiPrefix + "/roles" }

func userPath(subject string) string {
	return usersPath() + "/" + url.PathEscape(subject)
}

func userPropertyPath(subject, typ string) string {
	return userPath(subject) + "/properties/" + EncodeSegment(typ)
}

func userClaimsPath(subject string) string {
	return userPath(subject) + "/claims"
}

func userClaimPath(subject, typ, value string) string {
	return userClaimsPath(subject) + "/" + EncodeSegment(typ) + "/" + EncodeSegment(value)
}

func userRolePath(subject, role string) string {
	return userPath(subject) + "/roles/" + EncodeSegment(role)
}

func rolePath(subject string) string {
	return rolesPath() + "/" + url.PathEscape(subject)
}

func rolePropertyPath(subject, typ string) string {
	return rolePath(subject) + "/properties/" + EncodeSegment(typ)
}
