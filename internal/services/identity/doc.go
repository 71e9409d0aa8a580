// Package identity implements the administrative operations over users and
// roles.
//
// Every property read or write is driven by metadata: the Manager validates
// submitted values against the registered descriptors, applies them through
// the descriptors' bindings, and persists the entity through a repository.
// Properties registered without a binding are resolved by a Policy, which
// also contributes store-specific validation such as username uniqueness.
//
// Operations return a result.Result (or DataResult) for failures an
// administrator can fix, and a Go error for faults:
//
//	res, err := svc.SetUserProperty(ctx, subject, "email", "alice@example.com")
//	if err != nil {
//	    // store failure or misconfigured metadata
//	}
//	if !res.IsSuccess() {
//	    // show res.Errors
//	}
package identity
