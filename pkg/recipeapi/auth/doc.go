// Package auth authenticates API requests.
//
// Regular API calls carry an opaque token issued by IssueToken and checked
// by TokenMiddleware. The admin tool uses a separate short-lived JWT issued
// by JWTManager and checked by AdminMiddleware and RequireStaff. Both set a
// Principal on the request, which handlers receive through WithPrincipal.
package auth
