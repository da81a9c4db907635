// Package token issues and verifies the bearer tokens messagely hands out on
// register and login.
//
// Tokens are HS256-signed JWTs carrying the username in a "username" claim.
// They are stateless: nothing is persisted server-side, so verification is a
// pure function of the token, the secret and the clock.
//
// Environment:
// - MESSAGELY_TOKEN_SECRET: signing secret, required, at least MinSecretBytes.
// - MESSAGELY_TOKEN_ISSUER: optional "iss" value; when set it is also enforced.
// - MESSAGELY_TOKEN_TTL: optional Go duration; 0 or unset means no expiry.
package token
