// Package identity implements messagely's identity layer: the credential
// store, the password authenticator and the participant resolver.
//
// Password hashes never leave this package's store records; every exported
// view of a user (User, Profile, Summary) omits them.
package identity
