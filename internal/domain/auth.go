package domain

import "context"

// CredentialProvider supplies the username and short-lived signed token used to
// authenticate connections to the managed cache.
type CredentialProvider interface {
	Credentials(ctx context.Context) (username string, token string, err error)
}
