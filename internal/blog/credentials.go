package blog

import "context"

// Credentials supplies the username/password pair applied to outgoing
// requests. Implementations that front an interactive login dialog may
// block in Refresh until the user responds.
type Credentials interface {
	Username() string
	Password() string

	// Refresh asks the provider to re-obtain credentials (for example
	// by prompting the user). It is invoked when the server rejects
	// the current pair.
	Refresh(ctx context.Context) error
}

// BasicCredentials is a fixed username/password pair.
type BasicCredentials struct {
	User string
	Pass string
}

// NewBasicCredentials wraps a fixed username/password pair.
func NewBasicCredentials(username, password string) BasicCredentials {
	return BasicCredentials{User: username, Pass: password}
}

func (c BasicCredentials) Username() string                  { return c.User }
func (c BasicCredentials) Password() string                  { return c.Pass }
func (c BasicCredentials) Refresh(ctx context.Context) error { return nil }

// Confirmer answers the "overwrite server changes?" question raised on
// the conflict-recovery path of an edit. Implementations typically show
// a yes/no prompt.
type Confirmer interface {
	ConfirmOverwrite() bool
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func() bool

func (f ConfirmerFunc) ConfirmOverwrite() bool { return f() }
