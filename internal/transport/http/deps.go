package http

import (
	"github.com/juststore/internal/application/account"
	fileapp "github.com/juststore/internal/application/file"
	"github.com/juststore/internal/application/upload"
)

// Deps holds the services the router exposes.
type Deps struct {
	Accounts account.Service
	Files    fileapp.Service
	Staging  *upload.Registry
}
