package handlers

import (
	"log/slog"

	"firebase.google.com/go/v4/auth"

	"github.com/GregMSThompson/dashboard-backend/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	DashboardSvc    dashboardService
	Stores          storeProvider
	Hub             eventHub
	Firebase        *auth.Client
	// DefaultNamespace is used when a request names none and carries no
	// verified identity.
	DefaultNamespace string
}
