package handlers

import (
	"context"
	"net/http"

	"github.com/GregMSThompson/dashboard-backend/internal/middleware"
	"github.com/GregMSThompson/dashboard-backend/internal/response"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
)

type storeProvider interface {
	For(ctx context.Context, namespace string) (*store.Store, error)
}

type eventHub interface {
	Serve(w http.ResponseWriter, r *http.Request, s *store.Store)
}

type eventHandlers struct {
	ResponseHandler response.ResponseHandler
	Stores          storeProvider
	Hub             eventHub
}

func NewEventHandlers(deps *Deps) *eventHandlers {
	return &eventHandlers{
		ResponseHandler: deps.ResponseHandler,
		Stores:          deps.Stores,
		Hub:             deps.Hub,
	}
}

// Stream upgrades to a websocket carrying every change of the caller's
// namespace. It blocks until the client goes away.
func (h *eventHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ns := middleware.Namespace(r.Context())
	st, err := h.Stores.For(r.Context(), ns)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.Hub.Serve(w, r, st)
}
