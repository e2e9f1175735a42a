package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"gamechar/internal/delivery"
	"gamechar/internal/domain"
	"gamechar/internal/messages"
	"gamechar/internal/middleware"
)

type deliveryRequest struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
}

type deliveryResponse struct {
	Result  domain.DeliveryResult `json:"result"`
	Message string                `json:"message"`
}

// Deliver emails the final image or uploads it to the drive folder.
func (a *App) Deliver(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		a.badRequest(w, r, "bad_request")
		return
	}
	kind := domain.DeliveryKind(strings.ToLower(strings.TrimSpace(req.Kind)))
	target := strings.TrimSpace(req.Target)
	switch kind {
	case domain.DeliveryEmail:
		addr, err := delivery.ParseRecipient(target)
		if err != nil {
			a.error(w, r, err)
			return
		}
		target = addr
	case domain.DeliveryDrive:
	default:
		a.badRequest(w, r, "unknown_kind")
		return
	}

	res, err := a.Pipeline.RequestDelivery(r.Context(), kind, target)
	if err != nil {
		a.error(w, r, err)
		return
	}
	key := messages.KeyEmailSent
	if kind == domain.DeliveryDrive {
		key = messages.KeyDriveUploaded
	}
	a.json(w, http.StatusOK, deliveryResponse{Result: res, Message: messages.Text(middleware.LocaleFromContext(r.Context()), key)})
}
