package api

import (
	"net/http"

	"socdash/notify"
)

const telegramBodyLimit = 256 * 1024

type telegramAlertResponse struct {
	Success   bool  `json:"success"`
	MessageID int64 `json:"messageId"`
}

// sendTelegramAlert relays an alert group to the Telegram chat named by groupId
func (a *API) sendTelegramAlert(w http.ResponseWriter, r *http.Request) {
	if a.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "Telegram relay is not configured", nil, a.logger)
		return
	}

	var req notify.AlertNotification
	if err := a.decodeJSONBodyWithLimit(w, r, &req, telegramBodyLimit); err != nil {
		return
	}
	if err := a.validateRequest(w, &req); err != nil {
		return
	}

	res, err := a.notifier.SendAlert(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, "Failed to send Telegram notification", err)
		return
	}

	LogWithRequestID(r.Context(), a.logger).Infow("Relayed alert to Telegram",
		"group_id", req.GroupID,
		"message_id", res.MessageID)
	a.respondJSON(w, telegramAlertResponse{Success: true, MessageID: res.MessageID}, http.StatusOK)
}
