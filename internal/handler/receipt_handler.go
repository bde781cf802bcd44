// internal/handler/receipt_handler.go
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/campaign-delivery/internal/controller"
	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/queue"
	"github.com/unclebandit/campaign-delivery/internal/receipts"
	"github.com/unclebandit/campaign-delivery/internal/vendor"
)

// ReceiptReceiver is satisfied by *receipts.Ingress.
type ReceiptReceiver interface {
	Receive(ctx context.Context, r model.DeliveryReceipt) (receipts.Ack, error)
}

// QueueAdmin is satisfied by *queue.DeliveryQueue.
type QueueAdmin interface {
	Status() queue.Status
	Metrics() queue.Metrics
	Clear() int
}

// ReceiptHandler serves vendor delivery callbacks and queue administration.
type ReceiptHandler struct {
	Ingress ReceiptReceiver
	Queue   QueueAdmin
	Log     logrus.FieldLogger

	// TwilioAuthToken enables X-Twilio-Signature checks when set.
	TwilioAuthToken string
	// TwilioCallbackURL is the public URL Twilio signs requests against.
	TwilioCallbackURL string
}

func (h *ReceiptHandler) Routes(r chi.Router) {
	r.Post("/webhook", h.Webhook)
	r.Post("/twilio", h.TwilioCallback)
	r.Get("/queue-status", h.QueueStatus)
	r.Get("/queue-metrics", h.QueueMetrics)
	r.Delete("/queue", h.ClearQueue)
}

// Webhook accepts a JSON receipt. 200 means queued, not applied.
func (h *ReceiptHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	var receipt model.DeliveryReceipt
	if err := controller.DecodeJSON(r, &receipt); err != nil {
		controller.RespondError(w, err)
		return
	}
	h.receive(w, r, receipt)
}

// TwilioCallback accepts Twilio's form-encoded status callback.
func (h *ReceiptHandler) TwilioCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		controller.WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	if h.TwilioAuthToken != "" {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !vendor.ValidTwilioSignature(h.TwilioAuthToken, h.TwilioCallbackURL, params, r.Header.Get("X-Twilio-Signature")) {
			controller.WriteError(w, http.StatusForbidden, "invalid twilio signature")
			return
		}
	}

	sid := r.PostForm.Get("MessageSid")
	twilioStatus := r.PostForm.Get("MessageStatus")
	status, ok := vendor.TwilioReceiptStatus(twilioStatus)
	if !ok {
		h.Log.WithFields(logrus.Fields{"message_id": sid, "twilio_status": twilioStatus}).Debug("ignoring intermediate twilio status")
		controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "ignored": true})
		return
	}

	receipt := model.DeliveryReceipt{MessageID: sid, Status: status, Timestamp: time.Now().UTC()}
	meta := model.Metadata{"provider": "twilio", "twilio_status": twilioStatus}
	if code := r.PostForm.Get("ErrorCode"); code != "" {
		meta["error_code"] = code
		meta["error"] = "Twilio error " + code
	}
	receipt.Metadata = meta
	h.receive(w, r, receipt)
}

func (h *ReceiptHandler) receive(w http.ResponseWriter, r *http.Request, receipt model.DeliveryReceipt) {
	ack, err := h.Ingress.Receive(r.Context(), receipt)
	if err != nil {
		controller.RespondError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"accepted":  ack.Accepted,
		"queued":    ack.Queued,
		"duplicate": ack.Duplicate,
		"messageId": ack.MessageID,
		"status":    ack.Status,
	})
}

func (h *ReceiptHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	controller.WriteJSON(w, http.StatusOK, h.Queue.Status())
}

func (h *ReceiptHandler) QueueMetrics(w http.ResponseWriter, r *http.Request) {
	controller.WriteJSON(w, http.StatusOK, h.Queue.Metrics())
}

// ClearQueue drops every pending update. Those receipts are lost.
func (h *ReceiptHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	dropped := h.Queue.Clear()
	h.Log.WithField("dropped", dropped).Warn("delivery queue cleared")
	controller.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "dropped": dropped})
}
