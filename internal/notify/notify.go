package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/mcalor/sabor-emilia/config"
	"github.com/mcalor/sabor-emilia/models"
)

// StatusChange is one order status transition worth telling people about.
type StatusChange struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	Status        models.OrderStatus
	Payment       models.PaymentStatus
	Total         int64
}

// Dispatcher drains status-change events and sends best-effort emails.
// Delivery failures are logged and dropped, never retried; the order flow
// must not depend on it.
type Dispatcher struct {
	Events chan StatusChange
	Config *config.Config
	Logger *zap.SugaredLogger
}

func NewDispatcher(cfg *config.Config, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		Events: make(chan StatusChange, 64),
		Config: cfg,
		Logger: logger,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.Logger.Info("context done")
			return
		case ev, ok := <-d.Events:
			if !ok {
				d.Logger.Info("event channel closed")
				return
			}
			d.send(ev)
		}
	}
}

func (d *Dispatcher) send(ev StatusChange) {
	if d.Config.SMTPAddress == "" {
		d.Logger.Infow("smtp not configured, skipping notification",
			"orderNumber", ev.OrderNumber, "status", ev.Status)
		return
	}

	recipients := []string{ev.CustomerEmail}
	if d.Config.OwnerEmail != "" {
		recipients = append(recipients, d.Config.OwnerEmail)
	}

	subject, body := composeEmail(ev)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		d.Config.SMTPFrom, strings.Join(recipients, ", "), subject, body)

	var auth smtp.Auth
	if d.Config.SMTPUsername != "" {
		host, _, _ := strings.Cut(d.Config.SMTPAddress, ":")
		auth = smtp.PlainAuth("", d.Config.SMTPUsername, d.Config.SMTPPassword, host)
	}

	err := smtp.SendMail(d.Config.SMTPAddress, auth, d.Config.SMTPFrom, recipients, []byte(msg))
	if err != nil {
		d.Logger.Warnw("failed to send notification",
			"orderNumber", ev.OrderNumber, "error", err)
		return
	}

	d.Logger.Infow("notification sent", "orderNumber", ev.OrderNumber, "status", ev.Status)
}

func composeEmail(ev StatusChange) (string, string) {
	switch ev.Status {
	case models.OrderConfirmed:
		return fmt.Sprintf("Pedido %s confirmado", ev.OrderNumber),
			fmt.Sprintf("Hola %s,\n\nRecibimos tu pago y tu pedido %s está confirmado. Te avisaremos cuando esté en preparación.\n\nSabor Emilia",
				ev.CustomerName, ev.OrderNumber)
	case models.OrderCancelled:
		return fmt.Sprintf("Pedido %s cancelado", ev.OrderNumber),
			fmt.Sprintf("Hola %s,\n\nEl pago de tu pedido %s fue rechazado y el pedido quedó cancelado. Puedes intentar nuevamente desde la tienda.\n\nSabor Emilia",
				ev.CustomerName, ev.OrderNumber)
	default:
		return fmt.Sprintf("Pedido %s actualizado", ev.OrderNumber),
			fmt.Sprintf("Hola %s,\n\nTu pedido %s cambió de estado a %s.\n\nSabor Emilia",
				ev.CustomerName, ev.OrderNumber, ev.Status)
	}
}
