package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// notify dispatches n after commit. It never fails the caller: errors and
// timeouts are logged and dropped.
func (c *core) notify(ctx context.Context, n port.Notification) {
	if c.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.notifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.notifier.Notify(ctx, n) }()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Warn("notification failed", zap.String("title", n.Title), zap.Error(err))
		}
	case <-ctx.Done():
		c.logger.Warn("notification timed out", zap.String("title", n.Title), zap.Duration("timeout", c.opts.notifyTimeout))
	}
}

// checkLowStock alerts admins when the item's total is at or below its threshold.
func (c *core) checkLowStock(ctx context.Context, item domain.Item) {
	if !item.IsLowStock() {
		return
	}
	c.notify(ctx, lowStockNotification(item))
}

func renderEmail(subject, body string) *port.Email {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return nil
	}
	return &port.Email{Subject: subject, HTML: buf.String()}
}

func txData(tx domain.Transaction) map[string]string {
	data := map[string]string{
		"transactionId": tx.ID,
		"itemId":        tx.ItemID,
		"kind":          string(tx.Kind()),
		"quantity":      strconv.Itoa(tx.Quantity),
		"status":        string(tx.Status),
		"createdBy":     tx.CreatedBy,
	}
	if from := tx.FromLocationID(); from != "" {
		data["fromLocationId"] = from
	}
	if to := tx.ToLocationID(); to != "" {
		data["toLocationId"] = to
	}
	return data
}

func stockAddedNotification(item domain.Item, loc domain.Location, tx domain.Transaction) port.Notification {
	msg := fmt.Sprintf("%d %s of %s added to %s.", tx.Quantity, item.Unit, item.Name, loc.Name)
	return port.Notification{
		Audience: port.AllUsers(),
		Title:    "Stock added",
		Message:  msg,
		Data:     txData(tx),
	}
}

func transferNotification(item domain.Item, from, to domain.Location, tx domain.Transaction) port.Notification {
	if tx.Status == domain.StatusPending {
		msg := fmt.Sprintf("Transfer of %d %s of %s from %s to %s is waiting for approval.",
			tx.Quantity, item.Unit, item.Name, from.Name, to.Name)
		return port.Notification{
			Audience: port.OnlyRoles(domain.RoleAdmin),
			Title:    "Transfer approval needed",
			Message:  msg,
			Data:     txData(tx),
			Email: renderEmail("Transfer approval needed", fmt.Sprintf(
				"## Transfer approval needed\n\n- **Item:** %s\n- **Quantity:** %d %s\n- **From:** %s\n- **To:** %s\n- **Requested by:** %s\n",
				item.Name, tx.Quantity, item.Unit, from.Name, to.Name, tx.CreatedBy)),
		}
	}

	msg := fmt.Sprintf("%d %s of %s moved from %s to %s.", tx.Quantity, item.Unit, item.Name, from.Name, to.Name)
	return port.Notification{
		Audience: port.AllUsers(),
		Title:    "Transfer completed",
		Message:  msg,
		Data:     txData(tx),
	}
}

func reviewNotification(item domain.Item, tx domain.Transaction) port.Notification {
	what := "Transfer"
	if tx.Kind() == domain.KindDispose {
		what = "Disposal"
	}
	verb := "approved"
	if tx.Status == domain.StatusRejected {
		verb = "rejected"
	}

	title := fmt.Sprintf("%s %s", what, verb)
	msg := fmt.Sprintf("%s of %d %s of %s was %s by %s.", what, tx.Quantity, item.Unit, item.Name, verb, tx.ApprovedBy)
	return port.Notification{
		Audience: port.AllUsers(),
		Title:    title,
		Message:  msg,
		Data:     txData(tx),
	}
}

func disposalRequestedNotification(item domain.Item, loc domain.Location, tx domain.Transaction, reason domain.DisposalReason) port.Notification {
	msg := fmt.Sprintf("Disposal of %d %s of %s at %s (%s) is waiting for approval.",
		tx.Quantity, item.Unit, item.Name, loc.Name, reason)
	data := txData(tx)
	data["reason"] = string(reason)
	return port.Notification{
		Audience: port.OnlyRoles(domain.RoleAdmin),
		Title:    "Disposal approval needed",
		Message:  msg,
		Data:     data,
		Email: renderEmail("Disposal approval needed", fmt.Sprintf(
			"## Disposal approval needed\n\n- **Item:** %s\n- **Quantity:** %d %s\n- **Location:** %s\n- **Reason:** %s\n- **Requested by:** %s\n",
			item.Name, tx.Quantity, item.Unit, loc.Name, reason, tx.CreatedBy)),
	}
}

func sentForRepairNotification(item domain.Item, loc domain.Location, ticket domain.RepairTicket) port.Notification {
	msg := fmt.Sprintf("%d %s of %s sent from %s to %s for repair.",
		ticket.Quantity, item.Unit, item.Name, loc.Name, ticket.VendorName)
	return port.Notification{
		Audience: port.AllUsers(),
		Title:    "Item sent for repair",
		Message:  msg,
		Data:     ticketData(ticket),
	}
}

func repairReturnedNotification(item domain.Item, loc domain.Location, ticket domain.RepairTicket) port.Notification {
	msg := fmt.Sprintf("%d %s of %s returned from %s to %s.",
		ticket.Quantity, item.Unit, item.Name, ticket.VendorName, loc.Name)
	data := ticketData(ticket)
	data["returnLocationId"] = loc.ID
	return port.Notification{
		Audience: port.AllUsers(),
		Title:    "Repair completed",
		Message:  msg,
		Data:     data,
	}
}

func repairLostNotification(item domain.Item, ticket domain.RepairTicket) port.Notification {
	msg := fmt.Sprintf("%d %s of %s sent to %s were marked as lost.", ticket.Quantity, item.Unit, item.Name, ticket.VendorName)
	return port.Notification{
		Audience: port.OnlyRoles(domain.RoleAdmin),
		Title:    "Repair marked lost",
		Message:  msg,
		Data:     ticketData(ticket),
	}
}

func ticketData(ticket domain.RepairTicket) map[string]string {
	return map[string]string{
		"ticketId":   ticket.ID,
		"itemId":     ticket.ItemID,
		"locationId": ticket.LocationID,
		"quantity":   strconv.Itoa(ticket.Quantity),
		"vendor":     ticket.VendorName,
		"status":     string(ticket.Status),
	}
}

func lowStockNotification(item domain.Item) port.Notification {
	total := item.TotalStock()
	msg := fmt.Sprintf("%s is low on stock: %d %s left (threshold %d).", item.Name, total, item.Unit, item.Threshold)

	body := fmt.Sprintf("## Low stock alert\n\n**%s** (%s) has **%d %s** left, at or below the threshold of %d.\n\n| Location | Quantity |\n|---|---|\n",
		item.Name, item.SKU, total, item.Unit, item.Threshold)
	for _, e := range item.Locations {
		body += fmt.Sprintf("| %s | %d |\n", e.LocationID, e.Quantity)
	}

	return port.Notification{
		Audience: port.OnlyRoles(domain.RoleAdmin),
		Title:    "Low stock alert",
		Message:  msg,
		Data: map[string]string{
			"itemId":     item.ID,
			"totalStock": strconv.Itoa(total),
			"threshold":  strconv.Itoa(item.Threshold),
		},
		Email: renderEmail("Low stock: "+item.Name, body),
	}
}
