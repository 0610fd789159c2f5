package mailer

import (
	"fmt"

	"github.com/movenorth/booking-backend/internal/queue"
)

// Render produces the plain-text body for a template. Unknown
// templates fall back to a generic notification so a stray event never
// wedges the consumer.
func Render(template string, ctx map[string]string) string {
	switch template {
	case queue.TemplateVerifyEmail:
		return fmt.Sprintf("Hi %s,\n\nPlease verify your email by visiting:\n%s\n",
			ctx["name"], ctx["verification_link"])
	case queue.TemplateResetPassword:
		return fmt.Sprintf("Hi %s,\n\nReset your password by visiting:\n%s\n",
			ctx["name"], ctx["reset_link"])
	case queue.TemplateBookingCreated:
		return fmt.Sprintf("Hi %s,\n\nYour move on %s has been received and is pending review.\nBooking reference: %s\n",
			ctx["name"], ctx["moving_date"], ctx["booking_uid"])
	case queue.TemplateBookingCancelled:
		return fmt.Sprintf("Hi %s,\n\nYour booking %s has been cancelled.\n",
			ctx["name"], ctx["booking_uid"])
	case queue.TemplateBookingRejected:
		return fmt.Sprintf("Hi %s,\n\nUnfortunately we cannot take on your booking %s.\n",
			ctx["name"], ctx["booking_uid"])
	default:
		return "You have a new notification from MoveNorth.\n"
	}
}
