// Package mail delivers transactional email. The only message the flow
// sends today is the address verification link, so the interface stays
// purpose-shaped rather than generic.
package mail

import "context"

// Mailer sends the verification link for a freshly registered or
// still-unverified address.
type Mailer interface {
	SendVerificationLink(ctx context.Context, to, link string) error
}
