// Package notifications delivers push notifications for search lifecycle
// events through ntfy.
package notifications
