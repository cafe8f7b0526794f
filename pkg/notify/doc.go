// Package notify emails deployment outcomes through an HTTP mail API.
// Delivery is best effort and never affects the deployment result.
package notify
