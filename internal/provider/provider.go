// Package provider defines the contract consumed from the remote backend:
// password authentication with an auth-state event stream, row-oriented
// queries over the products and product_stores tables, a row-level change
// feed, and the per-user wishlist. Any backend offering these semantics can
// sit behind the interfaces; memory and postgres implementations live in
// subpackages.
package provider

import (
	"context"
	"errors"

	"github.com/wolfeidau/pricescout/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrNotFound           = errors.New("row not found")
	ErrSessionRequired    = errors.New("no active session")
	ErrUnavailable        = errors.New("provider unavailable")
)

// SignUpParams carries the account creation request.
type SignUpParams struct {
	Email    string
	Password string
	Metadata models.Metadata
}

// SignUpResult reports the outcome of account creation. A nil Identity with
// RequiresVerification unset means the provider matched an existing account
// and created nothing; some backends report duplicates this way instead of
// returning ErrDuplicateAccount.
type SignUpResult struct {
	Identity             *models.Identity
	RequiresVerification bool
}

// AuthEventKind classifies auth-state transitions delivered by the provider.
type AuthEventKind string

const (
	AuthSignedIn       AuthEventKind = "SIGNED_IN"
	AuthSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
)

// AuthEvent is a single auth-state transition. Session is nil for
// AuthSignedOut.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *models.Session
}

// AuthProvider brokers authentication with the backend. Sign-in and sign-out
// are fire-and-confirm: the call returning nil only means the request was
// accepted, and the resulting session transition is delivered out-of-band on
// the auth-state event stream.
type AuthProvider interface {
	SignUp(ctx context.Context, params SignUpParams) (*SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, patch models.MetadataPatch) error

	// GetSession is the point-in-time bootstrap read. It returns (nil, nil)
	// when no session is active.
	GetSession(ctx context.Context) (*models.Session, error)

	// OnAuthStateChange registers a listener for auth-state transitions and
	// returns its unsubscribe handle. Listeners are invoked in registration
	// order; unsubscribing twice is a no-op.
	OnAuthStateChange(fn func(AuthEvent)) (unsubscribe func())
}

// ProductQuery selects rows from the products table. Results are always
// ordered by created_at descending.
type ProductQuery struct {
	Limit    int
	Offset   int
	Category string // equality filter when non-empty
	Search   string // case-insensitive substring match on title/description
}

// OfferQuery selects rows from the product_stores table for one product or
// a batch of products. Results are always ordered by price ascending.
type OfferQuery struct {
	ProductID  string
	ProductIDs []string
}

// Catalog is the row-oriented query surface over the two catalog tables.
type Catalog interface {
	SelectProducts(ctx context.Context, q ProductQuery) ([]models.Product, error)

	// GetProduct returns ErrNotFound when no row matches.
	GetProduct(ctx context.Context, id string) (*models.Product, error)

	SelectOffers(ctx context.Context, q OfferQuery) ([]models.Offer, error)
}

// Wishlist manages the signed-in user's saved products. All operations
// return ErrSessionRequired without an active session.
type Wishlist interface {
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
	ListWishlist(ctx context.Context) ([]models.Product, error)
}

// Provider is the full backend contract.
type Provider interface {
	AuthProvider
	Catalog
	Changefeed
	Wishlist
}
