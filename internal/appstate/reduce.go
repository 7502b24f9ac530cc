package appstate

import (
	"time"

	"storefront/internal/domain"
)

// Intent is a named state transition. The set is closed; see Reduce.
type Intent interface {
	isIntent()
}

type (
	RequestStart   struct{}
	RequestSuccess struct{}
	RequestFail    struct{ Message string }

	UserLogin  struct{ Session Session }
	UserLogout struct{}

	AddToCart           struct{ Line CartLine }
	RemoveFromCart      struct{ ProductID string }
	SaveShippingAddress struct{ Address domain.ShippingAddress }
	SavePaymentMethod   struct{ Method string }
	ClearCart           struct{}

	UpdateUserProfile struct{ Patch ProfilePatch }
	ResetError        struct{}
)

// ProfilePatch is shallow-merged into the session: nil fields keep their value.
type ProfilePatch struct {
	ID        *string
	Name      *string
	Email     *string
	IsAdmin   *bool
	Token     *string
	ExpiresAt *time.Time
}

func (RequestStart) isIntent()        {}
func (RequestSuccess) isIntent()      {}
func (RequestFail) isIntent()         {}
func (UserLogin) isIntent()           {}
func (UserLogout) isIntent()          {}
func (AddToCart) isIntent()           {}
func (RemoveFromCart) isIntent()      {}
func (SaveShippingAddress) isIntent() {}
func (SavePaymentMethod) isIntent()   {}
func (ClearCart) isIntent()           {}
func (UpdateUserProfile) isIntent()   {}
func (ResetError) isIntent()          {}

// Reduce returns the state that results from applying in to s. It never
// mutates s; unknown intents return s unchanged.
func Reduce(s State, in Intent) State {
	switch in := in.(type) {
	case RequestStart:
		s.Loading = true
		s.Error = ""
	case RequestSuccess:
		s.Loading = false
	case RequestFail:
		s.Loading = false
		s.Error = in.Message
	case UserLogin:
		sess := in.Session
		s.Session = &sess
		s.Error = ""
	case UserLogout:
		s.Session = nil
		s.Cart = Cart{}
	case AddToCart:
		s.Cart.Items = upsertLine(s.Cart.Items, in.Line)
	case RemoveFromCart:
		s.Cart.Items = removeLine(s.Cart.Items, in.ProductID)
	case SaveShippingAddress:
		s.Cart.ShippingAddress = in.Address
	case SavePaymentMethod:
		s.Cart.PaymentMethod = in.Method
	case ClearCart:
		s.Cart.Items = nil
	case UpdateUserProfile:
		s.Session = mergeProfile(s.Session, in.Patch)
		s.Error = ""
	case ResetError:
		s.Error = ""
	}
	return s
}

func upsertLine(items []CartLine, line CartLine) []CartLine {
	out := make([]CartLine, 0, len(items)+1)
	replaced := false
	for _, it := range items {
		if it.ProductID == line.ProductID {
			out = append(out, line)
			replaced = true
			continue
		}
		out = append(out, it)
	}
	if !replaced {
		out = append(out, line)
	}
	return out
}

func removeLine(items []CartLine, productID string) []CartLine {
	out := make([]CartLine, 0, len(items))
	for _, it := range items {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeProfile(cur *Session, p ProfilePatch) *Session {
	var sess Session
	if cur != nil {
		sess = *cur
	}
	if p.ID != nil {
		sess.ID = *p.ID
	}
	if p.Name != nil {
		sess.Name = *p.Name
	}
	if p.Email != nil {
		sess.Email = *p.Email
	}
	if p.IsAdmin != nil {
		sess.IsAdmin = *p.IsAdmin
	}
	if p.Token != nil {
		sess.Token = *p.Token
	}
	if p.ExpiresAt != nil {
		sess.ExpiresAt = *p.ExpiresAt
	}
	return &sess
}
