package acl

// Domain is a protected domain object reference: a class, a concrete
// object instance, or a field vote on either. The union is closed; the
// engine matches exhaustively on the three variants. A Domain never owns
// the underlying business object, it only references it for the duration
// of a single query.
type Domain interface {
	// Class returns the domain class name.
	Class() string

	sealedDomain()
}

// ClassDomain addresses every instance of a domain class.
type ClassDomain struct {
	Name string
}

// Class returns the class name.
func (d ClassDomain) Class() string { return d.Name }

func (ClassDomain) sealedDomain() {}

// ObjectDomain addresses one concrete object instance.
// OwnerSet reports whether an owner identity is recorded for the object.
type ObjectDomain struct {
	ClassName string
	ID        string
	Owner     Identity
	OwnerSet  bool
}

// Class returns the class name.
func (d ObjectDomain) Class() string { return d.ClassName }

func (ObjectDomain) sealedDomain() {}

// FieldVote narrows a class or object domain to a single field.
type FieldVote struct {
	Domain Domain
	Field  string
}

// Class returns the class name of the wrapped domain.
func (d FieldVote) Class() string { return d.Domain.Class() }

func (FieldVote) sealedDomain() {}

// ownerOf returns the recorded owner of the domain, unwrapping field votes.
// The second return is false when no owner is recorded.
func ownerOf(d Domain) (Identity, bool) {
	switch v := d.(type) {
	case ObjectDomain:
		return v.Owner, v.OwnerSet
	case FieldVote:
		return ownerOf(v.Domain)
	default:
		return Identity{}, false
	}
}
