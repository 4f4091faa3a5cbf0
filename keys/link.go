package keys

import (
	"fmt"

	"github.com/example/keydash/models"
)

// LinkReason codes the specific rule an invalid association violated.
type LinkReason string

const (
	ReasonNotAdmin         LinkReason = "not_admin"
	ReasonNotProject       LinkReason = "not_project"
	ReasonProviderMismatch LinkReason = "provider_mismatch"
	ReasonSelfLink         LinkReason = "self_link"
	ReasonAdminLinked      LinkReason = "admin_linked"
)

// LinkError reports an illegal admin/project association. It is always
// surfaced to the caller, never swallowed.
type LinkError struct {
	Reason LinkReason
	Detail string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("invalid association (%s): %s", e.Reason, e.Detail)
}

// ValidateLink checks that candidate may legally be linked under admin.
// Legal links run project -> admin within one provider; admin keys can
// neither link to themselves nor sit under another admin key.
func ValidateLink(candidate, admin *models.APIKey) error {
	if admin.ID == candidate.ID {
		return &LinkError{
			Reason: ReasonSelfLink,
			Detail: "a key cannot be associated with itself",
		}
	}
	if candidate.KeyType == string(TypeAdmin) {
		return &LinkError{
			Reason: ReasonNotProject,
			Detail: fmt.Sprintf("admin key %q cannot be linked under another key", candidate.Name),
		}
	}
	if admin.KeyType != string(TypeAdmin) {
		return &LinkError{
			Reason: ReasonNotAdmin,
			Detail: fmt.Sprintf("key %q is not an admin key", admin.Name),
		}
	}
	if admin.AdminKeyID != nil {
		return &LinkError{
			Reason: ReasonAdminLinked,
			Detail: fmt.Sprintf("admin key %q is itself linked under another key", admin.Name),
		}
	}
	if admin.Provider != candidate.Provider {
		return &LinkError{
			Reason: ReasonProviderMismatch,
			Detail: fmt.Sprintf("cannot link a %s key under a %s admin key", candidate.Provider, admin.Provider),
		}
	}
	return nil
}
