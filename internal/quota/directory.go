package quota

import (
	"fmt"
	"strings"

	"aichat/internal/util"
)

// Directory resolves identities to authorization records and model limits.
// Lookup failures are surfaced as errors so callers can fail closed; quota
// resolution governs access, not convenience.
type Directory struct {
	store Store
}

// NewDirectory wraps a Store.
func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// Authorize returns the active record for an identity, or nil when the
// identity is not allowed to chat.
func (d *Directory) Authorize(identityID string) (*AuthorizationRecord, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, nil
	}
	rec, err := d.store.FindAuthorization(identityID)
	if err != nil {
		// Errors end up in logs; carry the hashed id, never the raw one.
		return nil, fmt.Errorf("authorize %s: %w", util.HashIdentity(identityID), err)
	}
	if rec == nil || !rec.Active {
		return nil, nil
	}
	return rec, nil
}

// ResolveModel picks the model limit to apply for a request.
//
// A requested model must match an active limit exactly; there is no silent
// fallback to another model. With no requested model the first active limit
// in position order is the stable default.
func (d *Directory) ResolveModel(rec *AuthorizationRecord, requestedModel string) *ModelLimit {
	if rec == nil {
		return nil
	}
	requestedModel = strings.TrimSpace(requestedModel)
	for i := range rec.Models {
		limit := &rec.Models[i]
		if !limit.Active {
			continue
		}
		if requestedModel == "" || limit.ModelName == requestedModel {
			return limit
		}
	}
	return nil
}
