package services

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

const msgResourceForbidden = "you are not allowed to access this resource"

// checkOwnerOrAdmin allows admins and the owner of a resource. Denials are
// recorded against the session's user.
func checkOwnerOrAdmin(ctx context.Context, recorder SecurityRecorder, session *models.Session, ownerID, resource string) error {
	if session.IsAdmin() || (session != nil && session.UserID == ownerID) {
		return nil
	}

	e := audit.Event{
		Code:   audit.ResourceDenied,
		Reason: "not owner",
		Fields: map[string]any{"resource": resource, "owner_id": ownerID},
	}
	if session != nil {
		e.PrincipalID = session.UserID
	}
	recorder.Record(ctx, e)

	return common.Forbidden(msgResourceForbidden)
}
