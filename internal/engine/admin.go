package engine

import (
	"context"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
)

// DeleteProperty cascades the relational rows for a property and audits the
// deletion. The ledger is untouched: anchored fingerprints outlive local
// retention decisions.
func (o *Orchestrator) DeleteProperty(ctx context.Context, propertyID string) error {
	if propertyID == "" {
		return common.NewAppError(common.KindBadInput, "MISSING_PROPERTY_ID", "property_id is required", common.ErrInvalidInput)
	}
	found, err := o.deps.Verifications.DeleteByProperty(ctx, propertyID)
	if err != nil {
		o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpDelete, propertyID, constants.AuditFailure, err.Error())
		return err
	}
	if !found {
		return common.NewAppError(common.KindNotFound, "PROPERTY_NOT_FOUND", "property not found", common.ErrNotFound)
	}
	o.deps.Audits.Append(context.WithoutCancel(ctx), constants.OpDelete, propertyID, constants.AuditSuccess,
		"cascade delete of verification data")
	o.logger.Info("property.deleted", "property_id", propertyID)
	return nil
}

// LatestVerification serves the most recent record + detail for a property.
func (o *Orchestrator) LatestVerification(ctx context.Context, propertyID string) (entity.VerificationRecord, entity.VerificationDetail, error) {
	rec, det, err := o.deps.Verifications.LatestByProperty(ctx, propertyID)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound || err == common.ErrNotFound {
			return rec, det, common.NewAppError(common.KindNotFound, "PROPERTY_NOT_FOUND", "no verification for property", common.ErrNotFound)
		}
		return rec, det, err
	}
	return rec, det, nil
}
