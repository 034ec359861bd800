package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
)

// initializeMilestones materializes the fixed 8-step checklist for a newly
// accepted PO. The first step (PO_ACCEPTED) is pre-completed since the
// acceptance itself is what triggered the initialization. Duplicate
// initialization is rejected so a retried accept cannot double the rows.
func initializeMilestones(tx *gorm.DB, po *models.PurchaseOrder) error {
	var existing int64
	if err := tx.Model(&models.Milestone{}).Where("po_id = ?", po.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return duplicatef("milestones already initialized for %s", po.PONumber)
	}

	now := time.Now()
	rows := make([]models.Milestone, 0, len(milestoneSequence))
	for i, name := range milestoneSequence {
		m := models.Milestone{
			POID:          po.ID,
			Name:          name,
			SequenceOrder: int32(i + 1),
			Status:        models.MilestonePending,
			DueDate:       po.PromisedAt,
		}
		if name == MilestonePOAccepted {
			m.Status = models.MilestoneCompleted
			m.CompletedAt = &now
		}
		rows = append(rows, m)
	}
	return tx.Create(&rows).Error
}

// CompleteMilestone marks one checklist step done. Completion is strictly
// in order: any pending milestone with a smaller sequence_order anywhere
// earlier in the checklist blocks progress, not just the immediate
// predecessor. The first completion on an accepted PO moves it to
// in_progress.
func (e *Engine) CompleteMilestone(ctx context.Context, poID, milestoneID int64, evidence, remarks string, actor Actor) error {
	unlock := e.locks.lock(poKey(poID))
	defer unlock()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if po.SupplierOrgID != actor.OrgID {
			return unauthorizedf("caller org %d is not the supplier on %s", actor.OrgID, po.PONumber)
		}
		if po.Status == models.PODisputed {
			return invalidStatef("purchase order %s is disputed, milestone progress is frozen", po.PONumber)
		}
		if po.Status != models.POAccepted && po.Status != models.POInProgress {
			return invalidStatef("purchase order %s is %s, milestones cannot be updated", po.PONumber, po.Status)
		}

		var milestone models.Milestone
		if err := lockForUpdate(tx).
			Where("id = ? AND po_id = ?", milestoneID, po.ID).
			First(&milestone).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("milestone %d not found on %s", milestoneID, po.PONumber)
			}
			return err
		}
		if milestone.Status == models.MilestoneCompleted {
			return duplicatef("milestone %s on %s is already completed", milestone.Name, po.PONumber)
		}
		if milestone.Name == MilestonePaid {
			return invalidStatef("the PAID milestone is completed through milestone payment, not directly")
		}

		var pendingBefore int64
		if err := tx.Model(&models.Milestone{}).
			Where("po_id = ? AND sequence_order < ? AND status <> ?",
				po.ID, milestone.SequenceOrder, models.MilestoneCompleted).
			Count(&pendingBefore).Error; err != nil {
			return err
		}
		if pendingBefore > 0 {
			return sequenceViolationf("milestone %s on %s has %d incomplete predecessor(s)",
				milestone.Name, po.PONumber, pendingBefore)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":       models.MilestoneCompleted,
			"completed_at": now,
			"updated_at":   now,
		}
		if evidence != "" {
			updates["evidence_url"] = evidence
		}
		if remarks != "" {
			updates["remarks"] = remarks
		}
		if err := tx.Model(&models.Milestone{}).Where("id = ?", milestone.ID).Updates(updates).Error; err != nil {
			return err
		}

		if po.Status == models.POAccepted {
			if err := transitionPO(tx, po, models.POInProgress); err != nil {
				return err
			}
		}

		return appendEvent(tx, po.ID, models.EventMilestoneUpdated,
			fmt.Sprintf("milestone %s completed on %s", milestone.Name, po.PONumber),
			actor, map[string]interface{}{
				"milestone_id":   milestone.ID,
				"milestone_name": milestone.Name,
				"sequence_order": milestone.SequenceOrder,
			})
	})
	if err != nil {
		return asDomainErr(err)
	}

	e.cache.invalidate(ctx, poID)
	e.log.Info("milestone completed", "po_id", poID, "milestone_id", milestoneID)
	return nil
}

// PayMilestone records settlement against the INVOICE_RAISED milestone.
// Raising the invoice and paying it are two distinct steps: the milestone
// must already be completed before payment is accepted. A successful payment
// completes the final PAID milestone and the purchase order itself.
func (e *Engine) PayMilestone(ctx context.Context, poID, milestoneID int64, amount string, actor Actor) error {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return validationf("amount %q is not a valid decimal", amount)
	}
	if amt.LessThanOrEqual(decimal.Zero) {
		return validationf("amount must be positive, got %s", amt.String())
	}

	unlock := e.locks.lock(poKey(poID))
	defer unlock()

	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if po.BuyerOrgID != actor.OrgID {
			return unauthorizedf("caller org %d is not the buyer on %s", actor.OrgID, po.PONumber)
		}
		if po.Status == models.PODisputed {
			return invalidStatef("purchase order %s is disputed, payment is blocked", po.PONumber)
		}
		if po.Status != models.POAccepted && po.Status != models.POInProgress {
			return invalidStatef("purchase order %s is %s, payment is not applicable", po.PONumber, po.Status)
		}

		var invoice models.Milestone
		if err := lockForUpdate(tx).
			Where("id = ? AND po_id = ?", milestoneID, po.ID).
			First(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("milestone %d not found on %s", milestoneID, po.PONumber)
			}
			return err
		}
		if invoice.Name != MilestoneInvoiceRaised {
			return validationf("payment applies to the %s milestone, not %s", MilestoneInvoiceRaised, invoice.Name)
		}
		if invoice.Status != models.MilestoneCompleted {
			return invalidStatef("invoice has not been raised on %s yet", po.PONumber)
		}

		var paid int64
		if err := tx.Model(&models.Payment{}).Where("milestone_id = ?", invoice.ID).Count(&paid).Error; err != nil {
			return err
		}
		if paid > 0 {
			return duplicatef("milestone %d on %s is already paid", invoice.ID, po.PONumber)
		}

		payment := models.Payment{
			POID:        po.ID,
			MilestoneID: invoice.ID,
			Amount:      amt.String(),
			Status:      models.PaymentPaid,
			PaidByID:    actor.UserID,
			PaidByOrgID: actor.OrgID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.Milestone{}).
			Where("po_id = ? AND name = ?", po.ID, MilestonePaid).
			Updates(map[string]interface{}{
				"status":       models.MilestoneCompleted,
				"completed_at": now,
				"updated_at":   now,
			}).Error; err != nil {
			return err
		}

		if err := transitionPO(tx, po, models.POCompleted); err != nil {
			return err
		}

		if err := appendEvent(tx, po.ID, models.EventMilestonePaid,
			fmt.Sprintf("invoice milestone paid on %s", po.PONumber),
			actor, map[string]interface{}{
				"milestone_id": invoice.ID,
				"payment_id":   payment.ID,
				"amount":       payment.Amount,
			}); err != nil {
			return err
		}
		return appendEvent(tx, po.ID, models.EventPOCompleted,
			fmt.Sprintf("purchase order %s completed", po.PONumber),
			actor, nil)
	})
	if txErr != nil {
		return asDomainErr(txErr)
	}

	e.cache.invalidate(ctx, poID)
	e.log.Info("milestone paid", "po_id", poID, "milestone_id", milestoneID, "amount", amt.String())
	return nil
}
