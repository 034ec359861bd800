package lifecycle

import (
	"time"

	"gorm.io/gorm"

	"vendra-system/internal/database/models"
)

// Actor is the authenticated caller as resolved by the auth layer. The
// engine re-checks organization ownership on every operation instead of
// trusting the transport.
type Actor struct {
	UserID int64
	OrgID  int64
	Role   string
}

const (
	RoleBuyer    = "buyer"
	RoleSupplier = "supplier"
	RoleAdmin    = "admin"
)

// Canonical fulfillment checklist, in completion order.
const (
	MilestonePOAccepted         = "PO_ACCEPTED"
	MilestoneRawMaterialOrdered = "RAW_MATERIAL_ORDERED"
	MilestoneProductionStarted  = "PRODUCTION_STARTED"
	MilestoneQC                 = "QC"
	MilestoneDispatch           = "DISPATCH"
	MilestoneDelivered          = "DELIVERED"
	MilestoneInvoiceRaised      = "INVOICE_RAISED"
	MilestonePaid               = "PAID"
)

var milestoneSequence = []string{
	MilestonePOAccepted,
	MilestoneRawMaterialOrdered,
	MilestoneProductionStarted,
	MilestoneQC,
	MilestoneDispatch,
	MilestoneDelivered,
	MilestoneInvoiceRaised,
	MilestonePaid,
}

// transitions is the full PO state graph. completed is reachable from every
// non-terminal state because of the administrative force-close; the
// disputed -> issued/accepted/in_progress edges are the dispute-resolution
// returns to the remembered prior status.
var transitions = map[models.POStatus][]models.POStatus{
	models.POIssued:     {models.POAccepted, models.PODisputed, models.POCancelled, models.POCompleted},
	models.POAccepted:   {models.POInProgress, models.PODisputed, models.POCancelled, models.POCompleted},
	models.POInProgress: {models.POCompleted, models.PODisputed, models.POCancelled},
	models.PODisputed:   {models.POIssued, models.POAccepted, models.POInProgress, models.POCancelled, models.POCompleted},
	models.POCompleted:  {},
	models.POCancelled:  {},
}

func canTransition(from, to models.POStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isTerminal(s models.POStatus) bool {
	return s == models.POCompleted || s == models.POCancelled
}

// transitionPO is the single place a PO status is written. Every caller has
// already locked the PO row inside the enclosing transaction.
func transitionPO(tx *gorm.DB, po *models.PurchaseOrder, to models.POStatus) error {
	if !canTransition(po.Status, to) {
		return invalidStatef("purchase order %s cannot move from %s to %s", po.PONumber, po.Status, to)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == models.POAccepted && po.AcceptedAt == nil {
		now := time.Now()
		po.AcceptedAt = &now
		updates["accepted_at"] = now
	}
	if to == models.PODisputed {
		po.DisputeFlag = true
		updates["dispute_flag"] = true
	}
	if po.Status == models.PODisputed && to != models.POCancelled && to != models.POCompleted {
		po.DisputeFlag = false
		updates["dispute_flag"] = false
	}

	if err := tx.Model(&models.PurchaseOrder{}).Where("id = ?", po.ID).Updates(updates).Error; err != nil {
		return err
	}
	po.Status = to
	return nil
}
