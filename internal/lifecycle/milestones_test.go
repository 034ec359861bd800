package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
	"vendra-system/internal/lifecycle"
)

func TestCompleteMilestoneOutOfOrderIsRejected(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)

	// Jumping to QC (#4) while #2 and #3 are pending must fail and leave
	// the checklist untouched.
	qc := milestoneByName(t, db, po.ID, "QC")
	err := e.CompleteMilestone(ctx, po.ID, qc.ID, "", "", supplier)
	require.Equal(t, lifecycle.KindSequenceViolation, lifecycle.KindOf(err))

	qc = milestoneByName(t, db, po.ID, "QC")
	require.Equal(t, models.MilestonePending, qc.Status)

	got, err := e.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, models.POAccepted, got.Status)
}

func TestCompleteMilestoneGapAnywhereEarlierBlocks(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)

	raw := milestoneByName(t, db, po.ID, "RAW_MATERIAL_ORDERED")
	require.NoError(t, e.CompleteMilestone(ctx, po.ID, raw.ID, "", "", supplier))

	// #3 is still pending, so #5 is blocked even though #4's immediate
	// predecessor check alone would not catch it.
	dispatch := milestoneByName(t, db, po.ID, "DISPATCH")
	err := e.CompleteMilestone(ctx, po.ID, dispatch.ID, "", "", supplier)
	require.Equal(t, lifecycle.KindSequenceViolation, lifecycle.KindOf(err))
}

func TestCompleteMilestoneTwiceIsRejected(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)

	raw := milestoneByName(t, db, po.ID, "RAW_MATERIAL_ORDERED")
	require.NoError(t, e.CompleteMilestone(ctx, po.ID, raw.ID, "https://evidence/1", "ordered", supplier))

	err := e.CompleteMilestone(ctx, po.ID, raw.ID, "", "", supplier)
	require.Equal(t, lifecycle.KindDuplicate, lifecycle.KindOf(err))
}

func TestCompleteMilestoneStoresEvidence(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)

	raw := milestoneByName(t, db, po.ID, "RAW_MATERIAL_ORDERED")
	require.NoError(t, e.CompleteMilestone(ctx, po.ID, raw.ID, "https://evidence/po/123", "alloy batch 42", supplier))

	raw = milestoneByName(t, db, po.ID, "RAW_MATERIAL_ORDERED")
	require.Equal(t, models.MilestoneCompleted, raw.Status)
	require.NotNil(t, raw.CompletedAt)
	require.NotNil(t, raw.EvidenceURL)
	require.Equal(t, "https://evidence/po/123", *raw.EvidenceURL)
	require.NotNil(t, raw.Remarks)
	require.Equal(t, "alloy batch 42", *raw.Remarks)
}

func TestCompleteMilestoneRejectsNonSupplier(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)

	raw := milestoneByName(t, db, po.ID, "RAW_MATERIAL_ORDERED")
	err := e.CompleteMilestone(ctx, po.ID, raw.ID, "", "", buyer)
	require.Equal(t, lifecycle.KindUnauthorized, lifecycle.KindOf(err))
}

func TestCompleteMilestoneBlockedWhileDisputed(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	require.NoError(t, e.RaiseDispute(ctx, po.ID, "wrong alloy", buyer))

	raw := milestoneByName(t, db, po.ID, "RAW_MATERIAL_ORDERED")
	err := e.CompleteMilestone(ctx, po.ID, raw.ID, "", "", supplier)
	require.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
}

func TestPaidMilestoneCannotBeCompletedDirectly(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	completeThrough(t, e, db, po.ID, "INVOICE_RAISED")

	paid := milestoneByName(t, db, po.ID, "PAID")
	err := e.CompleteMilestone(ctx, po.ID, paid.ID, "", "", supplier)
	require.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
}

func TestPayMilestoneRequiresInvoiceRaised(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)

	invoice := milestoneByName(t, db, po.ID, "INVOICE_RAISED")
	err := e.PayMilestone(ctx, po.ID, invoice.ID, "500", buyer)
	require.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))
}

func TestPayMilestoneRejectsWrongMilestone(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	completeThrough(t, e, db, po.ID, "QC")

	qc := milestoneByName(t, db, po.ID, "QC")
	err := e.PayMilestone(ctx, po.ID, qc.ID, "500", buyer)
	require.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))
}

func TestPayMilestoneRejectsBadAmounts(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	completeThrough(t, e, db, po.ID, "INVOICE_RAISED")
	invoice := milestoneByName(t, db, po.ID, "INVOICE_RAISED")

	err := e.PayMilestone(ctx, po.ID, invoice.ID, "not-a-number", buyer)
	require.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

	err = e.PayMilestone(ctx, po.ID, invoice.ID, "-10.00", buyer)
	require.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))

	err = e.PayMilestone(ctx, po.ID, invoice.ID, "0", buyer)
	require.Equal(t, lifecycle.KindValidation, lifecycle.KindOf(err))
}

func TestPayMilestoneRejectsNonBuyer(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	completeThrough(t, e, db, po.ID, "INVOICE_RAISED")
	invoice := milestoneByName(t, db, po.ID, "INVOICE_RAISED")

	err := e.PayMilestone(ctx, po.ID, invoice.ID, "500", supplier)
	require.Equal(t, lifecycle.KindUnauthorized, lifecycle.KindOf(err))
}

func TestPayMilestoneBlockedWhileDisputed(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	completeThrough(t, e, db, po.ID, "INVOICE_RAISED")
	require.NoError(t, e.RaiseDispute(ctx, po.ID, "invoice disputed", buyer))

	invoice := milestoneByName(t, db, po.ID, "INVOICE_RAISED")
	err := e.PayMilestone(ctx, po.ID, invoice.ID, "500", buyer)
	require.Equal(t, lifecycle.KindInvalidState, lifecycle.KindOf(err))

	// Resolution unblocks payment at the remembered status.
	require.NoError(t, e.ResolveDispute(ctx, po.ID, "invoice corrected", buyer))
	require.NoError(t, e.PayMilestone(ctx, po.ID, invoice.ID, "500", buyer))
}

func TestPayMilestoneNormalizesDecimalAmounts(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	po := acceptedPO(t, e)
	completeThrough(t, e, db, po.ID, "INVOICE_RAISED")
	invoice := milestoneByName(t, db, po.ID, "INVOICE_RAISED")

	require.NoError(t, e.PayMilestone(ctx, po.ID, invoice.ID, "500.50", buyer))

	var payment models.Payment
	require.NoError(t, db.Where("milestone_id = ?", invoice.ID).First(&payment).Error)
	require.Equal(t, "500.5", payment.Amount)
}

// completeThrough advances the checklist in order up to and including the
// named milestone.
func completeThrough(t *testing.T, e *lifecycle.Engine, db *gorm.DB, poID int64, lastName string) {
	t.Helper()
	ctx := context.Background()

	var milestones []models.Milestone
	require.NoError(t, db.Where("po_id = ?", poID).Order("sequence_order ASC").Find(&milestones).Error)

	for _, m := range milestones {
		if m.Status == models.MilestoneCompleted {
			continue
		}
		require.NoError(t, e.CompleteMilestone(ctx, poID, m.ID, "", "", supplier))
		if m.Name == lastName {
			return
		}
	}
}
