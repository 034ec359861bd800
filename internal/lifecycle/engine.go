package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
	"vendra-system/internal/logger"
)

// Engine owns every state-changing operation on the procurement ledger.
// Each operation runs as one transaction using lock-then-check-then-write:
// the relevant rows are read under an exclusive lock, preconditions are
// evaluated against that locked state, and either all mutations plus the
// audit event commit together or nothing does.
type Engine struct {
	db    *gorm.DB
	log   *logger.Logger
	cache *poCache
	locks keyedMutex
}

func NewEngine(db *gorm.DB, log *logger.Logger, redisClient *redis.Client) *Engine {
	return &Engine{
		db:    db,
		log:   log.With("component", "lifecycle_engine"),
		cache: newPOCache(redisClient, log),
	}
}

// newPONumber generates a collision-free human-readable PO number. The
// timestamp keeps numbers roughly sortable; the uuid fragment disambiguates
// acceptances within the same second.
func newPONumber() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("PO-%d-%s", time.Now().Unix(), token)
}

// AcceptQuote accepts a supplier quote on behalf of the buyer, force-rejects
// every sibling quote on the same RFQ, and creates the purchase order. The
// whole resolution is atomic; a failure at any step leaves no half-accepted
// quote or orphaned PO behind.
func (e *Engine) AcceptQuote(ctx context.Context, quoteID int64, actor Actor) (*models.PurchaseOrder, error) {
	if quoteID == 0 {
		return nil, validationf("quote_id is required")
	}

	// Preliminary read only to learn the RFQ for lock keying; every
	// precondition is re-checked on locked rows inside the transaction.
	var probe models.Quote
	if err := e.db.WithContext(ctx).First(&probe, quoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("quote %d not found", quoteID)
		}
		return nil, storageErr(err)
	}

	unlock := e.locks.lock(rfqKey(probe.RFQID))
	defer unlock()

	var po models.PurchaseOrder
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quote models.Quote
		if err := lockForUpdate(tx).First(&quote, quoteID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("quote %d not found", quoteID)
			}
			return err
		}

		var rfq models.RFQ
		if err := lockForUpdate(tx).First(&rfq, quote.RFQID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("RFQ %d not found", quote.RFQID)
			}
			return err
		}

		if rfq.BuyerOrgID != actor.OrgID {
			return unauthorizedf("caller org %d does not own RFQ %d", actor.OrgID, rfq.ID)
		}
		if quote.Status == models.QuoteAccepted {
			return duplicatef("quote %d is already accepted", quote.ID)
		}
		if quote.Status == models.QuoteRejected {
			return invalidStatef("quote %d was rejected and cannot be accepted", quote.ID)
		}
		if rfq.Status != models.RFQOpen || rfq.AcceptedQuoteID != nil {
			return invalidStatef("RFQ %d is no longer open", rfq.ID)
		}

		now := time.Now()
		if err := tx.Model(&models.Quote{}).Where("id = ?", quote.ID).
			Updates(map[string]interface{}{"status": models.QuoteAccepted, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Quote{}).
			Where("rfq_id = ? AND id <> ?", rfq.ID, quote.ID).
			Updates(map[string]interface{}{"status": models.QuoteRejected, "updated_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RFQ{}).Where("id = ?", rfq.ID).
			Updates(map[string]interface{}{
				"status":            models.RFQAwarded,
				"accepted_quote_id": quote.ID,
				"updated_at":        now,
			}).Error; err != nil {
			return err
		}

		promised := now.AddDate(0, 0, int(quote.LeadTimeDays))
		po = models.PurchaseOrder{
			PONumber:      newPONumber(),
			RFQID:         rfq.ID,
			QuoteID:       quote.ID,
			BuyerOrgID:    rfq.BuyerOrgID,
			SupplierOrgID: quote.SupplierOrgID,
			PartNumber:    rfq.PartNumber,
			Quantity:      rfq.Quantity,
			Value:         quote.Price,
			Status:        models.POIssued,
			PromisedAt:    &promised,
		}
		if err := tx.Create(&po).Error; err != nil {
			return err
		}

		return appendEvent(tx, po.ID, models.EventPOCreated,
			fmt.Sprintf("purchase order %s created from quote %d", po.PONumber, quote.ID),
			actor, map[string]interface{}{
				"rfq_id":    rfq.ID,
				"quote_id":  quote.ID,
				"po_number": po.PONumber,
				"value":     po.Value,
			})
	})
	if err != nil {
		return nil, asDomainErr(err)
	}

	e.log.Info("quote accepted", "quote_id", quoteID, "po_id", po.ID, "po_number", po.PONumber)
	return &po, nil
}

// AcceptPurchaseOrder is the supplier's acknowledgement of an issued PO. It
// closes the parent RFQ and materializes the milestone checklist.
func (e *Engine) AcceptPurchaseOrder(ctx context.Context, poID int64, actor Actor) error {
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
		if po.Status != models.POIssued {
			return invalidStatef("purchase order %s is %s, only issued orders can be accepted", po.PONumber, po.Status)
		}

		var existing int64
		if err := tx.Model(&models.Milestone{}).Where("po_id = ?", po.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return duplicatef("milestones already initialized for %s", po.PONumber)
		}

		if err := transitionPO(tx, po, models.POAccepted); err != nil {
			return err
		}
		if err := tx.Model(&models.RFQ{}).Where("id = ?", po.RFQID).
			Updates(map[string]interface{}{"status": models.RFQClosed, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		if err := initializeMilestones(tx, po); err != nil {
			return err
		}

		return appendEvent(tx, po.ID, models.EventPOAccepted,
			fmt.Sprintf("purchase order %s accepted by supplier", po.PONumber),
			actor, nil)
	})
	if err != nil {
		return asDomainErr(err)
	}

	e.cache.invalidate(ctx, poID)
	e.log.Info("purchase order accepted", "po_id", poID)
	return nil
}

// RaiseDispute suspends normal lifecycle progress on a PO. The pre-dispute
// status is recorded on the dispute row so resolution can restore it.
func (e *Engine) RaiseDispute(ctx context.Context, poID int64, reason string, actor Actor) error {
	if strings.TrimSpace(reason) == "" {
		return validationf("dispute reason is required")
	}

	unlock := e.locks.lock(poKey(poID))
	defer unlock()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if po.BuyerOrgID != actor.OrgID {
			return unauthorizedf("caller org %d is not the buyer on %s", actor.OrgID, po.PONumber)
		}
		if isTerminal(po.Status) {
			return invalidStatef("purchase order %s is %s and cannot be disputed", po.PONumber, po.Status)
		}
		if po.Status == models.PODisputed {
			return invalidStatef("purchase order %s is already disputed", po.PONumber)
		}

		var open int64
		if err := tx.Model(&models.Dispute{}).
			Where("po_id = ? AND status = ?", po.ID, models.DisputeOpen).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return invalidStatef("purchase order %s already has an open dispute", po.PONumber)
		}

		dispute := models.Dispute{
			POID:          po.ID,
			RaisedByID:    actor.UserID,
			RaisedByRole:  actor.Role,
			OrgID:         actor.OrgID,
			Reason:        reason,
			Status:        models.DisputeOpen,
			PriorPOStatus: po.Status,
		}
		if err := tx.Create(&dispute).Error; err != nil {
			return err
		}
		if err := transitionPO(tx, po, models.PODisputed); err != nil {
			return err
		}

		return appendEvent(tx, po.ID, models.EventDisputeRaised,
			fmt.Sprintf("dispute raised on %s: %s", po.PONumber, reason),
			actor, map[string]interface{}{"dispute_id": dispute.ID, "prior_status": dispute.PriorPOStatus})
	})
	if err != nil {
		return asDomainErr(err)
	}

	e.cache.invalidate(ctx, poID)
	e.log.Info("dispute raised", "po_id", poID)
	return nil
}

// ResolveDispute closes the open dispute and returns the PO to the status it
// held before the dispute was raised. Legacy dispute rows without a recorded
// prior status resume at in_progress.
func (e *Engine) ResolveDispute(ctx context.Context, poID int64, note string, actor Actor) error {
	unlock := e.locks.lock(poKey(poID))
	defer unlock()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if actor.Role != RoleAdmin && po.BuyerOrgID != actor.OrgID {
			return unauthorizedf("caller org %d may not resolve disputes on %s", actor.OrgID, po.PONumber)
		}
		if po.Status != models.PODisputed {
			return invalidStatef("purchase order %s is not disputed", po.PONumber)
		}

		var dispute models.Dispute
		if err := lockForUpdate(tx).
			Where("po_id = ? AND status = ?", po.ID, models.DisputeOpen).
			First(&dispute).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidStatef("no open dispute found for %s", po.PONumber)
			}
			return err
		}

		target := dispute.PriorPOStatus
		if target == "" {
			target = models.POInProgress
		}
		if err := transitionPO(tx, po, target); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":      models.DisputeResolved,
			"resolved_at": now,
			"updated_at":  now,
		}
		if strings.TrimSpace(note) != "" {
			updates["resolution_note"] = note
		}
		if err := tx.Model(&models.Dispute{}).Where("id = ?", dispute.ID).Updates(updates).Error; err != nil {
			return err
		}

		return appendEvent(tx, po.ID, models.EventDisputeResolved,
			fmt.Sprintf("dispute on %s resolved, resumed at %s", po.PONumber, target),
			actor, map[string]interface{}{"dispute_id": dispute.ID, "resumed_status": target})
	})
	if err != nil {
		return asDomainErr(err)
	}

	e.cache.invalidate(ctx, poID)
	e.log.Info("dispute resolved", "po_id", poID)
	return nil
}

// ForceCancel terminates a PO outside the normal transition graph. Admin
// only; funnels through the same locking discipline as normal transitions.
func (e *Engine) ForceCancel(ctx context.Context, poID int64, reason string, actor Actor) error {
	return e.forceTerminate(ctx, poID, reason, actor, models.POCancelled, models.EventPOForceCancelled)
}

// ForceClose marks a PO completed outside the normal transition graph.
func (e *Engine) ForceClose(ctx context.Context, poID int64, note string, actor Actor) error {
	return e.forceTerminate(ctx, poID, note, actor, models.POCompleted, models.EventPOForceClosed)
}

func (e *Engine) forceTerminate(ctx context.Context, poID int64, note string, actor Actor, target models.POStatus, eventType models.EventType) error {
	if actor.Role != RoleAdmin {
		return unauthorizedf("administrative override requires the admin role")
	}

	unlock := e.locks.lock(poKey(poID))
	defer unlock()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := lockPO(tx, poID)
		if err != nil {
			return err
		}
		if isTerminal(po.Status) {
			return invalidStatef("purchase order %s is already %s", po.PONumber, po.Status)
		}
		if err := transitionPO(tx, po, target); err != nil {
			return err
		}

		return appendEvent(tx, po.ID, eventType,
			fmt.Sprintf("purchase order %s force-%s by administrator", po.PONumber, target),
			actor, map[string]interface{}{"admin_override": true, "note": note})
	})
	if err != nil {
		return asDomainErr(err)
	}

	e.cache.invalidate(ctx, poID)
	e.log.Info("administrative override applied", "po_id", poID, "target", target)
	return nil
}

// GetPurchaseOrder returns a PO with its milestones, served from the redis
// read-through cache when warm.
func (e *Engine) GetPurchaseOrder(ctx context.Context, poID int64) (*models.PurchaseOrder, error) {
	if po, ok := e.cache.get(ctx, poID); ok {
		return po, nil
	}

	var po models.PurchaseOrder
	if err := e.db.WithContext(ctx).Preload("Milestones").First(&po, poID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("purchase order %d not found", poID)
		}
		return nil, storageErr(err)
	}

	e.cache.set(ctx, &po)
	return &po, nil
}

// Events returns the audit trail of a PO in insertion order.
func (e *Engine) Events(ctx context.Context, poID int64) ([]models.Event, error) {
	var events []models.Event
	if err := e.db.WithContext(ctx).
		Where("po_id = ?", poID).
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, storageErr(err)
	}
	return events, nil
}

func lockPO(tx *gorm.DB, poID int64) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := lockForUpdate(tx).First(&po, poID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("purchase order %d not found", poID)
		}
		return nil, err
	}
	return &po, nil
}
