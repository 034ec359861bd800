package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"vendra-system/internal/database/models"
)

type RFQInput struct {
	PartNumber  string
	Description string
	Quantity    int32
}

// CreateRFQ opens a new buyer request for quotation.
func (e *Engine) CreateRFQ(ctx context.Context, in RFQInput, actor Actor) (*models.RFQ, error) {
	if strings.TrimSpace(in.PartNumber) == "" {
		return nil, validationf("part_number is required")
	}
	if in.Quantity <= 0 {
		return nil, validationf("quantity must be positive")
	}

	rfq := models.RFQ{
		BuyerOrgID:  actor.OrgID,
		CreatedByID: actor.UserID,
		PartNumber:  in.PartNumber,
		Quantity:    in.Quantity,
		Status:      models.RFQOpen,
	}
	if in.Description != "" {
		rfq.Description = &in.Description
	}
	if err := e.db.WithContext(ctx).Create(&rfq).Error; err != nil {
		return nil, storageErr(err)
	}

	e.log.Info("RFQ created", "rfq_id", rfq.ID, "buyer_org_id", actor.OrgID)
	return &rfq, nil
}

func (e *Engine) GetRFQ(ctx context.Context, rfqID int64) (*models.RFQ, error) {
	var rfq models.RFQ
	if err := e.db.WithContext(ctx).Preload("Quotes").First(&rfq, rfqID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("RFQ %d not found", rfqID)
		}
		return nil, storageErr(err)
	}
	return &rfq, nil
}

func (e *Engine) ListOpenRFQs(ctx context.Context, limit, offset int) ([]models.RFQ, error) {
	if limit <= 0 {
		limit = 20
	}
	var rfqs []models.RFQ
	if err := e.db.WithContext(ctx).
		Where("status = ?", models.RFQOpen).
		Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&rfqs).Error; err != nil {
		return nil, storageErr(err)
	}
	return rfqs, nil
}

type QuoteInput struct {
	RFQID        int64
	Price        string
	LeadTimeDays int32
	Notes        string
}

// SubmitQuote records a supplier bid against an open RFQ.
func (e *Engine) SubmitQuote(ctx context.Context, in QuoteInput, actor Actor) (*models.Quote, error) {
	price, err := decimal.NewFromString(in.Price)
	if err != nil {
		return nil, validationf("price %q is not a valid decimal", in.Price)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, validationf("price must be positive, got %s", price.String())
	}
	if in.LeadTimeDays <= 0 {
		return nil, validationf("lead_time_days must be positive")
	}

	var rfq models.RFQ
	if err := e.db.WithContext(ctx).First(&rfq, in.RFQID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("RFQ %d not found", in.RFQID)
		}
		return nil, storageErr(err)
	}
	if rfq.Status != models.RFQOpen {
		return nil, invalidStatef("RFQ %d is %s, quotes are no longer accepted", rfq.ID, rfq.Status)
	}
	if rfq.BuyerOrgID == actor.OrgID {
		return nil, unauthorizedf("buyers cannot quote on their own RFQ")
	}

	quote := models.Quote{
		RFQID:         rfq.ID,
		SupplierOrgID: actor.OrgID,
		Price:         price.String(),
		LeadTimeDays:  in.LeadTimeDays,
		Status:        models.QuoteSubmitted,
	}
	if in.Notes != "" {
		quote.Notes = &in.Notes
	}
	if err := e.db.WithContext(ctx).Create(&quote).Error; err != nil {
		return nil, storageErr(err)
	}

	e.log.Info("quote submitted", "quote_id", quote.ID, "rfq_id", rfq.ID, "supplier_org_id", actor.OrgID)
	return &quote, nil
}
