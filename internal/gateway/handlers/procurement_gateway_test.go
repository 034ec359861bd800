package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vendra-system/internal/database"
	"vendra-system/internal/gateway/handlers"
	"vendra-system/internal/gateway/middleware"
	"vendra-system/internal/lifecycle"
	"vendra-system/internal/logger"
	"vendra-system/internal/utils"
)

var testSecret = []byte("gateway-test-secret")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	engine := lifecycle.NewEngine(db, logger.NewNop(), nil)
	procurement := handlers.NewProcurementHTTPHandler(engine)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(testSecret))
	{
		api.POST("/rfqs", procurement.CreateRFQ)
		api.GET("/rfqs", procurement.ListRFQs)
		api.GET("/rfqs/:id", procurement.GetRFQ)
		api.POST("/rfqs/:id/quotes", procurement.SubmitQuote)
		api.POST("/quotes/:id/accept", procurement.AcceptQuote)
		api.GET("/purchase-orders/:id", procurement.GetPurchaseOrder)
		api.POST("/purchase-orders/:id/accept", procurement.AcceptPurchaseOrder)
		api.POST("/purchase-orders/:id/milestones/:milestoneId/complete", procurement.CompleteMilestone)
		api.POST("/purchase-orders/:id/milestones/:milestoneId/pay", procurement.PayMilestone)
		api.POST("/purchase-orders/:id/disputes", procurement.RaiseDispute)
	}
	return r
}

func token(t *testing.T, userID, orgID int64, role string) string {
	t.Helper()
	s, _, err := utils.GenerateToken(testSecret, userID, orgID, "tester", role, time.Hour)
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, r *gin.Engine, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateRFQRequiresToken(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/rfqs", "", gin.H{"part_number": "X", "quantity": 5})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQuoteToPurchaseOrderFlow(t *testing.T) {
	r := newTestRouter(t)
	buyerToken := token(t, 1, 10, lifecycle.RoleBuyer)
	supplierToken := token(t, 2, 20, lifecycle.RoleSupplier)

	w := doJSON(t, r, http.MethodPost, "/api/v1/rfqs", buyerToken, gin.H{
		"part_number": "BRKT-7075",
		"quantity":    100,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var createResp struct {
		RFQ struct{ ID int64 } `json:"rfq"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/rfqs/%d/quotes", createResp.RFQ.ID), supplierToken, gin.H{
		"price":          "500",
		"lead_time_days": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var quoteResp struct {
		Quote struct{ ID int64 } `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quoteResp))

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/accept", quoteResp.Quote.ID), buyerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var acceptResp struct {
		PurchaseOrder struct {
			ID       int64
			PONumber string `json:"PONumber"`
		} `json:"purchase_order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acceptResp))
	require.NotZero(t, acceptResp.PurchaseOrder.ID)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/purchase-orders/%d/accept", acceptResp.PurchaseOrder.ID), supplierToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/purchase-orders/%d", acceptResp.PurchaseOrder.ID), buyerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "accepted")
}

func TestAcceptQuoteWrongOrgIsForbidden(t *testing.T) {
	r := newTestRouter(t)
	buyerToken := token(t, 1, 10, lifecycle.RoleBuyer)
	supplierToken := token(t, 2, 20, lifecycle.RoleSupplier)

	w := doJSON(t, r, http.MethodPost, "/api/v1/rfqs", buyerToken, gin.H{"part_number": "X", "quantity": 5})
	require.Equal(t, http.StatusCreated, w.Code)
	var createResp struct {
		RFQ struct{ ID int64 } `json:"rfq"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/rfqs/%d/quotes", createResp.RFQ.ID), supplierToken, gin.H{
		"price":          "500",
		"lead_time_days": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var quoteResp struct {
		Quote struct{ ID int64 } `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quoteResp))

	// The supplier cannot accept its own quote on the buyer's behalf.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/quotes/%d/accept", quoteResp.Quote.ID), supplierToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "unauthorized")
}

func TestInvalidIDReturnsBadRequest(t *testing.T) {
	r := newTestRouter(t)
	buyerToken := token(t, 1, 10, lifecycle.RoleBuyer)

	w := doJSON(t, r, http.MethodGet, "/api/v1/purchase-orders/abc", buyerToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissingPurchaseOrderReturnsNotFound(t *testing.T) {
	r := newTestRouter(t)
	buyerToken := token(t, 1, 10, lifecycle.RoleBuyer)

	w := doJSON(t, r, http.MethodGet, "/api/v1/purchase-orders/9999", buyerToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "not_found")
}

func TestDisputeOnMissingPOReturnsNotFound(t *testing.T) {
	r := newTestRouter(t)
	buyerToken := token(t, 1, 10, lifecycle.RoleBuyer)

	w := doJSON(t, r, http.MethodPost, "/api/v1/purchase-orders/9999/disputes", buyerToken, gin.H{"reason": "late"})
	require.Equal(t, http.StatusNotFound, w.Code)
}
