package server

import (
	"net/http"
	"strconv"
	"strings"

	billingdomain "github.com/campushq/paycore/internal/billing/domain"
	checkoutservice "github.com/campushq/paycore/internal/checkout/service"
	"github.com/gin-gonic/gin"
)

type createCheckoutRequest struct {
	TenantID  string `json:"tenant_id" binding:"required"`
	PlanID    string `json:"plan_id" binding:"required"`
	Frequency string `json:"frequency" binding:"required"`
	Gateway   string `json:"gateway" binding:"required"`
}

type createCheckoutResponse struct {
	Gateway     string `json:"gateway"`
	OrderRef    string `json:"order_ref"`
	RedirectURL string `json:"redirect_url"`
}

func (s *Server) HandleCreateCheckout(c *gin.Context) {
	var body createCheckoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	tenantID, err := strconv.ParseInt(strings.TrimSpace(body.TenantID), 10, 64)
	if err != nil || tenantID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	planID, err := strconv.ParseInt(strings.TrimSpace(body.PlanID), 10, 64)
	if err != nil || planID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	freq := billingdomain.Frequency(strings.ToLower(strings.TrimSpace(body.Frequency)))
	if !freq.Valid() {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	intent, err := s.checkoutSvc.InitiateCheckout(c.Request.Context(), checkoutservice.InitiateRequest{
		TenantID:  tenantID,
		PlanID:    planID,
		Frequency: freq,
		Gateway:   body.Gateway,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, createCheckoutResponse{
		Gateway:     intent.Gateway,
		OrderRef:    intent.OrderRef,
		RedirectURL: intent.RedirectURL,
	})
}
