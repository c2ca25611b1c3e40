package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gwdomain "github.com/campushq/paycore/internal/gateway/domain"
	"github.com/campushq/paycore/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 1 << 20

// HandleGatewayWebhook ingests asynchronous notifications. Ignored event
// types and replays are acknowledged so the network stops retrying.
func (s *Server) HandleGatewayWebhook(c *gin.Context) {
	gateway := strings.TrimSpace(c.Param("gateway"))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.dispatcher.IngestCallback(c.Request.Context(), gateway, gwdomain.Callback{
		Body:   payload,
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header,
	})
	if err != nil {
		if errors.Is(err, gwdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if errors.Is(err, gwdomain.ErrDeclined) {
			c.JSON(http.StatusOK, gin.H{"status": "declined"})
			return
		}
		AbortWithError(c, err)
		return
	}

	if result != nil && result.Replayed {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleGatewayReturn lands the payer after a hosted page or approval
// flow. The signed query (or opaque transaction id) goes through the same
// dispatcher as a webhook.
func (s *Server) HandleGatewayReturn(c *gin.Context) {
	gateway := strings.TrimSpace(c.Param("gateway"))

	result, err := s.dispatcher.IngestCallback(c.Request.Context(), gateway, gwdomain.Callback{
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header,
	})
	if err != nil {
		if errors.Is(err, gwdomain.ErrDeclined) {
			c.JSON(http.StatusOK, gin.H{"status": "declined"})
			return
		}
		AbortWithError(c, err)
		return
	}

	status := "ok"
	if result != nil && result.Replayed {
		status = "duplicate"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) HandleSubscriptionStatus(c *gin.Context) {
	tenantID, err := strconv.ParseInt(strings.TrimSpace(c.Param("tenant_id")), 10, 64)
	if err != nil || tenantID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.ledger.Status(c.Request.Context(), tenantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusOK, gin.H{"tenant_id": c.Param("tenant_id"), "status": "NONE"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (s *Server) HandleListPayments(c *gin.Context) {
	tenantID, err := strconv.ParseInt(strings.TrimSpace(c.Param("tenant_id")), 10, 64)
	if err != nil || tenantID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if page.PageSize < 1 || page.PageSize > 250 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var beforeAt time.Time
	var beforeID int64
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		beforeAt, err = time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		beforeID, err = strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	records, info, err := s.ledger.Payments(c.Request.Context(), tenantID, beforeAt, beforeID, page.PageSize)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": records, "page_info": info})
}
