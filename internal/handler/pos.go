package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"dukapos/internal/apierror"
	"dukapos/internal/dto"
	"dukapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type POSHandler struct{ svc service.POSService }

func NewPOSHandler(svc service.POSService) *POSHandler { return &POSHandler{svc: svc} }

// Branches godoc
// @Summary      List branches for the storefront
// @Tags         pos
// @Produce      json
// @Success      200 {array} dto.BranchResponse
// @Router       /api/pos/branches [get]
func (h *POSHandler) Branches(c *gin.Context) {
	resp, err := h.svc.ListBranches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list branches"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// BranchProducts godoc
// @Summary      Products in stock at a branch
// @Tags         pos
// @Produce      json
// @Param        id path string true "Branch UUID"
// @Success      200 {object} dto.BranchProductsResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/pos/branches/{id}/products [get]
func (h *POSHandler) BranchProducts(c *gin.Context) {
	resp, err := h.svc.BranchProducts(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Preview godoc
// @Summary      Price a cart
// @Description  Resolves prices and verifies stock without initiating payment.
// @Tags         pos
// @Accept       json
// @Produce      json
// @Param        body body dto.PreviewRequest true "Branch and cart lines"
// @Success      200 {object} dto.PreviewResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/pos/order/preview [post]
func (h *POSHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Preview(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Initiate godoc
// @Summary      Start an M-Pesa checkout
// @Description  Prices the cart, sends the STK push to the customer's phone and returns the checkout id to poll.
// @Tags         pos
// @Accept       json
// @Produce      json
// @Param        body body dto.InitiatePaymentRequest true "Branch, phone and cart"
// @Success      200 {object} dto.InitiatePaymentResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/pos/payment/initiate [post]
func (h *POSHandler) Initiate(c *gin.Context) {
	var req dto.InitiatePaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Initiate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Callback godoc
// @Summary      M-Pesa result webhook
// @Description  Receives the asynchronous stkCallback from the gateway. Always acknowledges with ResultCode 0 — Daraja retries on anything else and every settle path is idempotent.
// @Tags         pos
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /api/pos/payment/callback [post]
func (h *POSHandler) Callback(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}

	if err := h.svc.HandleCallback(c.Request.Context(), raw); err != nil {
		// Still acknowledge: the reconciler covers anything the webhook
		// could not settle, and a non-200 only triggers gateway retries.
		log.Error().Err(err).Msg("callback processing failed")
	}
	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// Confirm godoc
// @Summary      Confirm a checkout
// @Description  Returns the attempt's outcome, querying the gateway if the webhook has not landed yet. Safe to call repeatedly.
// @Tags         pos
// @Accept       json
// @Produce      json
// @Param        body body dto.ConfirmPaymentRequest true "Checkout request id"
// @Success      200 {object} dto.PaymentStatusResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/pos/payment/confirm [post]
func (h *POSHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Confirm(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, service.ErrAttemptNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, apierror.New("Confirmation failed"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Status godoc
// @Summary      Poll checkout status
// @Tags         pos
// @Produce      json
// @Param        id path string true "Checkout request id"
// @Success      200 {object} dto.PaymentStatusResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/pos/payment/{id}/status [get]
func (h *POSHandler) Status(c *gin.Context) {
	resp, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Receipt godoc
// @Summary      Receipt for a settled sale
// @Tags         pos
// @Produce      json
// @Param        reference path string true "M-Pesa reference"
// @Success      200 {object} dto.ReceiptResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/pos/receipt/{reference} [get]
func (h *POSHandler) Receipt(c *gin.Context) {
	resp, err := h.svc.Receipt(c.Request.Context(), c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReceiptPDF godoc
// @Summary      Printable receipt for a settled sale
// @Tags         pos
// @Produce      application/pdf
// @Param        reference path string true "M-Pesa reference"
// @Success      200 {file} binary
// @Failure      404 {object} apierror.APIError
// @Router       /api/pos/receipt/{reference}/pdf [get]
func (h *POSHandler) ReceiptPDF(c *gin.Context) {
	path, err := h.svc.ReceiptPDF(c.Request.Context(), c.Param("reference"))
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
