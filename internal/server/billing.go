package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	"github.com/smallbiznis/telcobill/internal/invoice/render"
	paymentdomain "github.com/smallbiznis/telcobill/internal/payment/domain"
	"github.com/smallbiznis/telcobill/internal/period"
)

func (s *Server) ListBills(c *gin.Context) {
	status := invoicedomain.BillStatus(c.Query("status"))
	resp, err := s.invoiceSvc.List(c.Request.Context(), c.Query("customer_id"), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBill(c *gin.Context) {
	bill, lines, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"bill": bill, "lines": lines}})
}

func (s *Server) RenderBill(c *gin.Context) {
	ctx := c.Request.Context()

	bill, lines, err := s.invoiceSvc.GetByID(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	customer, err := s.customerSvc.GetByID(ctx, bill.CustomerID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	simIDs := make([]snowflake.ID, 0, len(lines))
	for _, line := range lines {
		simIDs = append(simIDs, line.SimID)
	}
	msisdns, err := s.lookupMsisdns(c, simIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	input := render.RenderInput{
		Company:  "TelcoBill",
		Customer: render.CustomerView{Name: customer.Name, Email: customer.Email},
		Bill: render.BillView{
			ID:             bill.ID.String(),
			Month:          string(bill.Month),
			Status:         string(bill.Status),
			GeneratedAt:    bill.GeneratedAt,
			DueDate:        bill.DueDate,
			SubtotalCents:  bill.SubtotalCents,
			TaxCents:       bill.TaxCents,
			SurchargeCents: bill.SurchargeCents,
			PenaltyCents:   bill.PenaltyCents,
			TotalCents:     bill.TotalCents,
		},
	}
	for _, line := range lines {
		input.Lines = append(input.Lines, render.LineView{
			Msisdn:     msisdns[line.SimID],
			PlanCode:   line.PlanCode,
			TotalCents: line.TotalCents,
		})
	}

	html, err := s.renderer.RenderHTML(input)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) lookupMsisdns(c *gin.Context, simIDs []snowflake.ID) (map[snowflake.ID]string, error) {
	msisdns := make(map[snowflake.ID]string, len(simIDs))
	if len(simIDs) == 0 {
		return msisdns, nil
	}

	var rows []struct {
		ID     snowflake.ID
		Msisdn string
	}
	err := s.db.WithContext(c.Request.Context()).
		Raw(`SELECT id, msisdn FROM sims WHERE id IN ?`, simIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		msisdns[row.ID] = row.Msisdn
	}
	return msisdns, nil
}

func (s *Server) ListPayments(c *gin.Context) {
	resp, err := s.paymentSvc.ListByBill(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyPayment(c *gin.Context) {
	var req paymentdomain.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.BillID = c.Param("id")

	resp, err := s.paymentSvc.Apply(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type runCycleRequest struct {
	Month string `json:"month"`
}

func (s *Server) RunBillingCycle(c *gin.Context) {
	var req runCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	month, err := period.Parse(req.Month)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.scheduler.RunCycle(c.Request.Context(), month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) RunPenaltyScan(c *gin.Context) {
	report, err := s.penalties.Scan(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}
