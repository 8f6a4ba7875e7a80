package dto

import (
	"github.com/jakeross838/Construction-Management-Software-sub001/internal/core/domain"
	"github.com/shopspring/decimal"
)

// POLineItemResponse is one scope line on a PO.
type POLineItemResponse struct {
	LineItemID    string          `json:"lineItemID"`
	CostCodeID    *string         `json:"costCodeID,omitempty"`
	ChangeOrderID *string         `json:"changeOrderID,omitempty"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// POFundingResponse is a purchase order annotated with its remaining balance,
// computed excluding the invoice currently being edited.
type POFundingResponse struct {
	POID             string               `json:"poID"`
	PONumber         string               `json:"poNumber"`
	VendorID         string               `json:"vendorID"`
	TotalAmount      decimal.Decimal      `json:"totalAmount"`
	PreviouslyBilled decimal.Decimal      `json:"previouslyBilled"`
	Remaining        decimal.Decimal      `json:"remaining"`
	LineItems        []POLineItemResponse `json:"lineItems,omitempty"`
}

// COFundingResponse is a change order annotated with its remaining balance.
type COFundingResponse struct {
	ChangeOrderID     string          `json:"changeOrderID"`
	ChangeOrderNumber string          `json:"changeOrderNumber"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	PreviouslyBilled  decimal.Decimal `json:"previouslyBilled"`
	Remaining         decimal.Decimal `json:"remaining"`
}

// FundingSourcesResponse enumerates a job's candidate funding sources.
type FundingSourcesResponse struct {
	JobID          string              `json:"jobID"`
	PurchaseOrders []POFundingResponse `json:"purchaseOrders"`
	ChangeOrders   []COFundingResponse `json:"changeOrders"`
}

// ToPOFundingResponse converts an annotated domain PO.
func ToPOFundingResponse(po domain.PurchaseOrder) POFundingResponse {
	resp := POFundingResponse{
		POID:             po.POID,
		PONumber:         po.PONumber,
		VendorID:         po.VendorID,
		TotalAmount:      po.TotalAmount,
		PreviouslyBilled: po.PreviouslyBilled,
		Remaining:        po.Remaining(),
	}
	for _, li := range po.LineItems {
		resp.LineItems = append(resp.LineItems, POLineItemResponse{
			LineItemID:    li.LineItemID,
			CostCodeID:    li.CostCodeID,
			ChangeOrderID: li.ChangeOrderID,
			Description:   li.Description,
			Amount:        li.Amount,
		})
	}
	return resp
}

// ToCOFundingResponse converts an annotated domain CO.
func ToCOFundingResponse(co domain.ChangeOrder) COFundingResponse {
	return COFundingResponse{
		ChangeOrderID:     co.ChangeOrderID,
		ChangeOrderNumber: co.ChangeOrderNumber,
		Status:            string(co.Status),
		Amount:            co.Amount,
		PreviouslyBilled:  co.PreviouslyBilled,
		Remaining:         co.Remaining(),
	}
}
