package reader

import "github.com/shopspring/decimal"

// Typed upstream records, one per form. Every record carries the MTO number
// and material code; quantities are fixed-point decimals so aggregation is
// exact. Identifiers stay strings end to end.

// ProductionOrder is one line of a manufacturing order.
type ProductionOrder struct {
	BillNo        string
	MTO           string
	Workshop      string
	MaterialCode  string
	MaterialName  string
	Specification string
	Qty           decimal.Decimal
	Status        string
	CreateDate    string
}

// ProductionBOM is one component line of a manufacturing order's BOM.
// MaterialType distinguishes 1=parent, 2=self-made child, 3=purchased child.
type ProductionBOM struct {
	MOBillNo      string
	MTO           string
	MaterialCode  string
	MaterialName  string
	Specification string
	AuxPropID     int64
	MaterialType  int64
	NeedQty       decimal.Decimal
	PickedQty     decimal.Decimal
	NoPickedQty   decimal.Decimal
}

// ProductionReceipt records finished or semi-finished goods booked into
// stock from a manufacturing order.
type ProductionReceipt struct {
	BillNo       string
	MTO          string
	MaterialCode string
	AuxPropID    int64
	RealQty      decimal.Decimal
	MustQty      decimal.Decimal
	MOBillNo     string
}

// PurchaseOrder is one line of a purchase order.
type PurchaseOrder struct {
	BillNo           string
	MTO              string
	MaterialCode     string
	MaterialName     string
	AuxPropID        int64
	OrderQty         decimal.Decimal
	StockInQty       decimal.Decimal
	RemainStockInQty decimal.Decimal
}

// Purchase receipt bill types.
const (
	BillTypeStandard    = "standard"
	BillTypeSubcontract = "subcontract"
)

// PurchaseReceipt records purchased goods booked into stock. BillType
// distinguishes standard purchases from subcontract returns.
type PurchaseReceipt struct {
	BillNo       string
	MTO          string
	MaterialCode string
	AuxPropID    int64
	RealQty      decimal.Decimal
	MustQty      decimal.Decimal
	BillType     string
	POBillNo     string
}

// SubcontractOrder is one line of a subcontracting requisition.
type SubcontractOrder struct {
	BillNo       string
	MTO          string
	MaterialCode string
	OrderQty     decimal.Decimal
	StockInQty   decimal.Decimal
	NoStockInQty decimal.Decimal
}

// MaterialPicking records materials issued to the shop floor against a
// production BOM.
type MaterialPicking struct {
	BillNo       string
	MTO          string
	MaterialCode string
	AppQty       decimal.Decimal
	ActualQty    decimal.Decimal
	PPBOMBillNo  string
}

// SalesDelivery records goods shipped to the customer.
type SalesDelivery struct {
	BillNo       string
	MTO          string
	MaterialCode string
	AuxPropID    int64
	RealQty      decimal.Decimal
	MustQty      decimal.Decimal
}

// SalesOrder is one line of a sales order.
type SalesOrder struct {
	BillNo       string
	MTO          string
	MaterialCode string
	MaterialName string
	CustomerName string
	DeliveryDate string
	Qty          decimal.Decimal
	AuxPropID    int64
}
