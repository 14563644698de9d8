package status

import (
	"time"

	"github.com/shopspring/decimal"
)

// Data sources a result can be served from.
const (
	SourceMemory     = "memory"
	SourcePersistent = "persistent"
	SourceLive       = "live"
)

// Result is the consolidated product-status view for one MTO.
// CacheAgeSeconds is present only for persistent-tier responses.
type Result struct {
	Parent          Parent    `json:"parent"`
	Children        []Child   `json:"children"`
	QueryTime       time.Time `json:"query_time"`
	DataSource      string    `json:"data_source"`
	CacheAgeSeconds *int64    `json:"cache_age_seconds,omitempty"`
}

// Parent carries the MTO-level metadata: the manufacturing order for the
// finished product plus customer and delivery info from the sales orders.
type Parent struct {
	MTO           string          `json:"mto"`
	BillNo        string          `json:"bill_no,omitempty"`
	MaterialCode  string          `json:"material_code,omitempty"`
	MaterialName  string          `json:"material_name,omitempty"`
	Specification string          `json:"specification,omitempty"`
	Workshop      string          `json:"workshop,omitempty"`
	Qty           decimal.Decimal `json:"qty"`
	Status        string          `json:"status,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	DeliveryDate  string          `json:"delivery_date,omitempty"`
}

// Child is one aggregated line of the status view, keyed by
// (material_code, aux_prop_id) and classified by material-code prefix.
// The three Prod/Purchase column groups are populated per class recipe;
// absent columns are omitted from the JSON encoding.
type Child struct {
	MaterialCode  string `json:"material_code"`
	AuxPropID     int64  `json:"aux_prop_id"`
	MaterialName  string `json:"material_name,omitempty"`
	Specification string `json:"specification,omitempty"`
	MaterialClass string `json:"material_class"`

	RequiredQty decimal.Decimal `json:"required_qty"`
	PickedQty   decimal.Decimal `json:"picked_qty"`
	UnpickedQty decimal.Decimal `json:"unpicked_qty"`
	OverPick    bool            `json:"over_pick,omitempty"`

	DeliveredQty decimal.Decimal `json:"delivered_qty"`

	SalesOrderQty      *decimal.Decimal `json:"sales_order_qty,omitempty"`
	ProdInstockMustQty *decimal.Decimal `json:"prod_instock_must_qty,omitempty"`
	ProdInstockRealQty *decimal.Decimal `json:"prod_instock_real_qty,omitempty"`
	PurchaseOrderQty   *decimal.Decimal `json:"purchase_order_qty,omitempty"`
	PurchaseStockInQty *decimal.Decimal `json:"purchase_stock_in_qty,omitempty"`
	PickActualQty      *decimal.Decimal `json:"pick_actual_qty,omitempty"`
}

// BillRef is one deduplicated bill number in the related-orders tree.
// LinkedOrder, when set, names the order bill this document was booked
// against.
type BillRef struct {
	BillNo      string `json:"bill_no"`
	Label       string `json:"label"`
	LinkedOrder string `json:"linked_order,omitempty"`
}

// RelatedOrders is the deduplicated bill-number tree for an MTO.
type RelatedOrders struct {
	Orders struct {
		SalesOrders      []BillRef `json:"sales_orders"`
		ProductionOrders []BillRef `json:"production_orders"`
		PurchaseOrders   []BillRef `json:"purchase_orders"`
	} `json:"orders"`
	Documents struct {
		ProductionReceipts []BillRef `json:"production_receipts"`
		PurchaseReceipts   []BillRef `json:"purchase_receipts"`
		MaterialPicking    []BillRef `json:"material_picking"`
		SalesDeliveries    []BillRef `json:"sales_deliveries"`
	} `json:"documents"`
	QueryTime  time.Time `json:"query_time"`
	DataSource string    `json:"data_source"`
}
