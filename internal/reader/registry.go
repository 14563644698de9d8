package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/mtogate/mtogate/internal/upstream"
)

// Def describes one upstream form: its id, the field set to request, the
// exact (case-sensitive) field names used for date and MTO filters, and the
// decoder from a raw record to the typed record. Defs are immutable after
// construction.
//
// The MTO field name varies across forms in both spelling and casing
// (FMTONO / FMtoNo / FMTONo). This mirrors the upstream form definitions and
// must be preserved exactly when composing filters.
type Def[T any] struct {
	Name      string
	FormID    string
	DateField string
	MTOField  string
	BillField string
	Fields    []string
	Decode    func(upstream.Record) (T, error)
}

const dateLayout = "2006-01-02"

// FetchByMTO returns every record of the form whose MTO field equals mto.
func FetchByMTO[T any](ctx context.Context, q upstream.Querier, def Def[T], pageSize int, mto string) ([]T, error) {
	return fetch(ctx, q, def, pageSize, upstream.Eq(def.MTOField, mto))
}

// FetchByDateRange returns every record of the form whose date field falls
// in [start, end]. extra, when non-empty, is ANDed onto the filter verbatim.
func FetchByDateRange[T any](ctx context.Context, q upstream.Querier, def Def[T], pageSize int, start, end time.Time, extra string) ([]T, error) {
	filter := upstream.And(
		upstream.DateRange(def.DateField, start.Format(dateLayout), end.Format(dateLayout)),
		extra,
	)
	return fetch(ctx, q, def, pageSize, filter)
}

// FetchByBillNo returns every record of the form with the given bill number.
func FetchByBillNo[T any](ctx context.Context, q upstream.Querier, def Def[T], pageSize int, bill string) ([]T, error) {
	return fetch(ctx, q, def, pageSize, upstream.Eq(def.BillField, bill))
}

func fetch[T any](ctx context.Context, q upstream.Querier, def Def[T], pageSize int, filter string) ([]T, error) {
	records, err := upstream.QueryAll(ctx, q, def.FormID, def.Fields, filter, pageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", def.Name, err)
	}

	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := def.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("%s: decode: %w", def.Name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ProductionOrders reads the manufacturing-order form.
var ProductionOrders = Def[ProductionOrder]{
	Name:      "production_orders",
	FormID:    "PRD_MO",
	DateField: "FCreateDate",
	MTOField:  "FMTONO",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMTONO", "FWorkShopID.FName", "FMaterialId.FNumber",
		"FMaterialName", "FSpecification", "FQty", "FStatus", "FCreateDate",
	},
	Decode: decodeProductionOrder,
}

// ProductionBOMs reads the production BOM (component requirement) form.
var ProductionBOMs = Def[ProductionBOM]{
	Name:      "production_bom",
	FormID:    "PRD_PPBOM",
	DateField: "FCreateDate",
	MTOField:  "FMtoNo",
	BillField: "FMOBillNo",
	Fields: []string{
		"FMOBillNo", "FMtoNo", "FMaterialID.FNumber", "FMaterialName",
		"FSpecification", "FAuxPropId", "FMaterialType", "FMustQty",
		"FPickedQty", "FNoPickedQty",
	},
	Decode: decodeProductionBOM,
}

// ProductionReceipts reads the production stock-in form.
var ProductionReceipts = Def[ProductionReceipt]{
	Name:      "production_receipts",
	FormID:    "PRD_INSTOCK",
	DateField: "FDate",
	MTOField:  "FMTONo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMTONo", "FMaterialId.FNumber", "FAuxPropId",
		"FRealQty", "FMustQty", "FMoBillNo",
	},
	Decode: decodeProductionReceipt,
}

// PurchaseOrders reads the purchase-order form.
var PurchaseOrders = Def[PurchaseOrder]{
	Name:      "purchase_orders",
	FormID:    "PUR_PurchaseOrder",
	DateField: "FDate",
	MTOField:  "FMTONo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMTONo", "FMaterialId.FNumber", "FMaterialName",
		"FAuxPropId", "FQty", "FStockInQty", "FRemainStockInQty",
	},
	Decode: decodePurchaseOrder,
}

// PurchaseReceipts reads the purchase stock-in form. The bill type
// discriminates standard purchases from subcontract returns.
var PurchaseReceipts = Def[PurchaseReceipt]{
	Name:      "purchase_receipts",
	FormID:    "STK_InStock",
	DateField: "FDate",
	MTOField:  "FMTONo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMTONo", "FMaterialId.FNumber", "FAuxPropId",
		"FRealQty", "FMustQty", "FBillTypeID.FNumber", "FPOOrderNo",
	},
	Decode: decodePurchaseReceipt,
}

// SubcontractOrders reads the subcontracting requisition form.
var SubcontractOrders = Def[SubcontractOrder]{
	Name:      "subcontract_orders",
	FormID:    "SUB_REQORDER",
	DateField: "FDate",
	MTOField:  "FMTONo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMTONo", "FMaterialId.FNumber", "FQty",
		"FStockInQty", "FNoStockInQty",
	},
	Decode: decodeSubcontractOrder,
}

// MaterialPickings reads the shop-floor picking form.
var MaterialPickings = Def[MaterialPicking]{
	Name:      "material_picking",
	FormID:    "PRD_PickMtrl",
	DateField: "FDate",
	MTOField:  "FMtoNo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMtoNo", "FMaterialId.FNumber", "FAppQty",
		"FActualQty", "FPPBomBillNo",
	},
	Decode: decodeMaterialPicking,
}

// SalesDeliveries reads the sales outbound (delivery) form.
var SalesDeliveries = Def[SalesDelivery]{
	Name:      "sales_deliveries",
	FormID:    "SAL_OUTSTOCK",
	DateField: "FDate",
	MTOField:  "FMtoNo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMtoNo", "FMaterialId.FNumber", "FAuxPropId",
		"FRealQty", "FMustQty",
	},
	Decode: decodeSalesDelivery,
}

// SalesOrders reads the sales-order form.
var SalesOrders = Def[SalesOrder]{
	Name:      "sales_orders",
	FormID:    "SAL_SaleOrder",
	DateField: "FCreateDate",
	MTOField:  "FMTONo",
	BillField: "FBillNo",
	Fields: []string{
		"FBillNo", "FMTONo", "FMaterialId.FNumber", "FMaterialName",
		"FCustId.FName", "FDeliveryDate", "FQty", "FAuxPropId",
	},
	Decode: decodeSalesOrder,
}

func decodeProductionOrder(rec upstream.Record) (ProductionOrder, error) {
	var o ProductionOrder
	var err error
	if o.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return o, err
	}
	if o.MTO, err = decodeString(rec, "FMTONO"); err != nil {
		return o, err
	}
	if o.Workshop, err = decodeString(rec, "FWorkShopID.FName"); err != nil {
		return o, err
	}
	if o.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return o, err
	}
	if o.MaterialName, err = decodeString(rec, "FMaterialName"); err != nil {
		return o, err
	}
	if o.Specification, err = decodeString(rec, "FSpecification"); err != nil {
		return o, err
	}
	if o.Qty, err = decodeQty(rec, "FQty"); err != nil {
		return o, err
	}
	if o.Status, err = decodeString(rec, "FStatus"); err != nil {
		return o, err
	}
	if o.CreateDate, err = decodeString(rec, "FCreateDate"); err != nil {
		return o, err
	}
	return o, nil
}

func decodeProductionBOM(rec upstream.Record) (ProductionBOM, error) {
	var b ProductionBOM
	var err error
	if b.MOBillNo, err = decodeString(rec, "FMOBillNo"); err != nil {
		return b, err
	}
	if b.MTO, err = decodeString(rec, "FMtoNo"); err != nil {
		return b, err
	}
	if b.MaterialCode, err = decodeString(rec, "FMaterialID.FNumber"); err != nil {
		return b, err
	}
	if b.MaterialName, err = decodeString(rec, "FMaterialName"); err != nil {
		return b, err
	}
	if b.Specification, err = decodeString(rec, "FSpecification"); err != nil {
		return b, err
	}
	if b.AuxPropID, err = decodeInt(rec, "FAuxPropId"); err != nil {
		return b, err
	}
	if b.MaterialType, err = decodeInt(rec, "FMaterialType"); err != nil {
		return b, err
	}
	if b.NeedQty, err = decodeQty(rec, "FMustQty"); err != nil {
		return b, err
	}
	if b.PickedQty, err = decodeQty(rec, "FPickedQty"); err != nil {
		return b, err
	}
	if b.NoPickedQty, err = decodeQty(rec, "FNoPickedQty"); err != nil {
		return b, err
	}
	return b, nil
}

func decodeProductionReceipt(rec upstream.Record) (ProductionReceipt, error) {
	var r ProductionReceipt
	var err error
	if r.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return r, err
	}
	if r.MTO, err = decodeString(rec, "FMTONo"); err != nil {
		return r, err
	}
	if r.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return r, err
	}
	if r.AuxPropID, err = decodeInt(rec, "FAuxPropId"); err != nil {
		return r, err
	}
	if r.RealQty, err = decodeQty(rec, "FRealQty"); err != nil {
		return r, err
	}
	if r.MustQty, err = decodeQty(rec, "FMustQty"); err != nil {
		return r, err
	}
	if r.MOBillNo, err = decodeString(rec, "FMoBillNo"); err != nil {
		return r, err
	}
	return r, nil
}

func decodePurchaseOrder(rec upstream.Record) (PurchaseOrder, error) {
	var p PurchaseOrder
	var err error
	if p.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return p, err
	}
	if p.MTO, err = decodeString(rec, "FMTONo"); err != nil {
		return p, err
	}
	if p.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return p, err
	}
	if p.MaterialName, err = decodeString(rec, "FMaterialName"); err != nil {
		return p, err
	}
	if p.AuxPropID, err = decodeInt(rec, "FAuxPropId"); err != nil {
		return p, err
	}
	if p.OrderQty, err = decodeQty(rec, "FQty"); err != nil {
		return p, err
	}
	if p.StockInQty, err = decodeQty(rec, "FStockInQty"); err != nil {
		return p, err
	}
	if p.RemainStockInQty, err = decodeQty(rec, "FRemainStockInQty"); err != nil {
		return p, err
	}
	return p, nil
}

func decodePurchaseReceipt(rec upstream.Record) (PurchaseReceipt, error) {
	var r PurchaseReceipt
	var err error
	if r.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return r, err
	}
	if r.MTO, err = decodeString(rec, "FMTONo"); err != nil {
		return r, err
	}
	if r.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return r, err
	}
	if r.AuxPropID, err = decodeInt(rec, "FAuxPropId"); err != nil {
		return r, err
	}
	if r.RealQty, err = decodeQty(rec, "FRealQty"); err != nil {
		return r, err
	}
	if r.MustQty, err = decodeQty(rec, "FMustQty"); err != nil {
		return r, err
	}
	if r.BillType, err = decodeBillType(rec, "FBillTypeID.FNumber"); err != nil {
		return r, err
	}
	if r.POBillNo, err = decodeString(rec, "FPOOrderNo"); err != nil {
		return r, err
	}
	return r, nil
}

func decodeSubcontractOrder(rec upstream.Record) (SubcontractOrder, error) {
	var s SubcontractOrder
	var err error
	if s.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return s, err
	}
	if s.MTO, err = decodeString(rec, "FMTONo"); err != nil {
		return s, err
	}
	if s.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return s, err
	}
	if s.OrderQty, err = decodeQty(rec, "FQty"); err != nil {
		return s, err
	}
	if s.StockInQty, err = decodeQty(rec, "FStockInQty"); err != nil {
		return s, err
	}
	if s.NoStockInQty, err = decodeQty(rec, "FNoStockInQty"); err != nil {
		return s, err
	}
	return s, nil
}

func decodeMaterialPicking(rec upstream.Record) (MaterialPicking, error) {
	var m MaterialPicking
	var err error
	if m.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return m, err
	}
	if m.MTO, err = decodeString(rec, "FMtoNo"); err != nil {
		return m, err
	}
	if m.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return m, err
	}
	if m.AppQty, err = decodeQty(rec, "FAppQty"); err != nil {
		return m, err
	}
	if m.ActualQty, err = decodeQty(rec, "FActualQty"); err != nil {
		return m, err
	}
	if m.PPBOMBillNo, err = decodeString(rec, "FPPBomBillNo"); err != nil {
		return m, err
	}
	return m, nil
}

func decodeSalesDelivery(rec upstream.Record) (SalesDelivery, error) {
	var d SalesDelivery
	var err error
	if d.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return d, err
	}
	if d.MTO, err = decodeString(rec, "FMtoNo"); err != nil {
		return d, err
	}
	if d.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return d, err
	}
	if d.AuxPropID, err = decodeInt(rec, "FAuxPropId"); err != nil {
		return d, err
	}
	if d.RealQty, err = decodeQty(rec, "FRealQty"); err != nil {
		return d, err
	}
	if d.MustQty, err = decodeQty(rec, "FMustQty"); err != nil {
		return d, err
	}
	return d, nil
}

func decodeSalesOrder(rec upstream.Record) (SalesOrder, error) {
	var s SalesOrder
	var err error
	if s.BillNo, err = decodeString(rec, "FBillNo"); err != nil {
		return s, err
	}
	if s.MTO, err = decodeString(rec, "FMTONo"); err != nil {
		return s, err
	}
	if s.MaterialCode, err = decodeString(rec, "FMaterialId.FNumber"); err != nil {
		return s, err
	}
	if s.MaterialName, err = decodeString(rec, "FMaterialName"); err != nil {
		return s, err
	}
	if s.CustomerName, err = decodeString(rec, "FCustId.FName"); err != nil {
		return s, err
	}
	if s.DeliveryDate, err = decodeString(rec, "FDeliveryDate"); err != nil {
		return s, err
	}
	if s.Qty, err = decodeQty(rec, "FQty"); err != nil {
		return s, err
	}
	if s.AuxPropID, err = decodeInt(rec, "FAuxPropId"); err != nil {
		return s, err
	}
	return s, nil
}
