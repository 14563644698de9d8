package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mtogate/mtogate/internal/reader"
)

// Reads by MTO, one per table, returning the same typed records the live
// readers produce so the assembler is tier-agnostic.

func (s *Store) ProductionOrdersByMTO(ctx context.Context, mto string) ([]reader.ProductionOrder, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, workshop, material_code, material_name, specification, qty, status, create_date
		FROM production_orders WHERE mto = ? ORDER BY bill_no`, mto)
	if err != nil {
		return nil, fmt.Errorf("query production_orders: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.ProductionOrder
	for rows.Next() {
		var r reader.ProductionOrder
		var qty string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.Workshop, &r.MaterialCode, &r.MaterialName, &r.Specification, &qty, &r.Status, &r.CreateDate); err != nil {
			return nil, fmt.Errorf("scan production_order: %w", err)
		}
		if r.Qty, err = parseQty(qty); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ProductionBOMsByMTO(ctx context.Context, mto string) ([]reader.ProductionBOM, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT mo_bill_no, mto, material_code, material_name, specification, aux_prop_id, material_type, need_qty, picked_qty, no_picked_qty
		FROM production_bom WHERE mto = ? ORDER BY mo_bill_no, material_code, aux_prop_id`, mto)
	if err != nil {
		return nil, fmt.Errorf("query production_bom: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.ProductionBOM
	for rows.Next() {
		var r reader.ProductionBOM
		var need, picked, noPicked string
		if err := rows.Scan(&r.MOBillNo, &r.MTO, &r.MaterialCode, &r.MaterialName, &r.Specification, &r.AuxPropID, &r.MaterialType, &need, &picked, &noPicked); err != nil {
			return nil, fmt.Errorf("scan production_bom: %w", err)
		}
		if r.NeedQty, err = parseQty(need); err != nil {
			return nil, err
		}
		if r.PickedQty, err = parseQty(picked); err != nil {
			return nil, err
		}
		if r.NoPickedQty, err = parseQty(noPicked); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ProductionReceiptsByMTO(ctx context.Context, mto string) ([]reader.ProductionReceipt, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, aux_prop_id, real_qty, must_qty, mo_bill_no
		FROM production_receipts WHERE mto = ? ORDER BY material_code, aux_prop_id`, mto)
	if err != nil {
		return nil, fmt.Errorf("query production_receipts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.ProductionReceipt
	for rows.Next() {
		var r reader.ProductionReceipt
		var real, must string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &r.AuxPropID, &real, &must, &r.MOBillNo); err != nil {
			return nil, fmt.Errorf("scan production_receipt: %w", err)
		}
		if r.RealQty, err = parseQty(real); err != nil {
			return nil, err
		}
		if r.MustQty, err = parseQty(must); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PurchaseOrdersByMTO(ctx context.Context, mto string) ([]reader.PurchaseOrder, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, material_name, aux_prop_id, order_qty, stock_in_qty, remain_stock_in_qty
		FROM purchase_orders WHERE mto = ? ORDER BY bill_no, material_code, aux_prop_id`, mto)
	if err != nil {
		return nil, fmt.Errorf("query purchase_orders: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.PurchaseOrder
	for rows.Next() {
		var r reader.PurchaseOrder
		var order, stockIn, remain string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &r.MaterialName, &r.AuxPropID, &order, &stockIn, &remain); err != nil {
			return nil, fmt.Errorf("scan purchase_order: %w", err)
		}
		if r.OrderQty, err = parseQty(order); err != nil {
			return nil, err
		}
		if r.StockInQty, err = parseQty(stockIn); err != nil {
			return nil, err
		}
		if r.RemainStockInQty, err = parseQty(remain); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PurchaseReceiptsByMTO(ctx context.Context, mto string) ([]reader.PurchaseReceipt, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, aux_prop_id, real_qty, must_qty, bill_type, po_bill_no
		FROM purchase_receipts WHERE mto = ? ORDER BY material_code, aux_prop_id, bill_type`, mto)
	if err != nil {
		return nil, fmt.Errorf("query purchase_receipts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.PurchaseReceipt
	for rows.Next() {
		var r reader.PurchaseReceipt
		var real, must string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &r.AuxPropID, &real, &must, &r.BillType, &r.POBillNo); err != nil {
			return nil, fmt.Errorf("scan purchase_receipt: %w", err)
		}
		if r.RealQty, err = parseQty(real); err != nil {
			return nil, err
		}
		if r.MustQty, err = parseQty(must); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SubcontractOrdersByMTO(ctx context.Context, mto string) ([]reader.SubcontractOrder, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, order_qty, stock_in_qty, no_stock_in_qty
		FROM subcontract_orders WHERE mto = ? ORDER BY bill_no, material_code`, mto)
	if err != nil {
		return nil, fmt.Errorf("query subcontract_orders: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.SubcontractOrder
	for rows.Next() {
		var r reader.SubcontractOrder
		var order, stockIn, noStockIn string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &order, &stockIn, &noStockIn); err != nil {
			return nil, fmt.Errorf("scan subcontract_order: %w", err)
		}
		if r.OrderQty, err = parseQty(order); err != nil {
			return nil, err
		}
		if r.StockInQty, err = parseQty(stockIn); err != nil {
			return nil, err
		}
		if r.NoStockInQty, err = parseQty(noStockIn); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) MaterialPickingsByMTO(ctx context.Context, mto string) ([]reader.MaterialPicking, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, app_qty, actual_qty, ppbom_bill_no
		FROM material_picking WHERE mto = ? ORDER BY material_code, ppbom_bill_no`, mto)
	if err != nil {
		return nil, fmt.Errorf("query material_picking: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.MaterialPicking
	for rows.Next() {
		var r reader.MaterialPicking
		var app, actual string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &app, &actual, &r.PPBOMBillNo); err != nil {
			return nil, fmt.Errorf("scan material_picking: %w", err)
		}
		if r.AppQty, err = parseQty(app); err != nil {
			return nil, err
		}
		if r.ActualQty, err = parseQty(actual); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SalesDeliveriesByMTO(ctx context.Context, mto string) ([]reader.SalesDelivery, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, aux_prop_id, real_qty, must_qty
		FROM sales_deliveries WHERE mto = ? ORDER BY material_code, aux_prop_id`, mto)
	if err != nil {
		return nil, fmt.Errorf("query sales_deliveries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.SalesDelivery
	for rows.Next() {
		var r reader.SalesDelivery
		var real, must string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &r.AuxPropID, &real, &must); err != nil {
			return nil, fmt.Errorf("scan sales_delivery: %w", err)
		}
		if r.RealQty, err = parseQty(real); err != nil {
			return nil, err
		}
		if r.MustQty, err = parseQty(must); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SalesOrdersByMTO(ctx context.Context, mto string) ([]reader.SalesOrder, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT bill_no, mto, material_code, material_name, customer_name, delivery_date, qty, aux_prop_id
		FROM sales_orders WHERE mto = ? ORDER BY bill_no, material_code, aux_prop_id`, mto)
	if err != nil {
		return nil, fmt.Errorf("query sales_orders: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []reader.SalesOrder
	for rows.Next() {
		var r reader.SalesOrder
		var qty string
		if err := rows.Scan(&r.BillNo, &r.MTO, &r.MaterialCode, &r.MaterialName, &r.CustomerName, &r.DeliveryDate, &qty, &r.AuxPropID); err != nil {
			return nil, fmt.Errorf("scan sales_order: %w", err)
		}
		if r.Qty, err = parseQty(qty); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Freshness summarises the persistent tier's knowledge of one MTO.
type Freshness struct {
	Rows   int
	Oldest time.Time
	Newest time.Time
}

// mtoTables lists every table that carries an mto + synced_at column.
var mtoTables = []string{
	"production_orders", "production_bom", "production_receipts",
	"purchase_orders", "purchase_receipts", "subcontract_orders",
	"material_picking", "sales_deliveries", "sales_orders",
}

// MTOFreshness reports how many rows the store holds for the MTO and the
// oldest/newest synced_at among them.
func (s *Store) MTOFreshness(ctx context.Context, mto string) (Freshness, error) {
	var f Freshness
	for _, table := range mtoTables {
		var count int
		var oldest, newest sql.NullString
		err := s.conn.QueryRowContext(ctx,
			`SELECT COUNT(*), MIN(synced_at), MAX(synced_at) FROM `+table+` WHERE mto = ?`, mto,
		).Scan(&count, &oldest, &newest)
		if err != nil {
			return Freshness{}, fmt.Errorf("freshness %s: %w", table, err)
		}
		if count == 0 {
			continue
		}
		f.Rows += count

		o, err := parseTime(oldest.String)
		if err != nil {
			return Freshness{}, err
		}
		n, err := parseTime(newest.String)
		if err != nil {
			return Freshness{}, err
		}
		if f.Oldest.IsZero() || o.Before(f.Oldest) {
			f.Oldest = o
		}
		if n.After(f.Newest) {
			f.Newest = n
		}
	}
	return f, nil
}

// RecentMTOs returns distinct MTO numbers ordered by most recent sync,
// drawn from the production-orders table. Used by cache warming.
func (s *Store) RecentMTOs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT mto FROM production_orders
		WHERE mto != ''
		GROUP BY mto
		ORDER BY MAX(synced_at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent mtos: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []string
	for rows.Next() {
		var mto string
		if err := rows.Scan(&mto); err != nil {
			return nil, fmt.Errorf("scan mto: %w", err)
		}
		out = append(out, mto)
	}
	return out, rows.Err()
}
