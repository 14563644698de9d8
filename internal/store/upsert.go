package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mtogate/mtogate/internal/reader"
)

// Batch upserts, one per table. Each call runs in a single transaction (the
// orchestrator calls one per chunk per table) and is idempotent over the
// table's compound unique key: replaying a chunk updates rows in place.

func (s *Store) UpsertProductionOrders(ctx context.Context, rows []reader.ProductionOrder, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO production_orders (bill_no, mto, workshop, material_code, material_name, specification, qty, status, create_date, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(bill_no) DO UPDATE SET
				mto = excluded.mto,
				workshop = excluded.workshop,
				material_code = excluded.material_code,
				material_name = excluded.material_name,
				specification = excluded.specification,
				qty = excluded.qty,
				status = excluded.status,
				create_date = excluded.create_date,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare production_orders upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.Workshop, r.MaterialCode, r.MaterialName, r.Specification, r.Qty.String(), r.Status, r.CreateDate, ts); err != nil {
				return fmt.Errorf("upsert production_order %s: %w", r.BillNo, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertProductionBOMs(ctx context.Context, rows []reader.ProductionBOM, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO production_bom (mo_bill_no, mto, material_code, material_name, specification, aux_prop_id, material_type, need_qty, picked_qty, no_picked_qty, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(mo_bill_no, material_code, aux_prop_id) DO UPDATE SET
				mto = excluded.mto,
				material_name = excluded.material_name,
				specification = excluded.specification,
				material_type = excluded.material_type,
				need_qty = excluded.need_qty,
				picked_qty = excluded.picked_qty,
				no_picked_qty = excluded.no_picked_qty,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare production_bom upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.MOBillNo, r.MTO, r.MaterialCode, r.MaterialName, r.Specification, r.AuxPropID, r.MaterialType, r.NeedQty.String(), r.PickedQty.String(), r.NoPickedQty.String(), ts); err != nil {
				return fmt.Errorf("upsert production_bom %s/%s: %w", r.MOBillNo, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertProductionReceipts(ctx context.Context, rows []reader.ProductionReceipt, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO production_receipts (bill_no, mto, material_code, aux_prop_id, real_qty, must_qty, mo_bill_no, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(mto, material_code, aux_prop_id) DO UPDATE SET
				bill_no = excluded.bill_no,
				real_qty = excluded.real_qty,
				must_qty = excluded.must_qty,
				mo_bill_no = excluded.mo_bill_no,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare production_receipts upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.AuxPropID, r.RealQty.String(), r.MustQty.String(), r.MOBillNo, ts); err != nil {
				return fmt.Errorf("upsert production_receipt %s/%s: %w", r.MTO, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertPurchaseOrders(ctx context.Context, rows []reader.PurchaseOrder, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO purchase_orders (bill_no, mto, material_code, material_name, aux_prop_id, order_qty, stock_in_qty, remain_stock_in_qty, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(bill_no, material_code, aux_prop_id) DO UPDATE SET
				mto = excluded.mto,
				material_name = excluded.material_name,
				order_qty = excluded.order_qty,
				stock_in_qty = excluded.stock_in_qty,
				remain_stock_in_qty = excluded.remain_stock_in_qty,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare purchase_orders upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.MaterialName, r.AuxPropID, r.OrderQty.String(), r.StockInQty.String(), r.RemainStockInQty.String(), ts); err != nil {
				return fmt.Errorf("upsert purchase_order %s/%s: %w", r.BillNo, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertPurchaseReceipts(ctx context.Context, rows []reader.PurchaseReceipt, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO purchase_receipts (bill_no, mto, material_code, aux_prop_id, real_qty, must_qty, bill_type, po_bill_no, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(mto, material_code, aux_prop_id, bill_type) DO UPDATE SET
				bill_no = excluded.bill_no,
				real_qty = excluded.real_qty,
				must_qty = excluded.must_qty,
				po_bill_no = excluded.po_bill_no,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare purchase_receipts upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.AuxPropID, r.RealQty.String(), r.MustQty.String(), r.BillType, r.POBillNo, ts); err != nil {
				return fmt.Errorf("upsert purchase_receipt %s/%s: %w", r.MTO, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertSubcontractOrders(ctx context.Context, rows []reader.SubcontractOrder, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO subcontract_orders (bill_no, mto, material_code, order_qty, stock_in_qty, no_stock_in_qty, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(bill_no, material_code) DO UPDATE SET
				mto = excluded.mto,
				order_qty = excluded.order_qty,
				stock_in_qty = excluded.stock_in_qty,
				no_stock_in_qty = excluded.no_stock_in_qty,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare subcontract_orders upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.OrderQty.String(), r.StockInQty.String(), r.NoStockInQty.String(), ts); err != nil {
				return fmt.Errorf("upsert subcontract_order %s/%s: %w", r.BillNo, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertMaterialPickings(ctx context.Context, rows []reader.MaterialPicking, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO material_picking (bill_no, mto, material_code, app_qty, actual_qty, ppbom_bill_no, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(mto, material_code, ppbom_bill_no) DO UPDATE SET
				bill_no = excluded.bill_no,
				app_qty = excluded.app_qty,
				actual_qty = excluded.actual_qty,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare material_picking upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.AppQty.String(), r.ActualQty.String(), r.PPBOMBillNo, ts); err != nil {
				return fmt.Errorf("upsert material_picking %s/%s: %w", r.MTO, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertSalesDeliveries(ctx context.Context, rows []reader.SalesDelivery, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sales_deliveries (bill_no, mto, material_code, aux_prop_id, real_qty, must_qty, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(mto, material_code, aux_prop_id) DO UPDATE SET
				bill_no = excluded.bill_no,
				real_qty = excluded.real_qty,
				must_qty = excluded.must_qty,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare sales_deliveries upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.AuxPropID, r.RealQty.String(), r.MustQty.String(), ts); err != nil {
				return fmt.Errorf("upsert sales_delivery %s/%s: %w", r.MTO, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *Store) UpsertSalesOrders(ctx context.Context, rows []reader.SalesOrder, syncedAt time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ts := formatTime(syncedAt)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sales_orders (bill_no, mto, material_code, material_name, customer_name, delivery_date, qty, aux_prop_id, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(bill_no, mto, material_code, aux_prop_id) DO UPDATE SET
				material_name = excluded.material_name,
				customer_name = excluded.customer_name,
				delivery_date = excluded.delivery_date,
				qty = excluded.qty,
				synced_at = excluded.synced_at`)
		if err != nil {
			return fmt.Errorf("prepare sales_orders upsert: %w", err)
		}
		defer stmt.Close() //nolint:errcheck

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.BillNo, r.MTO, r.MaterialCode, r.MaterialName, r.CustomerName, r.DeliveryDate, r.Qty.String(), r.AuxPropID, ts); err != nil {
				return fmt.Errorf("upsert sales_order %s/%s: %w", r.BillNo, r.MaterialCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
