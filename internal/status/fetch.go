package status

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mtogate/mtogate/internal/reader"
)

// bundle holds the nine readers' results for one MTO, whichever tier
// produced them.
type bundle struct {
	orders     []reader.ProductionOrder
	boms       []reader.ProductionBOM
	prodRcpts  []reader.ProductionReceipt
	poLines    []reader.PurchaseOrder
	poRcpts    []reader.PurchaseReceipt
	subOrders  []reader.SubcontractOrder
	pickings   []reader.MaterialPicking
	deliveries []reader.SalesDelivery
	soLines    []reader.SalesOrder
}

func (b *bundle) empty() bool {
	return len(b.orders) == 0 && len(b.boms) == 0 && len(b.prodRcpts) == 0 &&
		len(b.poLines) == 0 && len(b.poRcpts) == 0 && len(b.subOrders) == 0 &&
		len(b.pickings) == 0 && len(b.deliveries) == 0 && len(b.soLines) == 0
}

// fetchLive fans out all nine readers in parallel. The group either
// all-succeeds or fails with the first reader error; no partial bundle is
// surfaced.
func (s *Service) fetchLive(ctx context.Context, mto string) (*bundle, error) {
	var b bundle
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		b.orders, err = reader.FetchByMTO(ctx, s.q, reader.ProductionOrders, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.boms, err = reader.FetchByMTO(ctx, s.q, reader.ProductionBOMs, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.prodRcpts, err = reader.FetchByMTO(ctx, s.q, reader.ProductionReceipts, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.poLines, err = reader.FetchByMTO(ctx, s.q, reader.PurchaseOrders, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.poRcpts, err = reader.FetchByMTO(ctx, s.q, reader.PurchaseReceipts, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.subOrders, err = reader.FetchByMTO(ctx, s.q, reader.SubcontractOrders, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.pickings, err = reader.FetchByMTO(ctx, s.q, reader.MaterialPickings, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.deliveries, err = reader.FetchByMTO(ctx, s.q, reader.SalesDeliveries, s.pageSize, mto)
		return err
	})
	g.Go(func() (err error) {
		b.soLines, err = reader.FetchByMTO(ctx, s.q, reader.SalesOrders, s.pageSize, mto)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}

// fetchPersistent reads the nine tables for the MTO.
func (s *Service) fetchPersistent(ctx context.Context, mto string) (*bundle, error) {
	var b bundle
	var err error

	if b.orders, err = s.store.ProductionOrdersByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.boms, err = s.store.ProductionBOMsByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.prodRcpts, err = s.store.ProductionReceiptsByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.poLines, err = s.store.PurchaseOrdersByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.poRcpts, err = s.store.PurchaseReceiptsByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.subOrders, err = s.store.SubcontractOrdersByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.pickings, err = s.store.MaterialPickingsByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.deliveries, err = s.store.SalesDeliveriesByMTO(ctx, mto); err != nil {
		return nil, err
	}
	if b.soLines, err = s.store.SalesOrdersByMTO(ctx, mto); err != nil {
		return nil, err
	}
	return &b, nil
}
